package agent

import (
	"testing"

	"github.com/oxicrab/oxicrab/internal/config"
	"github.com/oxicrab/oxicrab/internal/providers"
	"github.com/stretchr/testify/assert"
)

func TestEstimateTokensWithCalibrationFallsBackWithoutPriorCall(t *testing.T) {
	history := []providers.Message{{Role: "user", Content: "abcdefgh"}} // 8 chars -> 2 tokens
	assert.Equal(t, 2, EstimateTokensWithCalibration(history, 0, 0))
}

func TestEstimateTokensWithCalibrationUsesRatio(t *testing.T) {
	history := make([]providers.Message, 10)
	// last call: 100 prompt tokens over 5 messages -> ratio 20/message
	assert.Equal(t, 200, EstimateTokensWithCalibration(history, 100, 5))
}

func TestResolveMemoryFlushSettingsDefaults(t *testing.T) {
	settings := ResolveMemoryFlushSettings(nil)
	assert.True(t, settings.Enabled)
	assert.Equal(t, defaultMemoryFlushSoftThreshold, settings.SoftThresholdTokens)
}

func TestResolveMemoryFlushSettingsHonorsDisable(t *testing.T) {
	disabled := false
	cfg := &config.CompactionConfig{MemoryFlush: &config.MemoryFlushConfig{Enabled: &disabled}}
	settings := ResolveMemoryFlushSettings(cfg)
	assert.False(t, settings.Enabled)
}

func TestExtractFactLines(t *testing.T) {
	content := "Some preamble.\n- name is Alice\nMore text\n- likes tea"
	assert.Equal(t, []string{"name is Alice", "likes tea"}, extractFactLines(content))
}
