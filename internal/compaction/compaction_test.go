package compaction

import (
	"context"
	"testing"

	"github.com/oxicrab/oxicrab/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	msg := providers.Message{Content: "abcd"} // 4 chars -> 1 token
	assert.Equal(t, 1, EstimateTokens(msg))

	withImage := providers.Message{Content: "", Images: []providers.ImageContent{{MimeType: "image/png", Data: "x"}}}
	assert.Equal(t, imageTokenWeight, EstimateTokens(withImage))
}

type fakeSummarizer struct {
	resp *providers.ChatResponse
	err  error
}

func (f *fakeSummarizer) Chat(_ context.Context, _ providers.ChatRequest) (*providers.ChatResponse, error) {
	return f.resp, f.err
}

func TestCompactNoopBelowKeepRecent(t *testing.T) {
	messages := []providers.Message{{Role: "user", Content: "hi"}}
	_, ok, err := Compact(context.Background(), &fakeSummarizer{}, "model", messages, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompactSplitsSummaryAndFacts(t *testing.T) {
	messages := []providers.Message{
		{Role: "user", Content: "My name is Alice and I like tea."},
		{Role: "assistant", Content: "Noted."},
		{Role: "user", Content: "What's 2+2?"},
		{Role: "assistant", Content: "4."},
	}
	summarizer := &fakeSummarizer{resp: &providers.ChatResponse{
		Content: "Alice introduced herself and asked a math question.\n- name is Alice\n- likes tea",
	}}

	result, ok, err := Compact(context.Background(), summarizer, "model", messages, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "system", result.Replacement.Role)
	assert.Contains(t, result.Replacement.Content, "Alice introduced herself")
	assert.Equal(t, []string{"name is Alice", "likes tea"}, result.Facts)
}

func TestApplyPreservesSuffix(t *testing.T) {
	messages := []providers.Message{
		{Role: "user", Content: "old1"},
		{Role: "assistant", Content: "old2"},
		{Role: "user", Content: "recent"},
	}
	replacement := providers.Message{Role: "system", Content: "summary"}

	out := Apply(messages, 1, replacement)
	require.Len(t, out, 2)
	assert.Equal(t, "summary", out[0].Content)
	assert.Equal(t, "recent", out[1].Content)
}
