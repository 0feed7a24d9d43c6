package agent

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/oxicrab/oxicrab/internal/compaction"
	"github.com/oxicrab/oxicrab/internal/config"
	"github.com/oxicrab/oxicrab/internal/memory"
	"github.com/oxicrab/oxicrab/internal/providers"
)

// EstimateTokensWithCalibration estimates history's token count. When the
// session has a recorded prompt-token count from its last LLM response at a
// known message count, that gives a per-message ratio more accurate than the
// flat chars/4 heuristic (especially for multilingual content); otherwise it
// falls back to compaction.EstimateTotalTokens.
func EstimateTokensWithCalibration(history []providers.Message, lastPromptTokens, lastMessageCount int) int {
	if lastPromptTokens <= 0 || lastMessageCount <= 0 {
		return compaction.EstimateTotalTokens(history)
	}
	ratio := float64(lastPromptTokens) / float64(lastMessageCount)
	return int(ratio * float64(len(history)))
}

// MemoryFlushSettings is the resolved (defaults-applied) form of
// config.MemoryFlushConfig.
type MemoryFlushSettings struct {
	Enabled             bool
	SoftThresholdTokens int
	Prompt              string
	SystemPrompt        string
}

const defaultMemoryFlushSoftThreshold = 4000

// ResolveMemoryFlushSettings applies defaults on top of an agent's compaction
// config. A nil config or nil MemoryFlush sub-config yields the default,
// enabled settings.
func ResolveMemoryFlushSettings(cfg *config.CompactionConfig) MemoryFlushSettings {
	settings := MemoryFlushSettings{
		Enabled:             true,
		SoftThresholdTokens: defaultMemoryFlushSoftThreshold,
		Prompt:              "Before this conversation is summarized, write down any durable facts worth remembering long-term.",
		SystemPrompt:        "List only facts that should survive compaction: stable preferences, decisions, commitments, and identifying details. One per line, prefixed with \"- \". Skip anything already obvious from context.",
	}
	if cfg == nil || cfg.MemoryFlush == nil {
		return settings
	}
	mf := cfg.MemoryFlush
	if mf.Enabled != nil {
		settings.Enabled = *mf.Enabled
	}
	if mf.SoftThresholdTokens > 0 {
		settings.SoftThresholdTokens = mf.SoftThresholdTokens
	}
	if mf.Prompt != "" {
		settings.Prompt = mf.Prompt
	}
	if mf.SystemPrompt != "" {
		settings.SystemPrompt = mf.SystemPrompt
	}
	return settings
}

// shouldRunMemoryFlush reports whether a flush turn should run before
// compaction: memory must be enabled for this agent and this flush pass,
// the session must be within SoftThresholdTokens of its compaction
// threshold, and this compaction cycle must not have already been flushed
// (GetMemoryFlushCompactionCount tracks the compaction count at last flush).
func (l *Loop) shouldRunMemoryFlush(sessionKey string, tokenEstimate int, settings MemoryFlushSettings) bool {
	if !l.hasMemory || !settings.Enabled {
		return false
	}

	historyShare := 0.75
	if l.compactionCfg != nil && l.compactionCfg.MaxHistoryShare > 0 {
		historyShare = l.compactionCfg.MaxHistoryShare
	}
	threshold := int(float64(l.contextWindow) * historyShare)
	if threshold-tokenEstimate > settings.SoftThresholdTokens {
		return false
	}

	compactionCount := l.sessions.GetCompactionCount(sessionKey)
	return l.sessions.GetMemoryFlushCompactionCount(sessionKey) < compactionCount+1
}

// runMemoryFlush asks the provider for a short list of durable facts and
// appends the quality-gated ones to the session's per-user daily memory
// note, synchronously (called while the per-session summarize lock is held,
// before the background summarization goroutine is spawned).
func (l *Loop) runMemoryFlush(ctx context.Context, sessionKey string, settings MemoryFlushSettings) {
	fctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	history := l.sessions.GetHistory(sessionKey)
	messages := append(append([]providers.Message{}, history...), providers.Message{
		Role:    "system",
		Content: settings.SystemPrompt,
	}, providers.Message{
		Role:    "user",
		Content: settings.Prompt,
	})

	resp, err := l.provider.Chat(fctx, providers.ChatRequest{
		Messages: messages,
		Model:    l.model,
		Options:  map[string]interface{}{"max_tokens": 512, "temperature": 0.2},
	})
	if err != nil {
		slog.Warn("memory flush failed", "session", sessionKey, "error", err)
		return
	}

	facts := extractFactLines(resp.Content)
	if len(facts) == 0 {
		l.sessions.SetMemoryFlushDone(sessionKey)
		return
	}

	store := memory.NewStore(l.memoryDirFor(sessionKey))
	if err := store.AppendDaily(facts); err != nil {
		slog.Warn("memory flush: write failed", "session", sessionKey, "error", err)
		return
	}
	l.sessions.SetMemoryFlushDone(sessionKey)
}

func extractFactLines(content string) []string {
	var facts []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") {
			facts = append(facts, strings.TrimSpace(strings.TrimPrefix(trimmed, "- ")))
		}
	}
	return facts
}

// memoryDirFor resolves the per-session memory notes directory: under the
// agent's workspace, in a "memory" subdirectory scoped by session key so
// concurrent sessions never interleave writes to the same file.
func (l *Loop) memoryDirFor(sessionKey string) string {
	return filepath.Join(l.workspace, "memory", sanitizePathSegment(sessionKey))
}
