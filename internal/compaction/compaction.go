// Package compaction summarizes a session's oldest messages into a single
// "prior context" system message once the estimated token count crosses a
// threshold, keeping the most recent turns verbatim.
package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/oxicrab/oxicrab/internal/providers"
)

const imageTokenWeight = 768

// EstimateTokens approximates a message's token count the same way the
// agent loop budgets context: 4 characters per token for text, plus a fixed
// weight per attached image.
func EstimateTokens(msg providers.Message) int {
	tokens := len(msg.Content) / 4
	tokens += len(msg.Images) * imageTokenWeight
	return tokens
}

// EstimateTotalTokens sums EstimateTokens over every message.
func EstimateTotalTokens(messages []providers.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(m)
	}
	return total
}

// Summarizer invokes a provider to compress a message prefix. Implemented
// by internal/providers.Provider via Chat, narrowed to the one method this
// package needs so it stays easily fakeable in tests.
type Summarizer interface {
	Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error)
}

const summarizationPrompt = `Summarize the conversation above into a compact "prior context" note ` +
	`that preserves facts, decisions, and open threads a continuation would need. ` +
	`After the summary, on new lines starting with "- ", list any durable facts worth ` +
	`remembering long-term (preferences, commitments, identifying details). Keep the ` +
	`summary itself under 500 words.`

// Result is the outcome of a Compact call.
type Result struct {
	// Replacement is the single system message to insert before the
	// preserved suffix.
	Replacement providers.Message
	// Facts is the optional bulleted fact list extracted from the
	// summarizer's response, to be passed through memory's quality gates.
	Facts []string
}

// Compact summarizes messages[:len(messages)-keepRecent] via summarizer and
// returns the replacement message plus any extracted facts. If there are
// fewer than keepRecent+1 messages, compaction is a no-op and ok is false.
func Compact(ctx context.Context, summarizer Summarizer, model string, messages []providers.Message, keepRecent int) (Result, bool, error) {
	if keepRecent < 0 {
		keepRecent = 0
	}
	if len(messages) <= keepRecent {
		return Result{}, false, nil
	}

	prefix := messages[:len(messages)-keepRecent]
	prompt := make([]providers.Message, 0, len(prefix)+1)
	prompt = append(prompt, prefix...)
	prompt = append(prompt, providers.Message{Role: "user", Content: summarizationPrompt})

	resp, err := summarizer.Chat(ctx, providers.ChatRequest{Messages: prompt, Model: model})
	if err != nil {
		return Result{}, false, fmt.Errorf("compaction summarize: %w", err)
	}

	summary, facts := splitSummaryAndFacts(resp.Content)

	return Result{
		Replacement: providers.Message{
			Role:    "system",
			Content: "Prior context (summarized):\n" + summary,
		},
		Facts: facts,
	}, true, nil
}

// splitSummaryAndFacts separates the free-text summary from the trailing
// "- fact" bullet lines the summarization prompt asks for.
func splitSummaryAndFacts(content string) (string, []string) {
	lines := strings.Split(content, "\n")
	var summaryLines []string
	var facts []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") {
			facts = append(facts, strings.TrimSpace(strings.TrimPrefix(trimmed, "- ")))
			continue
		}
		summaryLines = append(summaryLines, line)
	}
	return strings.TrimSpace(strings.Join(summaryLines, "\n")), facts
}

// Apply replaces messages[:len(messages)-keepRecent] with a single
// replacement message, preserving the suffix.
func Apply(messages []providers.Message, keepRecent int, replacement providers.Message) []providers.Message {
	if keepRecent < 0 {
		keepRecent = 0
	}
	if keepRecent > len(messages) {
		keepRecent = len(messages)
	}
	suffix := messages[len(messages)-keepRecent:]
	out := make([]providers.Message, 0, 1+len(suffix))
	out = append(out, replacement)
	out = append(out, suffix...)
	return out
}
