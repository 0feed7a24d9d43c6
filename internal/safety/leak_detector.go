// Package safety implements the outbound/inbound content guards: secret leak
// detection, prompt-injection scanning, SSRF-safe URL resolution, and a
// shell-command AST/deny-list classifier.
package safety

import "regexp"

type leakPattern struct {
	name  string
	regex *regexp.Regexp
}

// LeakDetector scans text for known secret shapes before it leaves the
// gateway (outbound bus publish, tool result echoed back to a channel).
type LeakDetector struct {
	patterns []leakPattern
}

// LeakMatch is a single detected secret occurrence.
type LeakMatch struct {
	Name  string
	Start int
	End   int
}

// NewLeakDetector compiles the known secret-shape patterns.
func NewLeakDetector() *LeakDetector {
	defs := []struct{ name, pattern string }{
		{"anthropic_api_key", `sk-ant-api[0-9a-zA-Z\-_]{20,200}`},
		{"openai_api_key", `sk-[a-zA-Z0-9]{20,200}`},
		{"slack_bot_token", `xoxb-[0-9]+-[0-9]+-[a-zA-Z0-9]+`},
		{"slack_app_token", `xapp-[0-9]+-[A-Z0-9]+-[0-9]+-[a-f0-9]+`},
		{"github_pat", `ghp_[a-zA-Z0-9]{36}`},
		{"groq_api_key", `gsk_[a-zA-Z0-9]{20,200}`},
		{"telegram_bot_token", `[0-9]+:AA[A-Za-z0-9_\-]{33}`},
		{"discord_bot_token", `[A-Za-z0-9_\-]{24}\.[A-Za-z0-9_\-]{6}\.[A-Za-z0-9_\-]{27,200}`},
	}

	patterns := make([]leakPattern, 0, len(defs))
	for _, d := range defs {
		patterns = append(patterns, leakPattern{name: d.name, regex: regexp.MustCompile(d.pattern)})
	}
	return &LeakDetector{patterns: patterns}
}

// Scan returns every secret-shaped match found in text.
func (d *LeakDetector) Scan(text string) []LeakMatch {
	var matches []LeakMatch
	for _, p := range d.patterns {
		for _, loc := range p.regex.FindAllStringIndex(text, -1) {
			matches = append(matches, LeakMatch{Name: p.name, Start: loc[0], End: loc[1]})
		}
	}
	return matches
}

// Redact replaces every detected secret in text with "[REDACTED]".
func (d *LeakDetector) Redact(text string) string {
	result := text
	for _, p := range d.patterns {
		result = p.regex.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}
