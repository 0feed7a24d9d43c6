package safety

import (
	"log/slog"
	"regexp"
)

// InjectionCategory classifies a detected prompt-injection pattern.
type InjectionCategory string

const (
	CategoryRoleSwitch          InjectionCategory = "role_switch"
	CategoryInstructionOverride InjectionCategory = "instruction_override"
	CategorySecretExtraction    InjectionCategory = "secret_extraction"
	CategoryJailbreak           InjectionCategory = "jailbreak"
)

// InjectionMatch is a single prompt-injection pattern match.
type InjectionMatch struct {
	Category    InjectionCategory
	PatternName string
	MatchedText string
}

type guardPattern struct {
	category InjectionCategory
	name     string
	regex    *regexp.Regexp
}

// PromptGuard scans text for prompt-injection patterns across four
// categories: role switching, instruction override, secret extraction, and
// jailbreak prefixes. Disabled by default; enabled per-agent via
// agents.defaults.promptGuard.enabled.
type PromptGuard struct {
	patterns []guardPattern
}

// NewPromptGuard compiles the known injection patterns.
func NewPromptGuard() *PromptGuard {
	defs := []struct {
		category InjectionCategory
		name     string
		pattern  string
	}{
		{CategoryRoleSwitch, "ignore_previous",
			`(?i)\b(?:ignore|disregard|forget)\b.{0,50}\b(?:previous|above|prior|all)\b.{0,50}\b(?:instructions?|prompts?|rules?|guidelines?)\b`},
		{CategoryRoleSwitch, "you_are_now",
			`(?i)\byou are now\b.{0,50}\b(?:acting as|pretending|roleplaying|playing|a new)\b`},
		{CategoryRoleSwitch, "new_persona",
			`(?i)\b(?:from now on|henceforth)\b.{0,50}\b(?:you are|act as|behave as|respond as)\b`},
		{CategoryInstructionOverride, "new_instructions",
			`(?i)(?:^|\n)\s*(?:system|new|updated|revised)\s*(?:prompt|instructions?|rules?)\s*:`},
		{CategoryInstructionOverride, "override_system",
			`(?i)\b(?:override|replace|overwrite)\b.{0,50}\b(?:system|original|initial)\b.{0,50}\b(?:prompt|instructions?|rules?)\b`},
		{CategorySecretExtraction, "reveal_prompt",
			`(?i)\b(?:repeat|show|display|output|print|reveal|tell me)\b.{0,50}\b(?:your|the|its|system)\s+(?:system prompt|instructions?|initial prompt|rules|guidelines)\b`},
		{CategorySecretExtraction, "what_are_your",
			`(?i)\bwhat (?:are|is|were) your\b.{0,50}\b(?:instructions?|rules?|system prompt|guidelines)\b`},
		{CategoryJailbreak, "dan_mode", `(?i)\b(?:DAN|developer|god)\s*mode\b`},
		{CategoryJailbreak, "jailbreak", `(?i)\bjailbreak\b`},
		{CategoryJailbreak, "do_anything_now", `(?i)\bdo anything now\b`},
	}

	patterns := make([]guardPattern, 0, len(defs))
	for _, d := range defs {
		re, err := regexp.Compile(d.pattern)
		if err != nil {
			slog.Warn("failed to compile prompt guard pattern", "name", d.name, "error", err)
			continue
		}
		patterns = append(patterns, guardPattern{category: d.category, name: d.name, regex: re})
	}
	return &PromptGuard{patterns: patterns}
}

// normalizeEvasionChars strips zero-width, invisible, combining, bidi, and
// variation-selector codepoints that attackers use to split detectable
// keywords (e.g. "ig​nore" -> "ignore") before pattern matching.
func normalizeEvasionChars(text string) string {
	out := make([]rune, 0, len(text))
	for _, r := range text {
		if isEvasionChar(r) {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func isEvasionChar(r rune) bool {
	switch r {
	case '​', // zero-width space
		'‌', // zero-width non-joiner
		'‍', // zero-width joiner
		'‎', // left-to-right mark
		'‏', // right-to-left mark
		'﻿', // byte-order mark / zero-width no-break space
		'­', // soft hyphen
		'͏', // combining grapheme joiner
		'⁠', // word joiner
		'⁡', // function application
		'⁢', // invisible times
		'⁣', // invisible separator
		'⁤': // invisible plus
		return true
	}
	switch {
	case r >= '︀' && r <= '️': // variation selectors
		return true
	case r >= '̀' && r <= 'ͯ': // combining diacritical marks
		return true
	case r >= '᪰' && r <= '᫿': // combining diacritical marks extended
		return true
	case r >= '᷀' && r <= '᷿': // combining diacritical marks supplement
		return true
	case r >= '⃐' && r <= '⃿': // combining diacritical marks for symbols
		return true
	case r >= '︠' && r <= '︯': // combining half marks
		return true
	case r >= '‪' && r <= '‮': // bidi controls (LRE, RLE, PDF, LRO, RLO)
		return true
	case r >= '⁦' && r <= '⁩': // bidi isolates (LRI, RLI, FSI, PDI)
		return true
	case r >= '\U000E0100' && r <= '\U000E01EF': // variation selectors supplement
		return true
	}
	return false
}

// Scan returns all injection matches found in text, after Unicode normalization.
func (g *PromptGuard) Scan(text string) []InjectionMatch {
	normalized := normalizeEvasionChars(text)
	var matches []InjectionMatch
	for _, p := range g.patterns {
		for _, m := range p.regex.FindAllString(normalized, -1) {
			matches = append(matches, InjectionMatch{Category: p.category, PatternName: p.name, MatchedText: m})
		}
	}
	return matches
}

// ShouldBlock reports whether any injection pattern matched text.
func (g *PromptGuard) ShouldBlock(text string) bool {
	normalized := normalizeEvasionChars(text)
	for _, p := range g.patterns {
		if p.regex.MatchString(normalized) {
			return true
		}
	}
	return false
}
