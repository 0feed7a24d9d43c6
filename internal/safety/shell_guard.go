package safety

import (
	"regexp"
	"strings"
)

// ViolationKind classifies why a shell command was flagged by AnalyzeCommand.
type ViolationKind string

const (
	ViolationInterpreterInlineExec ViolationKind = "interpreter_inline_exec"
	ViolationDangerousPipeTarget   ViolationKind = "dangerous_pipe_target"
	ViolationEvalLike              ViolationKind = "eval_like"
	ViolationSubshell              ViolationKind = "subshell"
	ViolationFunctionDefinition    ViolationKind = "function_definition"
	ViolationDangerousRedirection  ViolationKind = "dangerous_redirection"
	ViolationCommandSubstitution   ViolationKind = "command_substitution"
	ViolationProcessSubstitution   ViolationKind = "process_substitution"
)

// Violation is a single shell-guard finding.
type Violation struct {
	Kind   ViolationKind
	Detail string
}

var dangerousPipeTargets = map[string]bool{
	"bash": true, "sh": true, "zsh": true, "ksh": true, "dash": true,
	"python": true, "python3": true, "perl": true, "ruby": true, "node": true,
}

var inlineExecInterpreters = map[string]string{
	"python3": "-c", "python": "-c", "python2": "-c",
	"perl": "-e", "ruby": "-e", "node": "-e",
}

var dangerousDevices = regexp.MustCompile(`/dev/(sd[a-z]|nvme\d+n\d+|null|zero)\b`)

// AnalyzeCommand runs a lightweight token-based classifier over a shell
// command string, approximating an AST pass ahead of a flat regex deny-list:
// it understands pipelines, redirections, subshells, function definitions,
// and command/process substitution well enough to flag the categories below
// without a full shell grammar. Falls through silently (returns no
// violations) on anything it can't confidently tokenize, leaving the
// regex deny-list as the final backstop.
func AnalyzeCommand(command string) []Violation {
	var violations []Violation

	if strings.Contains(command, "<(") {
		violations = append(violations, Violation{Kind: ViolationProcessSubstitution, Detail: "process substitution <(...)"})
	}
	if strings.Contains(command, "$(") || strings.Contains(command, "`") {
		violations = append(violations, Violation{Kind: ViolationCommandSubstitution, Detail: "command substitution"})
	}
	if m := regexp.MustCompile(`\(([^()]*)\)`).FindStringSubmatch(command); m != nil && !strings.Contains(command, "<(") {
		violations = append(violations, Violation{Kind: ViolationSubshell, Detail: "( ... ) subshell"})
	}
	if regexp.MustCompile(`^\s*[\w.]+\s*\(\)\s*\{`).MatchString(command) {
		violations = append(violations, Violation{Kind: ViolationFunctionDefinition, Detail: "function definition"})
	}
	if dangerousDevices.MatchString(command) {
		violations = append(violations, Violation{Kind: ViolationDangerousRedirection, Detail: "redirect to device file"})
	}

	segments := splitPipeline(command)
	for i, seg := range segments {
		words := strings.Fields(seg)
		if len(words) == 0 {
			continue
		}
		cmd := words[0]

		if (cmd == "eval" || cmd == "source" || cmd == ".") && len(words) > 1 {
			violations = append(violations, Violation{Kind: ViolationEvalLike, Detail: cmd})
		}

		if flag, ok := inlineExecInterpreters[cmd]; ok {
			if firstFlagBelongsToInterpreter(words[1:], flag) {
				violations = append(violations, Violation{Kind: ViolationInterpreterInlineExec, Detail: cmd + " " + flag})
			}
		}

		if i > 0 && dangerousPipeTargets[cmd] {
			violations = append(violations, Violation{Kind: ViolationDangerousPipeTarget, Detail: "piped into " + cmd})
		}
	}

	return violations
}

// firstFlagBelongsToInterpreter reports whether flag appears before any
// non-flag (script-path-like) argument — i.e. the flag is the
// interpreter's own, not one consumed by a script it's invoking.
func firstFlagBelongsToInterpreter(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
		if !strings.HasPrefix(a, "-") {
			return false
		}
	}
	return false
}

// splitPipeline splits a command string on top-level "|" characters,
// ignoring pipes inside single/double quotes.
func splitPipeline(command string) []string {
	var segments []string
	var current strings.Builder
	inSingle, inDouble := false, false

	for _, r := range command {
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			current.WriteRune(r)
		case r == '"' && !inSingle:
			inDouble = !inDouble
			current.WriteRune(r)
		case r == '|' && !inSingle && !inDouble:
			segments = append(segments, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	segments = append(segments, current.String())
	return segments
}
