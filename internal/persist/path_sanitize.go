package persist

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// systemPrefixes are absolute paths safe to expose in error messages sent to
// the LLM even when they happen to fall under the user's home directory.
var systemPrefixes = []string{
	"/usr", "/etc", "/lib", "/lib64", "/bin", "/sbin", "/dev", "/proc", "/tmp", "/var",
}

// SanitizePath redacts a filesystem path for inclusion in error messages
// returned to the model:
//   - paths under workspace collapse to "~/workspace/..."
//   - paths under home but outside workspace redact to "<redacted>/filename"
//   - system paths (/usr, /etc, ...) pass through unchanged
//   - paths outside home pass through unchanged
func SanitizePath(path string, workspace string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}

	if !strings.HasPrefix(path, home) {
		return path
	}

	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(path, prefix) && !strings.HasPrefix(path, home) {
			return path
		}
	}

	if workspace != "" && strings.HasPrefix(path, workspace) {
		return "~" + path[len(home):]
	}

	oxicrabDir := filepath.Join(home, ".oxicrab")
	if strings.HasPrefix(path, oxicrabDir) {
		return "~" + path[len(home):]
	}

	filename := filepath.Base(path)
	return "<redacted>/" + filename
}

var pathLikeRe = regexp.MustCompile(`(?:/[\w._-]+){2,}`)

// SanitizeErrorMessage scans msg for absolute path substrings that fall
// under the user's home directory and redacts each via SanitizePath,
// leaving everything else (including non-home absolute paths) untouched.
func SanitizeErrorMessage(msg string, workspace string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return msg
	}

	return pathLikeRe.ReplaceAllStringFunc(msg, func(matched string) string {
		if strings.HasPrefix(matched, home) {
			return SanitizePath(matched, workspace)
		}
		return matched
	})
}
