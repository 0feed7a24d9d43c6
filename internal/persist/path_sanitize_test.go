package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	workspace := filepath.Join(home, "workspace")

	t.Run("under workspace collapses to tilde", func(t *testing.T) {
		p := filepath.Join(workspace, "project", "main.go")
		assert.Equal(t, "~/workspace/project/main.go", SanitizePath(p, workspace))
	})

	t.Run("under home outside workspace redacts to filename", func(t *testing.T) {
		p := filepath.Join(home, "Documents", "secret.txt")
		assert.Equal(t, "<redacted>/secret.txt", SanitizePath(p, workspace))
	})

	t.Run("under oxicrab home collapses to tilde", func(t *testing.T) {
		p := filepath.Join(home, ".oxicrab", "sessions", "a.json")
		assert.Equal(t, "~/.oxicrab/sessions/a.json", SanitizePath(p, workspace))
	})

	t.Run("system prefix passes through unchanged", func(t *testing.T) {
		assert.Equal(t, "/etc/passwd", SanitizePath("/etc/passwd", workspace))
		assert.Equal(t, "/lib64/libc.so", SanitizePath("/lib64/libc.so", workspace))
	})

	t.Run("outside home passes through unchanged", func(t *testing.T) {
		assert.Equal(t, "/opt/data/file.txt", SanitizePath("/opt/data/file.txt", workspace))
	})
}

func TestSanitizeErrorMessage(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	workspace := filepath.Join(home, "workspace")

	msg := "open " + filepath.Join(home, "Documents", "secret.txt") + ": permission denied"
	got := SanitizeErrorMessage(msg, workspace)
	assert.Contains(t, got, "<redacted>/secret.txt")
	assert.NotContains(t, got, "Documents")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "agent_x_telegram_direct_123", SanitizeFilename("agent:x:telegram:direct:123"))
	assert.Equal(t, "a.b-c_d", SanitizeFilename("a.b-c_d"))
}
