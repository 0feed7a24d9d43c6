package memory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	dir := t.TempDir()
	s := NewStore(dir)
	s.now = func() time.Time { return time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestQualityGateDropsTooShortTooLongAndDuplicates(t *testing.T) {
	facts := []string{"hi", "name is Alice", "name is Alice", ""}
	gated := QualityGate(facts, "")
	assert.Equal(t, []string{"name is Alice"}, gated)
}

func TestQualityGateDropsFactsAlreadyInExisting(t *testing.T) {
	gated := QualityGate([]string{"likes tea"}, "- likes tea\n")
	assert.Empty(t, gated)
}

func TestAppendDailyCreatesFileWithHeading(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AppendDaily([]string{"name is Alice"}))

	data, err := os.ReadFile(filepath.Join(s.root, "2026-07-31.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "# 2026-07-31")
	assert.Contains(t, string(data), "- name is Alice")
}

func TestAppendDailyDoesNotDuplicateAcrossCalls(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.AppendDaily([]string{"name is Alice"}))
	require.NoError(t, s.AppendDaily([]string{"name is Alice", "likes tea"}))

	data, err := os.ReadFile(filepath.Join(s.root, "2026-07-31.md"))
	require.NoError(t, err)
	assert.Equal(t, 1, countOccurrences(string(data), "name is Alice"))
	assert.Contains(t, string(data), "likes tea")
}

func TestPromoteToLongTerm(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.PromoteToLongTerm([]string{"name is Alice"}))

	data, err := os.ReadFile(filepath.Join(s.root, LongTermFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "- name is Alice")
}

func countOccurrences(haystack, needle string) int {
	count := 0
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			count++
		}
	}
	return count
}
