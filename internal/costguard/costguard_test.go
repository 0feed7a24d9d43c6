package costguard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestGuard(cfg Config, start time.Time) *Guard {
	g := New(cfg)
	cur := start
	g.now = func() time.Time { return cur }
	return g
}

func TestGuardDailyBudgetBlocks(t *testing.T) {
	start := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	g := newTestGuard(Config{
		DailyBudgetCents: 10,
		DefaultRate:      ModelRate{InputPerMillion: 3, OutputPerMillion: 15},
	}, start)

	assert.False(t, g.Check().Blocked)

	// enough output tokens to exceed the 10-cent budget
	g.RecordLLMCall("unknown-model", 0, 1_000_000, 0, 0)

	res := g.Check()
	assert.True(t, res.Blocked)
	assert.True(t, res.DailyExceeded)
}

func TestGuardDailyBudgetResetsOnDateChange(t *testing.T) {
	start := time.Date(2026, 7, 31, 23, 59, 0, 0, time.UTC)
	g := newTestGuard(Config{
		DailyBudgetCents: 1,
		DefaultRate:      ModelRate{InputPerMillion: 100, OutputPerMillion: 100},
	}, start)

	g.RecordLLMCall("m", 0, 100_000, 0, 0) // 10 cents, over budget
	assert.True(t, g.Check().Blocked)

	// advance past midnight
	start = start.Add(2 * time.Hour)
	g.now = func() time.Time { return start }

	assert.False(t, g.Check().Blocked)
	assert.Equal(t, 0.0, g.SpentTodayCents())
}

func TestGuardHourlyRateLimits(t *testing.T) {
	start := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	g := newTestGuard(Config{MaxActionsPerHour: 2}, start)

	g.RecordLLMCall("m", 10, 10, 0, 0)
	g.RecordLLMCall("m", 10, 10, 0, 0)

	res := g.Check()
	assert.True(t, res.Blocked)
	assert.True(t, res.HourlyExceeded)
}

func TestGuardHourlyWindowSlides(t *testing.T) {
	start := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	g := newTestGuard(Config{MaxActionsPerHour: 1}, start)

	g.RecordLLMCall("m", 1, 1, 0, 0)
	assert.True(t, g.Check().Blocked)

	start = start.Add(61 * time.Minute)
	g.now = func() time.Time { return start }
	assert.False(t, g.Check().Blocked)
	assert.Equal(t, 0, g.ActionsThisHour())
}

func TestRecordLLMCallAppliesCacheMultipliers(t *testing.T) {
	start := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	g := newTestGuard(Config{DefaultRate: ModelRate{InputPerMillion: 100, OutputPerMillion: 100}}, start)

	g.RecordLLMCall("m", 0, 0, 1_000_000, 1_000_000)
	// cache_create: 100 * 1.25 = 125, cache_read: 100 * 0.10 = 10 -> total 135
	assert.InDelta(t, 135.0, g.SpentTodayCents(), 0.001)
}
