// Package costguard enforces a daily spend budget and an hourly action rate
// limit in front of the agent loop's provider calls, persisting its ledger
// to disk so limits survive a restart.
package costguard

import (
	"sync"
	"time"
)

// ModelRate is a model's per-million-token input/output price in cents.
type ModelRate struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// dailyLedger tracks cumulative spend for one calendar date; it resets
// whenever the stored date no longer matches today.
type dailyLedger struct {
	Date        string  `json:"date"`
	TotalCents  float64 `json:"total_cents"`
}

// Guard gates LLM calls on a daily cents budget and an hourly call-count
// sliding window. Zero values for either limit disable that check.
type Guard struct {
	mu sync.Mutex

	dailyBudgetCents  float64
	maxActionsPerHour int
	defaultRate       ModelRate
	rates             map[string]ModelRate

	ledger  dailyLedger
	actions []time.Time // rolling deque of action timestamps, oldest first

	now func() time.Time
}

// Config configures a Guard.
type Config struct {
	DailyBudgetCents  float64
	MaxActionsPerHour int
	DefaultRate       ModelRate
	Rates             map[string]ModelRate
}

// New constructs a Guard from cfg and an optional persisted ledger state
// (pass a zero dailyLedger to start fresh).
func New(cfg Config) *Guard {
	rates := cfg.Rates
	if rates == nil {
		rates = make(map[string]ModelRate)
	}
	return &Guard{
		dailyBudgetCents:  cfg.DailyBudgetCents,
		maxActionsPerHour: cfg.MaxActionsPerHour,
		defaultRate:       cfg.DefaultRate,
		rates:             rates,
		now:               time.Now,
	}
}

// LedgerState is the serializable snapshot persisted between restarts.
type LedgerState struct {
	Date       string      `json:"date"`
	TotalCents float64     `json:"total_cents"`
	Actions    []time.Time `json:"actions"`
}

// LoadState restores a previously persisted ledger.
func (g *Guard) LoadState(state LedgerState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ledger = dailyLedger{Date: state.Date, TotalCents: state.TotalCents}
	g.actions = append([]time.Time(nil), state.Actions...)
}

// SaveState snapshots the current ledger for persistence.
func (g *Guard) SaveState() LedgerState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return LedgerState{Date: g.ledger.Date, TotalCents: g.ledger.TotalCents, Actions: append([]time.Time(nil), g.actions...)}
}

func today(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// rolloverLocked resets the daily ledger if the stored date no longer
// matches today. Caller must hold g.mu.
func (g *Guard) rolloverLocked() {
	d := today(g.now())
	if g.ledger.Date != d {
		g.ledger = dailyLedger{Date: d, TotalCents: 0}
	}
}

// pruneActionsLocked drops action timestamps older than the 1-hour window.
// Caller must hold g.mu.
func (g *Guard) pruneActionsLocked() {
	cutoff := g.now().Add(-time.Hour)
	i := 0
	for i < len(g.actions) && g.actions[i].Before(cutoff) {
		i++
	}
	g.actions = g.actions[i:]
}

// CheckResult reports which limit (if any) is currently blocking calls.
type CheckResult struct {
	Blocked        bool
	DailyExceeded  bool
	HourlyExceeded bool
}

// Check reports whether a new LLM call is currently allowed.
func (g *Guard) Check() CheckResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked()
	g.pruneActionsLocked()

	res := CheckResult{}
	if g.dailyBudgetCents > 0 && g.ledger.TotalCents >= g.dailyBudgetCents {
		res.DailyExceeded = true
	}
	if g.maxActionsPerHour > 0 && len(g.actions) >= g.maxActionsPerHour {
		res.HourlyExceeded = true
	}
	res.Blocked = res.DailyExceeded || res.HourlyExceeded
	return res
}

// RecordLLMCall appends an action timestamp to the hourly window and adds
// the call's cost (derived from the model's rate table entry, or the
// configured default rate for unknown models) to today's ledger. Cache-read
// tokens bill at 10% of the input rate, cache-creation tokens at 125%.
func (g *Guard) RecordLLMCall(model string, inputTokens, outputTokens, cacheCreateTokens, cacheReadTokens int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked()

	rate, ok := g.rates[model]
	if !ok {
		rate = g.defaultRate
	}

	const million = 1_000_000.0
	cost := float64(inputTokens)/million*rate.InputPerMillion +
		float64(outputTokens)/million*rate.OutputPerMillion +
		float64(cacheCreateTokens)/million*rate.InputPerMillion*1.25 +
		float64(cacheReadTokens)/million*rate.InputPerMillion*0.10

	g.ledger.TotalCents += cost
	g.actions = append(g.actions, g.now())
	g.pruneActionsLocked()
}

// SpentTodayCents returns today's cumulative spend.
func (g *Guard) SpentTodayCents() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rolloverLocked()
	return g.ledger.TotalCents
}

// ActionsThisHour returns the current hourly action count.
func (g *Guard) ActionsThisHour() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneActionsLocked()
	return len(g.actions)
}
