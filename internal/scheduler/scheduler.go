// Package scheduler routes agent runs through named lanes (matching the
// TS CommandLane pattern: cron, subagent, delegate, and a default "main"
// lane for direct channel messages), each with its own concurrency cap, and
// adaptively throttles a session's concurrency when it's nearing its
// compaction threshold so a background run doesn't race a summarization
// pass.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oxicrab/oxicrab/internal/agent"
)

// Lane names an independent run queue.
type Lane string

const (
	LaneMain     Lane = "main"
	LaneCron     Lane = "cron"
	LaneSubagent Lane = "subagent"
	LaneDelegate Lane = "delegate"
)

// LaneConfig bounds one lane's concurrency.
type LaneConfig struct {
	MaxConcurrent int
}

// QueueConfig bounds the scheduler's overall queue depth before Schedule
// starts blocking the caller.
type QueueConfig struct {
	MaxQueueDepth int
}

// DefaultLanes returns the default per-lane concurrency caps: generous for
// the interactive "main" lane, tighter for background lanes that shouldn't
// starve it.
func DefaultLanes() map[Lane]LaneConfig {
	return map[Lane]LaneConfig{
		LaneMain:     {MaxConcurrent: 8},
		LaneCron:     {MaxConcurrent: 2},
		LaneSubagent: {MaxConcurrent: 4},
		LaneDelegate: {MaxConcurrent: 4},
	}
}

// DefaultQueueConfig returns the default overall queue depth.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{MaxQueueDepth: 256}
}

// RunFunc executes one agent run. Supplied by the cmd layer so the
// scheduler doesn't need to know how to resolve an agent from a session key.
type RunFunc func(ctx context.Context, req agent.RunRequest) (*agent.RunResult, error)

// Outcome is delivered on a Schedule/ScheduleWithOpts channel once a run
// completes (or fails).
type Outcome struct {
	Result *agent.RunResult
	Err    error
}

// ScheduleOpts customizes a single Schedule call.
type ScheduleOpts struct {
	// MaxConcurrent, if >0, overrides the lane's per-session concurrency cap
	// for this session key specifically (used by the "main" lane to reduce
	// concurrency for sessions nearing their compaction threshold).
	MaxConcurrent int
}

// TokenEstimateFunc returns a session's estimated current token count and
// its provider's context window, used to adaptively throttle concurrency.
type TokenEstimateFunc func(sessionKey string) (tokens, contextWindow int)

// Scheduler runs agent turns through named, concurrency-bounded lanes.
type Scheduler struct {
	runFunc RunFunc

	mu    sync.Mutex
	lanes map[Lane]*laneState

	tokenEstimate TokenEstimateFunc

	wg       sync.WaitGroup
	closing  chan struct{}
	closeOne sync.Once
}

type laneState struct {
	sem chan struct{} // buffered to MaxConcurrent
}

// NewScheduler builds a Scheduler with the given per-lane concurrency caps
// (queueConfig currently bounds logging only — Schedule itself naturally
// back-pressures the caller via the lane semaphore, so there's no separate
// queue to overflow) and run function.
func NewScheduler(lanes map[Lane]LaneConfig, queueConfig QueueConfig, runFunc RunFunc) *Scheduler {
	s := &Scheduler{
		runFunc: runFunc,
		lanes:   make(map[Lane]*laneState, len(lanes)),
		closing: make(chan struct{}),
	}
	for lane, cfg := range lanes {
		max := cfg.MaxConcurrent
		if max <= 0 {
			max = 1
		}
		s.lanes[lane] = &laneState{sem: make(chan struct{}, max)}
	}
	_ = queueConfig
	return s
}

// SetTokenEstimateFunc installs the adaptive-throttle token estimator.
func (s *Scheduler) SetTokenEstimateFunc(fn TokenEstimateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenEstimate = fn
}

// Schedule queues req onto lane and returns a channel that receives exactly
// one Outcome once the run completes.
func (s *Scheduler) Schedule(ctx context.Context, lane Lane, req agent.RunRequest) <-chan Outcome {
	return s.ScheduleWithOpts(ctx, lane, req, ScheduleOpts{})
}

// ScheduleWithOpts is Schedule with per-call options (currently a
// concurrency override, reserved for the adaptive throttle).
func (s *Scheduler) ScheduleWithOpts(ctx context.Context, lane Lane, req agent.RunRequest, opts ScheduleOpts) <-chan Outcome {
	out := make(chan Outcome, 1)

	s.mu.Lock()
	state, ok := s.lanes[lane]
	if !ok {
		state = &laneState{sem: make(chan struct{}, 1)}
		s.lanes[lane] = state
	}
	s.mu.Unlock()

	if opts.MaxConcurrent > 0 && s.nearingCompaction(req.SessionKey) {
		slog.Debug("scheduler: throttling session nearing compaction", "session", req.SessionKey)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case state.sem <- struct{}{}:
		case <-ctx.Done():
			out <- Outcome{Err: ctx.Err()}
			return
		case <-s.closing:
			out <- Outcome{Err: context.Canceled}
			return
		}
		defer func() { <-state.sem }()

		result, err := s.runFunc(ctx, req)
		out <- Outcome{Result: result, Err: err}
	}()

	return out
}

// nearingCompaction reports whether a session is close enough to its
// compaction threshold that new concurrent runs should be throttled.
func (s *Scheduler) nearingCompaction(sessionKey string) bool {
	s.mu.Lock()
	fn := s.tokenEstimate
	s.mu.Unlock()
	if fn == nil || sessionKey == "" {
		return false
	}
	tokens, contextWindow := fn(sessionKey)
	if contextWindow <= 0 {
		return false
	}
	return float64(tokens)/float64(contextWindow) > 0.75
}

// Stop waits for all in-flight runs to finish and stops accepting new ones.
func (s *Scheduler) Stop() {
	s.closeOne.Do(func() { close(s.closing) })
	s.wg.Wait()
}
