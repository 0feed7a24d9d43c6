package cron

import (
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/oxicrab/oxicrab/internal/store"
)

// eventRule is one compiled CronScheduleEvent job, ready to be matched
// against inbound messages.
type eventRule struct {
	jobID   string
	channel string // empty = any channel
	re      *regexp.Regexp
	cooldown time.Duration
}

// EventMatcher checks inbound messages against a set of event-triggered
// cron jobs, applying a per-job cooldown tracked locally (not persisted to
// job state) so repeated matches within the cooldown window are suppressed
// without needing a store round-trip on every message.
//
// Ported from original_source/src/cron/event_matcher.rs: invalid per-job
// regexes are skipped with a warning rather than failing the whole matcher,
// and last-fired timestamps are tracked in an in-memory map that persists
// across calls to Check (verified against that file's
// test_cooldown_tracks_across_calls).
type EventMatcher struct {
	mu         sync.Mutex
	rules      []eventRule
	lastFired  map[string]time.Time
}

// NewEventMatcher compiles an EventMatcher from the subset of jobs that are
// Enabled and scheduled with CronScheduleEvent.
func NewEventMatcher(jobs []*store.CronJob) *EventMatcher {
	m := &EventMatcher{lastFired: make(map[string]time.Time)}
	for _, job := range jobs {
		if !job.Enabled || job.Schedule.Kind != store.CronScheduleEvent {
			continue
		}
		re, err := regexp.Compile(job.Schedule.Pattern)
		if err != nil {
			slog.Warn("cron: skipping event job with invalid pattern", "job", job.ID, "pattern", job.Schedule.Pattern, "error", err)
			continue
		}
		cooldown := time.Duration(job.CooldownSecs) * time.Second
		m.rules = append(m.rules, eventRule{
			jobID:    job.ID,
			channel:  job.Schedule.Channel,
			re:       re,
			cooldown: cooldown,
		})
	}
	return m
}

// Check returns the IDs of jobs whose pattern matches content on channel and
// whose cooldown (if any) has elapsed, recording a fresh lastFired time for
// each match returned.
func (m *EventMatcher) Check(channel, content string, now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []string
	for _, r := range m.rules {
		if r.channel != "" && r.channel != channel {
			continue
		}
		if !r.re.MatchString(content) {
			continue
		}
		if r.cooldown > 0 {
			if last, ok := m.lastFired[r.jobID]; ok && now.Sub(last) < r.cooldown {
				continue
			}
		}
		m.lastFired[r.jobID] = now
		matched = append(matched, r.jobID)
	}
	return matched
}
