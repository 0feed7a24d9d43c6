// Package cron implements scheduled and event-triggered agent turns:
// one-shot/recurring/cron-expression schedules plus a regex event matcher
// with per-job cooldowns.
//
// Data model and firing semantics are ported from
// original_source/src/cron/types/mod.rs and event_matcher.rs. Cron
// expressions reuse the teacher's own github.com/adhocore/gronx dependency
// rather than adding a second expression parser.
package cron

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/oxicrab/oxicrab/internal/bus"
	"github.com/oxicrab/oxicrab/internal/persist"
	"github.com/oxicrab/oxicrab/internal/store"
)

const tickInterval = 2 * time.Second

type document struct {
	Version int               `json:"version"`
	Jobs    []*store.CronJob `json:"jobs"`
}

// Service is a file-persisted CronStore implementation: it owns the job
// list, computes next-run times, and fires jobs on a ticking loop.
type Service struct {
	path   string
	msgBus *bus.MessageBus

	mu      sync.Mutex
	jobs    map[string]*store.CronJob
	matcher *EventMatcher
	onJob   func(job *store.CronJob) (*store.CronJobResult, error)
	retry   RetryConfig
	running map[string]int // job ID -> in-flight run count, for MaxConcurrent

	stopCh chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewService opens (or creates) a cron job store persisted at path.
// msgBus is optional (nil-safe) and reserved for jobs whose payload asks to
// echo their result back onto the bus as an inbound message.
func NewService(path string, msgBus *bus.MessageBus) *Service {
	s := &Service{
		path:    path,
		msgBus:  msgBus,
		jobs:    make(map[string]*store.CronJob),
		retry:   DefaultRetryConfig(),
		running: make(map[string]int),
		now:     time.Now,
	}
	s.load()
	s.rebuildMatcherLocked()
	return s
}

func (s *Service) load() {
	var doc document
	if err := persist.ReadFileJSON(s.path, &doc); err != nil {
		return
	}
	for _, j := range doc.Jobs {
		s.jobs[j.ID] = j
	}
}

func (s *Service) saveLocked() error {
	doc := document{Version: 1}
	for _, j := range s.jobs {
		doc.Jobs = append(doc.Jobs, j)
	}
	return persist.WriteFileAtomic(s.path, doc)
}

func (s *Service) rebuildMatcherLocked() {
	var jobs []*store.CronJob
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.matcher = NewEventMatcher(jobs)
}

// SetRetryConfig overrides the default retry policy. Matches the
// interface{ SetRetryConfig(cron.RetryConfig) } type assertion cmd/gateway.go
// probes for after loading config.json.
func (s *Service) SetRetryConfig(cfg RetryConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retry = cfg
}

// CreateJob validates and persists a new job, computing its first NextRunAtMs.
func (s *Service) CreateJob(job *store.CronJob) (*store.CronJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	nowMs := s.now().UnixMilli()
	job.CreatedAtMs = nowMs
	job.UpdatedAtMs = nowMs
	if job.Schedule.Kind != store.CronScheduleEvent {
		next, err := nextRunAfter(job.Schedule, s.now())
		if err != nil {
			return nil, err
		}
		job.State.NextRunAtMs = next
	}

	s.jobs[job.ID] = job
	s.rebuildMatcherLocked()
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Service) GetJob(id string) (*store.CronJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("cron job %q not found", id)
	}
	return job, nil
}

func (s *Service) ListJobs() ([]*store.CronJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.CronJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (s *Service) UpdateJob(id string, params store.UpdateJobParams) (*store.CronJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("cron job %q not found", id)
	}
	if params.Name != nil {
		job.Name = *params.Name
	}
	if params.Enabled != nil {
		job.Enabled = *params.Enabled
	}
	if params.Payload != nil {
		job.Payload = *params.Payload
	}
	if params.Schedule != nil {
		job.Schedule = *params.Schedule
		if job.Schedule.Kind != store.CronScheduleEvent {
			next, err := nextRunAfter(job.Schedule, s.now())
			if err != nil {
				return nil, err
			}
			job.State.NextRunAtMs = next
		}
	}
	job.UpdatedAtMs = s.now().UnixMilli()

	s.rebuildMatcherLocked()
	if err := s.saveLocked(); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Service) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("cron job %q not found", id)
	}
	delete(s.jobs, id)
	s.rebuildMatcherLocked()
	return s.saveLocked()
}

// CheckEvent matches content from channel against event-triggered jobs and
// fires any whose pattern matches and whose cooldown has elapsed. Intended
// to be called by the inbound message consumer for every message it
// processes.
func (s *Service) CheckEvent(channel, content string) error {
	s.mu.Lock()
	matcher := s.matcher
	s.mu.Unlock()
	if matcher == nil {
		return nil
	}

	for _, jobID := range matcher.Check(channel, content, s.now()) {
		job, err := s.GetJob(jobID)
		if err != nil {
			continue
		}
		go s.fire(job)
	}
	return nil
}

func (s *Service) SetOnJob(handler func(job *store.CronJob) (*store.CronJobResult, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJob = handler
}

// Start begins the background ticking loop that fires due time-based jobs.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return nil // already running
	}
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
	return nil
}

func (s *Service) Stop() error {
	s.mu.Lock()
	stopCh := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()
	if stopCh == nil {
		return nil
	}
	close(stopCh)
	s.wg.Wait()
	return nil
}

func (s *Service) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.fireDue()
		}
	}
}

func (s *Service) fireDue() {
	nowMs := s.now().UnixMilli()

	s.mu.Lock()
	var due []*store.CronJob
	for _, j := range s.jobs {
		if !j.Enabled || j.Schedule.Kind == store.CronScheduleEvent {
			continue
		}
		if j.State.NextRunAtMs != 0 && j.State.NextRunAtMs <= nowMs {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		go s.fire(job)
	}
}

// fire runs a job's handler (with retry-on-error) and updates its state.
func (s *Service) fire(job *store.CronJob) {
	s.mu.Lock()
	maxConcurrent := job.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if s.running[job.ID] >= maxConcurrent {
		s.mu.Unlock()
		return
	}
	s.running[job.ID]++
	onJob := s.onJob
	retry := s.retry
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running[job.ID]--
		s.mu.Unlock()
	}()

	if onJob == nil {
		return
	}

	var result *store.CronJobResult
	var err error
	for attempt := 1; attempt <= retry.MaxRetries+1; attempt++ {
		result, err = onJob(job)
		if err == nil {
			break
		}
		slog.Warn("cron job failed", "job", job.ID, "attempt", attempt, "error", err)
		if attempt <= retry.MaxRetries {
			time.Sleep(retry.delayFor(attempt))
		}
	}

	s.recordRun(job, result, err)
}

func (s *Service) recordRun(job *store.CronJob, result *store.CronJobResult, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.jobs[job.ID]
	if !ok {
		return
	}
	nowMs := s.now().UnixMilli()
	cur.State.LastRunAtMs = nowMs
	cur.State.LastFiredAtMs = nowMs
	cur.State.RunCount++
	if runErr != nil {
		cur.State.LastStatus = "error"
		cur.State.LastError = runErr.Error()
	} else {
		cur.State.LastStatus = "ok"
		cur.State.LastError = ""
	}
	_ = result

	shouldDelete := cur.DeleteAfterRun ||
		(cur.MaxRuns > 0 && cur.State.RunCount >= cur.MaxRuns) ||
		(cur.ExpiresAtMs > 0 && nowMs >= cur.ExpiresAtMs)

	if shouldDelete {
		delete(s.jobs, cur.ID)
	} else if cur.Schedule.Kind != store.CronScheduleEvent {
		next, err := nextRunAfter(cur.Schedule, time.UnixMilli(nowMs))
		if err != nil {
			slog.Warn("cron: failed to compute next run", "job", cur.ID, "error", err)
			cur.Enabled = false
		} else {
			cur.State.NextRunAtMs = next
		}
		if cur.Schedule.Kind == store.CronScheduleAt {
			cur.Enabled = false // one-shot, already fired
		}
	}
	s.rebuildMatcherLocked()
	if err := s.saveLocked(); err != nil {
		slog.Warn("cron: failed to persist job state", "job", cur.ID, "error", err)
	}
}

// nextRunAfter computes a schedule's next fire time in unix-ms after from.
func nextRunAfter(sched store.CronSchedule, from time.Time) (int64, error) {
	switch sched.Kind {
	case store.CronScheduleAt:
		return sched.AtMs, nil
	case store.CronScheduleEvery:
		if sched.EveryMs <= 0 {
			return 0, fmt.Errorf("cron: every schedule needs a positive interval")
		}
		return from.UnixMilli() + sched.EveryMs, nil
	case store.CronScheduleCron:
		loc := time.UTC
		if sched.Tz != "" {
			if l, err := time.LoadLocation(sched.Tz); err == nil {
				loc = l
			}
		}
		next, err := gronx.NextTickAfter(sched.Expr, from.In(loc), false)
		if err != nil {
			return 0, fmt.Errorf("cron: invalid expression %q: %w", sched.Expr, err)
		}
		return next.UnixMilli(), nil
	default:
		return 0, fmt.Errorf("cron: unsupported schedule kind %q", sched.Kind)
	}
}
