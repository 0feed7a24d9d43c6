package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oxicrab/oxicrab/internal/cron"
	"github.com/oxicrab/oxicrab/internal/store"
)

// PGCronStore implements store.CronStore backed by Postgres. Each job is
// stored as a single jsonb document (its shape is intricate enough — a
// tagged-union schedule, nested payload/state — that normalizing it into
// columns would just mean re-marshaling on every read; managed mode reads
// the whole job only to resolve or update it, never queries into its
// internals directly).
//
// CheckEvent/Start/Stop/SetOnJob delegate to an in-process cron.Service-like
// ticking loop is NOT run here: in managed mode, the scheduling and firing
// responsibilities stay in the single gateway process that calls Start, same
// as standalone mode, but job state is read from and written to Postgres
// instead of a local JSON file.
type PGCronStore struct {
	db    *sql.DB
	onJob func(job *store.CronJob) (*store.CronJobResult, error)

	matcherMu sync.Mutex
	matcher   *cron.EventMatcher
}

func NewPGCronStore(db *sql.DB) *PGCronStore {
	return &PGCronStore{db: db}
}

func (s *PGCronStore) CreateJob(job *store.CronJob) (*store.CronJob, error) {
	if job.ID == "" {
		job.ID = store.GenNewID().String()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(context.Background(),
		`INSERT INTO cron_jobs (id, doc) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc`,
		job.ID, data)
	if err != nil {
		return nil, err
	}
	s.invalidateMatcher()
	return job, nil
}

func (s *PGCronStore) GetJob(id string) (*store.CronJob, error) {
	var data []byte
	err := s.db.QueryRowContext(context.Background(),
		`SELECT doc FROM cron_jobs WHERE id = $1`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cron job %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	var job store.CronJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *PGCronStore) ListJobs() ([]*store.CronJob, error) {
	rows, err := s.db.QueryContext(context.Background(), `SELECT doc FROM cron_jobs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*store.CronJob
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var job store.CronJob
		if err := json.Unmarshal(data, &job); err != nil {
			return nil, err
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

func (s *PGCronStore) UpdateJob(id string, params store.UpdateJobParams) (*store.CronJob, error) {
	job, err := s.GetJob(id)
	if err != nil {
		return nil, err
	}
	if params.Name != nil {
		job.Name = *params.Name
	}
	if params.Enabled != nil {
		job.Enabled = *params.Enabled
	}
	if params.Schedule != nil {
		job.Schedule = *params.Schedule
	}
	if params.Payload != nil {
		job.Payload = *params.Payload
	}
	return s.CreateJob(job)
}

func (s *PGCronStore) DeleteJob(id string) error {
	_, err := s.db.ExecContext(context.Background(), `DELETE FROM cron_jobs WHERE id = $1`, id)
	s.invalidateMatcher()
	return err
}

func (s *PGCronStore) invalidateMatcher() {
	s.matcherMu.Lock()
	s.matcher = nil
	s.matcherMu.Unlock()
}

// CheckEvent matches content against event-triggered jobs, rebuilding the
// cached EventMatcher (and, with it, its cooldown tracking) only when jobs
// have changed since the last rebuild.
func (s *PGCronStore) CheckEvent(channel, content string) error {
	if s.onJob == nil {
		return nil
	}

	jobs, err := s.ListJobs()
	if err != nil {
		return err
	}

	s.matcherMu.Lock()
	matcher := s.matcher
	s.matcherMu.Unlock()
	if matcher == nil {
		matcher = cron.NewEventMatcher(jobs)
		s.matcherMu.Lock()
		if s.matcher == nil {
			s.matcher = matcher
		} else {
			matcher = s.matcher
		}
		s.matcherMu.Unlock()
	}

	for _, jobID := range matcher.Check(channel, content, time.Now()) {
		for _, job := range jobs {
			if job.ID == jobID {
				go s.onJob(job)
				break
			}
		}
	}
	return nil
}

func (s *PGCronStore) SetOnJob(handler func(job *store.CronJob) (*store.CronJobResult, error)) {
	s.onJob = handler
}

func (s *PGCronStore) Start() error { return nil }
func (s *PGCronStore) Stop() error  { return nil }
