package file

import (
	"github.com/oxicrab/oxicrab/internal/cron"
	"github.com/oxicrab/oxicrab/internal/store"
)

// FileCronStore wraps cron.Service to implement store.CronStore.
type FileCronStore struct {
	svc *cron.Service
}

func NewFileCronStore(svc *cron.Service) *FileCronStore {
	return &FileCronStore{svc: svc}
}

func (f *FileCronStore) CreateJob(job *store.CronJob) (*store.CronJob, error) {
	return f.svc.CreateJob(job)
}

func (f *FileCronStore) GetJob(id string) (*store.CronJob, error) {
	return f.svc.GetJob(id)
}

func (f *FileCronStore) ListJobs() ([]*store.CronJob, error) {
	return f.svc.ListJobs()
}

func (f *FileCronStore) UpdateJob(id string, params store.UpdateJobParams) (*store.CronJob, error) {
	return f.svc.UpdateJob(id, params)
}

func (f *FileCronStore) DeleteJob(id string) error {
	return f.svc.DeleteJob(id)
}

func (f *FileCronStore) CheckEvent(channel, content string) error {
	return f.svc.CheckEvent(channel, content)
}

func (f *FileCronStore) SetOnJob(handler func(job *store.CronJob) (*store.CronJobResult, error)) {
	f.svc.SetOnJob(handler)
}

func (f *FileCronStore) Start() error { return f.svc.Start() }
func (f *FileCronStore) Stop() error  { return f.svc.Stop() }

// SetRetryConfig forwards to the underlying service. cmd/gateway.go probes
// for this via a type assertion rather than requiring it on store.CronStore,
// since the PG-backed implementation manages retries server-side instead.
func (f *FileCronStore) SetRetryConfig(cfg cron.RetryConfig) {
	f.svc.SetRetryConfig(cfg)
}
