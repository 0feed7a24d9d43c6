package store

// CronScheduleKind discriminates the shape of a CronSchedule, the Go
// equivalent of the Rust cron crate's tagged-union schedule enum. Go has no
// tagged unions, so exactly one of the kind-specific fields below is
// meaningful for a given Kind.
type CronScheduleKind string

const (
	CronScheduleAt    CronScheduleKind = "at"
	CronScheduleEvery CronScheduleKind = "every"
	CronScheduleCron  CronScheduleKind = "cron"
	CronScheduleEvent CronScheduleKind = "event"
)

// CronSchedule describes when a CronJob fires.
type CronSchedule struct {
	Kind CronScheduleKind `json:"kind"`

	AtMs    int64 `json:"at_ms,omitempty"`    // Kind == CronScheduleAt: fire once at this unix-ms instant
	EveryMs int64 `json:"every_ms,omitempty"` // Kind == CronScheduleEvery: fire every N milliseconds

	Expr string `json:"expr,omitempty"` // Kind == CronScheduleCron: cron expression
	Tz   string `json:"tz,omitempty"`   // Kind == CronScheduleCron: IANA timezone, empty = UTC

	Pattern string `json:"pattern,omitempty"` // Kind == CronScheduleEvent: regex matched against inbound message content
	Channel string `json:"channel,omitempty"` // Kind == CronScheduleEvent: restrict matches to this channel, empty = any
}

// Describe renders a short human-readable description of the schedule, for
// listing jobs in chat or the admin RPC surface.
func (s CronSchedule) Describe() string {
	switch s.Kind {
	case CronScheduleAt:
		return "once"
	case CronScheduleEvery:
		return "recurring"
	case CronScheduleCron:
		if s.Tz != "" {
			return "cron " + s.Expr + " (" + s.Tz + ")"
		}
		return "cron " + s.Expr
	case CronScheduleEvent:
		if s.Channel != "" {
			return "on event in " + s.Channel + ": " + s.Pattern
		}
		return "on event: " + s.Pattern
	default:
		return "unknown"
	}
}

// CronTarget names a delivery destination for a job's announce payload.
type CronTarget struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
}

// CronPayload is the agent turn (or echo) a job triggers.
type CronPayload struct {
	Kind     string            `json:"kind"` // default "agent_turn"
	Message  string            `json:"message"`
	AgentEcho bool             `json:"agent_echo,omitempty"`
	Targets  []CronTarget      `json:"targets,omitempty"`

	// Channel/To/Deliver describe where the run's result is delivered, mirroring
	// the single-target case used by makeCronJobHandler.
	Channel string `json:"channel,omitempty"`
	To      string `json:"to,omitempty"`
	Deliver bool   `json:"deliver,omitempty"`

	OriginMetadata map[string]string `json:"origin_metadata,omitempty"`
}

// CronJobState tracks a job's run history.
type CronJobState struct {
	NextRunAtMs  int64  `json:"next_run_at_ms"`
	LastRunAtMs  int64  `json:"last_run_at_ms,omitempty"`
	LastFiredAtMs int64 `json:"last_fired_at_ms,omitempty"`
	LastStatus   string `json:"last_status,omitempty"` // "ok" | "error" | ""
	LastError    string `json:"last_error,omitempty"`
	RunCount     int64  `json:"run_count"`
}

// CronJob is a scheduled or event-triggered agent turn.
type CronJob struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	AgentID string       `json:"agent_id,omitempty"`
	UserID  string       `json:"user_id,omitempty"`
	Enabled bool         `json:"enabled"`

	Schedule CronSchedule `json:"schedule"`
	Payload  CronPayload  `json:"payload"`
	State    CronJobState `json:"state"`

	CreatedAtMs    int64 `json:"created_at_ms"`
	UpdatedAtMs    int64 `json:"updated_at_ms"`
	DeleteAfterRun bool  `json:"delete_after_run,omitempty"`
	ExpiresAtMs    int64 `json:"expires_at_ms,omitempty"`
	MaxRuns        int64 `json:"max_runs,omitempty"`
	CooldownSecs   int64 `json:"cooldown_secs,omitempty"`
	MaxConcurrent  int   `json:"max_concurrent,omitempty"`
}

// CronJobResult is what a job's agent run produced, reported back to the
// CronStore so it can update CronJobState.
type CronJobResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// UpdateJobParams carries the mutable subset of a CronJob for partial
// updates (nil fields are left unchanged).
type UpdateJobParams struct {
	Name     *string
	Enabled  *bool
	Schedule *CronSchedule
	Payload  *CronPayload
}

// CronStore persists CronJobs and fires them on schedule. SetOnJob must be
// called before Start; the handler runs the job's agent turn and returns its
// result (or an error, which is recorded on the job's state and may trigger
// a retry per the store's retry policy).
type CronStore interface {
	CreateJob(job *CronJob) (*CronJob, error)
	GetJob(id string) (*CronJob, error)
	ListJobs() ([]*CronJob, error)
	UpdateJob(id string, params UpdateJobParams) (*CronJob, error)
	DeleteJob(id string) error

	// CheckEvent runs a message against the store's event-triggered jobs,
	// firing (and cooldown-gating) any that match.
	CheckEvent(channel, content string) error

	SetOnJob(handler func(job *CronJob) (*CronJobResult, error))
	Start() error
	Stop() error
}
