package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oxicrab/oxicrab/internal/store"
)

// CronTool lets an agent list, create, update, and delete its own scheduled
// jobs (reminders, recurring check-ins, event-triggered announces).
type CronTool struct {
	cron store.CronStore
}

func NewCronTool(cron store.CronStore) *CronTool {
	return &CronTool{cron: cron}
}

func (t *CronTool) Name() string { return "cron" }

func (t *CronTool) Description() string {
	return "Manage scheduled jobs: list, create (once/recurring/cron-expression/event-triggered), enable/disable, and delete."
}

func (t *CronTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"list", "create", "update", "delete"},
				"description": "What to do.",
			},
			"job_id": map[string]interface{}{
				"type":        "string",
				"description": "Required for update/delete.",
			},
			"name": map[string]interface{}{
				"type": "string",
			},
			"schedule_kind": map[string]interface{}{
				"type": "string",
				"enum": []string{"at", "every", "cron", "event"},
			},
			"at_ms": map[string]interface{}{
				"type":        "number",
				"description": "Unix ms for schedule_kind=at.",
			},
			"every_ms": map[string]interface{}{
				"type":        "number",
				"description": "Interval in ms for schedule_kind=every.",
			},
			"cron_expr": map[string]interface{}{
				"type":        "string",
				"description": "Cron expression for schedule_kind=cron.",
			},
			"cron_tz": map[string]interface{}{
				"type": "string",
			},
			"event_pattern": map[string]interface{}{
				"type":        "string",
				"description": "Regex for schedule_kind=event.",
			},
			"event_channel": map[string]interface{}{
				"type": "string",
			},
			"message": map[string]interface{}{
				"type":        "string",
				"description": "The agent turn's message when the job fires.",
			},
			"deliver_channel": map[string]interface{}{
				"type": "string",
			},
			"deliver_to": map[string]interface{}{
				"type": "string",
			},
			"enabled": map[string]interface{}{
				"type": "boolean",
			},
		},
		"required": []string{"action"},
	}
}

func (t *CronTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.cron == nil {
		return ErrorResult("cron store not available")
	}

	action, _ := args["action"].(string)
	switch action {
	case "list":
		return t.list()
	case "create":
		return t.create(args)
	case "update":
		return t.update(args)
	case "delete":
		return t.delete(args)
	default:
		return ErrorResult(fmt.Sprintf("unknown cron action %q", action))
	}
}

func (t *CronTool) list() *Result {
	jobs, err := t.cron.ListJobs()
	if err != nil {
		return ErrorResult(err.Error())
	}
	if len(jobs) == 0 {
		return NewResult("No scheduled jobs.")
	}
	var lines []string
	for _, j := range jobs {
		status := "enabled"
		if !j.Enabled {
			status = "disabled"
		}
		lines = append(lines, fmt.Sprintf("- %s (%s, %s) — %s", j.Name, j.ID, status, j.Schedule.Describe()))
	}
	return NewResult(strings.Join(lines, "\n"))
}

func (t *CronTool) create(args map[string]interface{}) *Result {
	name, _ := args["name"].(string)
	message, _ := args["message"].(string)
	if name == "" || message == "" {
		return ErrorResult("name and message are required")
	}

	kind, _ := args["schedule_kind"].(string)
	sched := store.CronSchedule{Kind: store.CronScheduleKind(kind)}
	switch sched.Kind {
	case store.CronScheduleAt:
		sched.AtMs = int64(numArg(args, "at_ms"))
	case store.CronScheduleEvery:
		sched.EveryMs = int64(numArg(args, "every_ms"))
	case store.CronScheduleCron:
		sched.Expr, _ = args["cron_expr"].(string)
		sched.Tz, _ = args["cron_tz"].(string)
	case store.CronScheduleEvent:
		sched.Pattern, _ = args["event_pattern"].(string)
		sched.Channel, _ = args["event_channel"].(string)
	default:
		return ErrorResult(fmt.Sprintf("unknown schedule_kind %q", kind))
	}

	payload := store.CronPayload{Kind: "agent_turn", Message: message}
	payload.Channel, _ = args["deliver_channel"].(string)
	payload.To, _ = args["deliver_to"].(string)
	payload.Deliver = payload.Channel != "" && payload.To != ""

	job := &store.CronJob{
		Name:     name,
		Enabled:  true,
		Schedule: sched,
		Payload:  payload,
	}
	created, err := t.cron.CreateJob(job)
	if err != nil {
		return ErrorResult(err.Error())
	}
	return NewResult(fmt.Sprintf("Created job %q (%s).", created.Name, created.ID))
}

func (t *CronTool) update(args map[string]interface{}) *Result {
	id, _ := args["job_id"].(string)
	if id == "" {
		return ErrorResult("job_id is required")
	}
	var params store.UpdateJobParams
	if name, ok := args["name"].(string); ok && name != "" {
		params.Name = &name
	}
	if enabled, ok := args["enabled"].(bool); ok {
		params.Enabled = &enabled
	}
	updated, err := t.cron.UpdateJob(id, params)
	if err != nil {
		return ErrorResult(err.Error())
	}
	data, _ := json.Marshal(updated)
	return NewResult(string(data))
}

func (t *CronTool) delete(args map[string]interface{}) *Result {
	id, _ := args["job_id"].(string)
	if id == "" {
		return ErrorResult("job_id is required")
	}
	if err := t.cron.DeleteJob(id); err != nil {
		return ErrorResult(err.Error())
	}
	return NewResult(fmt.Sprintf("Deleted job %s.", id))
}

func numArg(args map[string]interface{}, key string) float64 {
	v, _ := args[key].(float64)
	return v
}
