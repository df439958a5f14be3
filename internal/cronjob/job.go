package cronjob

import (
	"fmt"
	"strings"
)

// ScheduleKind defines how a job's execution time is determined.
type ScheduleKind string

const (
	// ScheduleAt fires once at an RFC 3339 timestamp.
	ScheduleAt ScheduleKind = "at"
	// ScheduleEvery runs every EveryMs milliseconds, aligned to AnchorMs.
	ScheduleEvery ScheduleKind = "every"
	// ScheduleCron uses a standard 5-field cron expression in Tz.
	ScheduleCron ScheduleKind = "cron"
)

type Schedule struct {
	Kind     ScheduleKind `json:"kind"`
	At       string       `json:"at,omitempty"`
	EveryMs  int64        `json:"everyMs,omitempty"`
	AnchorMs int64        `json:"anchorMs,omitempty"`
	Expr     string       `json:"expr,omitempty"`
	Tz       string       `json:"tz,omitempty"`
}

// SessionTarget controls which conversation context a job runs in.
type SessionTarget string

const (
	// SessionMain runs the job against the agent's main session.
	SessionMain SessionTarget = "main"
	// SessionIsolated runs the job in a session keyed "cron:<jobId>".
	SessionIsolated SessionTarget = "isolated"
)

type WakeMode string

const (
	WakeNow           WakeMode = "now"
	WakeNextHeartbeat WakeMode = "next-heartbeat"
)

type PayloadKind string

const (
	PayloadAgentTurn   PayloadKind = "agentTurn"
	PayloadSystemEvent PayloadKind = "systemEvent"
)

// Payload is the tagged work item of a job. agentTurn fields and the
// systemEvent Text share one struct; Kind selects which are meaningful.
type Payload struct {
	Kind PayloadKind `json:"kind"`

	// agentTurn
	Message           string `json:"message,omitempty"`
	Deliver           bool   `json:"deliver,omitempty"`
	Channel           string `json:"channel,omitempty"`
	To                string `json:"to,omitempty"`
	AccountID         string `json:"accountId,omitempty"`
	ThreadName        string `json:"threadName,omitempty"`
	Model             string `json:"model,omitempty"`
	BestEffortDeliver bool   `json:"bestEffortDeliver,omitempty"`

	// systemEvent
	Text string `json:"text,omitempty"`
}

// Prompt returns the text the agent receives for this payload.
func (p Payload) Prompt() string {
	if p.Kind == PayloadSystemEvent {
		return p.Text
	}
	return p.Message
}

// State is scheduler-owned runtime bookkeeping.
type State struct {
	NextRunAtMs       int64  `json:"nextRunAtMs,omitempty"`
	RunningAtMs       int64  `json:"runningAtMs,omitempty"`
	LastRunAtMs       int64  `json:"lastRunAtMs,omitempty"`
	LastStatus        string `json:"lastStatus,omitempty"`
	LastError         string `json:"lastError,omitempty"`
	LastDurationMs    int64  `json:"lastDurationMs,omitempty"`
	ConsecutiveErrors int    `json:"consecutiveErrors"`
}

// Job describes a single scheduled unit of work.
type Job struct {
	ID             string        `json:"id"`
	AgentID        string        `json:"agentId,omitempty"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Enabled        bool          `json:"enabled"`
	DeleteAfterRun bool          `json:"deleteAfterRun,omitempty"`
	CreatedAtMs    int64         `json:"createdAtMs"`
	UpdatedAtMs    int64         `json:"updatedAtMs"`
	Schedule       Schedule      `json:"schedule"`
	SessionTarget  SessionTarget `json:"sessionTarget"`
	WakeMode       WakeMode      `json:"wakeMode,omitempty"`
	Payload        Payload       `json:"payload"`
	State          State         `json:"state"`
}

func (j *Job) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return fmt.Errorf("job id is required")
	}
	switch j.Payload.Kind {
	case PayloadAgentTurn:
		if strings.TrimSpace(j.Payload.Message) == "" {
			return fmt.Errorf("job %s: agentTurn payload requires a message", j.ID)
		}
	case PayloadSystemEvent:
		if strings.TrimSpace(j.Payload.Text) == "" {
			return fmt.Errorf("job %s: systemEvent payload requires text", j.ID)
		}
	default:
		return fmt.Errorf("job %s: unknown payload kind %q", j.ID, j.Payload.Kind)
	}
	switch j.SessionTarget {
	case SessionIsolated, SessionMain, "":
	default:
		return fmt.Errorf("job %s: unknown session target %q", j.ID, j.SessionTarget)
	}
	return j.Schedule.Validate()
}

// SessionKey returns the base session key a fire of this job runs under.
func (j *Job) SessionKey() string {
	return "cron:" + j.ID
}
