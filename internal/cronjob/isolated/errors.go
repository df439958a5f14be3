package isolated

import "errors"

var (
	ErrConfiguration  = errors.New("cron run misconfigured")
	ErrInvalidTarget  = errors.New("invalid thread target")
	ErrThreadCreation = errors.New("thread creation failed")
	ErrExecution      = errors.New("agent turn failed")
	ErrDelivery       = errors.New("delivery failed")
)

// Status is the terminal state of one isolated run.
type Status string

const (
	StatusCompleted        Status = "completed"
	StatusAbortedConfig    Status = "aborted-config"
	StatusAbortedExecution Status = "aborted-execution"
	StatusFailedDelivery   Status = "failed-delivery"
	StatusSkipped          Status = "skipped"
)
