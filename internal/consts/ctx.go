package consts

// CtxKey is the type used for context value keys across the module.
type CtxKey string

const (
	CtxKeyLogID      CtxKey = "log_id"
	CtxKeyJobID      CtxKey = "cron_job_id"
	CtxKeySessionKey CtxKey = "session_key"
)
