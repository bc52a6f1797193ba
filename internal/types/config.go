package types

type RunMode string

const (
	// ModeLocal runs the API server and the statement scheduler in one process
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server, processing is driven by the cron endpoint
	ModeAPI RunMode = "api"
	// ModeWorker runs just the statement scheduler
	ModeWorker RunMode = "worker"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
