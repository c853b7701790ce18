package types

type RunMode string

const (
	// ModeLocal runs the event router together with the ops server
	ModeLocal RunMode = "local"
	// ModeConsumer runs only the event router
	ModeConsumer RunMode = "consumer"
	// ModeBillingRun generates the recurring charges of one period and exits
	ModeBillingRun RunMode = "billing_run"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
)
