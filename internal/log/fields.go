package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldEmail      = "email"
	FieldUserID     = "user_id"
	FieldExpenseID  = "expense_id"
	FieldAmount     = "amount"
	FieldCategory   = "category"
	FieldCount      = "count"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentAuth    = "auth"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentMail    = "mail"
	ComponentWorker  = "worker"
)

// Operations defines standard operation names
const (
	OpRequestChallenge = "request_challenge"
	OpVerifyChallenge  = "verify_challenge"
	OpCreate           = "create"
	OpRead             = "read"
	OpUpdate           = "update"
	OpDelete           = "delete"
	OpList             = "list"
	OpPurgeMonth       = "purge_month"
	OpCleanup          = "cleanup"
	OpShutdown         = "shutdown"
	OpStartup          = "startup"
)
