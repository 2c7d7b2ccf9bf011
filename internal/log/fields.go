package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldSourceID    = "source_id"
	FieldExpenseID   = "expense_id"
	FieldAmountPaise = "amount_paise"
	FieldBalance     = "balance_paise"
	FieldStrategy    = "strategy"
	FieldVoicePath   = "extraction_path"
	FieldAttempt     = "attempt"
	FieldBlob        = "blob"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentVoice     = "voice"
	ComponentLLM       = "llm"
	ComponentSession   = "session"
	ComponentRateLimit = "rate_limit"
	ComponentAuth      = "auth"
	ComponentBackend   = "backend"
	ComponentFeed      = "feed"
)

// Operations defines standard operation names
const (
	OpCreate     = "create"
	OpUpdate     = "update"
	OpDelete     = "delete"
	OpDeposit    = "deposit"
	OpDeactivate = "deactivate"
	OpSeed       = "seed"
	OpExtract    = "extract"
	OpSync       = "sync"
	OpValidate   = "validate"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeRateLimit     = "rate_limit_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error text; a nil error adds nothing.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithErrorType(errType string) LogFields {
	f[FieldErrorType] = errType
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithLedger adds the source, expense and amount of a balance mutation.
// Zero expense ids are omitted.
func (f LogFields) WithLedger(sourceID string, expenseID int64, amountPaise int64) LogFields {
	f[FieldSourceID] = sourceID
	if expenseID != 0 {
		f[FieldExpenseID] = expenseID
	}
	f[FieldAmountPaise] = amountPaise
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
