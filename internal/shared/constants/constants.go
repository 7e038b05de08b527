package constants

const (
	// Environment constants
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	// Default pagination
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100

	// HTTP Headers
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"
	HeaderXForwardedFor = "X-Forwarded-For"

	// Context keys
	ContextKeyUserID    = "user_id"
	ContextKeyUserSID   = "user_sid"
	ContextKeyUserRole  = "user_role"
	ContextKeyNodeID    = "node_id"
	ContextKeyNodeSID   = "node_sid"
	ContextKeyRequestID = "request_id"

	// Database table names
	TableUsers              = "users"
	TableNodes              = "nodes"
	TablePeerSessions       = "peer_sessions"
	TableCreditTransactions = "credit_transactions"

	// Transaction history page served to clients
	CreditHistoryLimit = 50

	// Transparency history bounds
	TransparencyDefaultDays = 7
	TransparencyMaxDays     = 30
	TransparencyMaxRows     = 200

	// Error messages
	ErrMsgInternalServerError = "Internal server error occurred"
	ErrMsgResourceNotFound    = "Resource not found"
	ErrMsgUnauthorized        = "Unauthorized access"
	ErrMsgForbidden           = "Access forbidden"
	ErrMsgValidationFailed    = "Validation failed"
)
