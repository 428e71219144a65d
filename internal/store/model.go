package store

// Hash field names of the per-user document.
const (
	FieldRequestCount = "request_count"
	FieldResetTime    = "reset_time"
	FieldIsPremium    = "is_premium"
	FieldLastRequest  = "last_request"
	FieldUsername     = "username"
	FieldStartedChat  = "started_chat"
	FieldIsBanned     = "is_banned"
	FieldAPIKey       = "api_key"
	FieldLastActive   = "last_active"
)

// Hash field names of the aggregate stats document.
const (
	FieldTotalRequests = "total_requests"
	FieldDailyRequests = "daily_requests"
	FieldUpdatedAt     = "updated_at"
)

// Fields is a partial update. Keys not present are left untouched.
type Fields map[string]any

// User is one user's document. Timestamps are unix seconds, zero meaning unset.
type User struct {
	ID           int64
	RequestCount int
	ResetTime    int64
	IsPremium    bool
	LastRequest  int64
	Username     string
	StartedChat  bool
	IsBanned     bool
	APIKey       string // encrypted, hex
	LastActive   int64

	// Malformed is set when a quota field was present but could not be parsed.
	Malformed bool
}

// Stats is the aggregate counters document.
type Stats struct {
	TotalRequests int64
	DailyRequests int64
	UpdatedAt     int64
}
