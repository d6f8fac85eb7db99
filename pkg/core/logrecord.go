package core

import "time"

// LogRecord is a single entry returned by the remote logs endpoint.
type LogRecord struct {
	ID        string    `json:"log_id"`
	Type      string    `json:"log_type"`
	Endpoint  string    `json:"log_endpoint"`
	Location  string    `json:"log_location"`
	Owner     string    `json:"log_owner"`
	Severity  string    `json:"log_severity"`
	Title     string    `json:"log_title"`
	Message   string    `json:"log_message"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a point-in-time view of the client's authentication state.
type Session struct {
	Token         string    `json:"-"`
	Authenticated bool      `json:"authenticated"`
	Expiry        time.Time `json:"expiry,omitempty"`
}

// Remaining returns the time left before expiry, or zero when no expiry is known.
func (s Session) Remaining(now time.Time) time.Duration {
	if s.Expiry.IsZero() {
		return 0
	}
	return s.Expiry.Sub(now)
}
