package session

// Session is the cached descriptor of one authenticated session.
type Session struct {
	SessionID string
	UserID    string
	Email     string
	// CreatedAt is a unix timestamp in seconds.
	CreatedAt int64
}
