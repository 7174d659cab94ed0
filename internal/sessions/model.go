package sessions

import "time"

// Session binds a session id to the tender backend token it was issued for.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Role       string    `json:"role,omitempty"`
	Token      string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
