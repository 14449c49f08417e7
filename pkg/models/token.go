package models

import "time"

// APIToken is a long-lived caller credential. Only the sha256 digest of the
// raw token is ever stored.
type APIToken struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	TokenHash string     `json:"-"`
	UserID    string     `json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the token can no longer be used.
func (t APIToken) Revoked() bool {
	return t.RevokedAt != nil
}
