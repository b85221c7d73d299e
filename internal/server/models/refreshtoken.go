package models

import "time"

// RefreshToken is a server-side refresh token record. Value is the opaque
// string handed to the client. ExpiresAt is fixed at creation. Revoked
// never flips back, and ReplacedBy, the id of the successor issued by
// rotation, is set at most once and implies Revoked.
type RefreshToken struct {
	ID         int64
	UserID     int64
	Value      string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Revoked    bool
	ReplacedBy *int64
}

// IsValid reports whether the token is neither revoked nor expired at now.
// A token is still valid at exactly ExpiresAt.
func (t *RefreshToken) IsValid(now time.Time) bool {
	return !t.Revoked && !now.After(t.ExpiresAt)
}

// IsReplaced reports whether the token was already rotated.
func (t *RefreshToken) IsReplaced() bool {
	return t.ReplacedBy != nil
}
