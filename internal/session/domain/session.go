package domain

import "time"

// Session is one issued refresh-token lineage. Hash is the correlation hash embedded in both
// tokens of the pair; ExpiresAt mirrors the refresh token expiry and is advisory.
type Session struct {
	ID        string
	UserID    string
	Hash      string
	CreatedAt time.Time
	ExpiresAt time.Time
}
