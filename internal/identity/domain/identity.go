package domain

import "time"

// Shadow is the password credential row of a user. PrevPasswordHash keeps the hash that was
// replaced by the last password change.
type Shadow struct {
	UserID           string
	PasswordHash     string
	PrevPasswordHash string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
