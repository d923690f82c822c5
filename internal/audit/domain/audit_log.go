package domain

import "time"

// AuditLog is one security event: a login, a token rotation, a passkey change, a denied RPC.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
