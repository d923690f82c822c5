package authv1

import (
	"encoding/json"
	"time"
)

type RegisterRequest struct {
	LoginID  string `json:"login_id"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type RegisterResponse struct {
	UserID  string `json:"user_id"`
	LoginID string `json:"login_id"`
}

type LoginRequest struct {
	LoginID  string `json:"login_id"`
	Password string `json:"password"`
}

// AuthResponse carries a freshly issued token pair.
type AuthResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	UserID           string    `json:"user_id"`
}

type RefreshRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest is empty: the session is identified by the caller's access token.
type LogoutRequest struct{}

type LogoutResponse struct{}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type ChangePasswordResponse struct{}

type RevokeSessionsRequest struct {
	UserID string `json:"user_id"`
}

type RevokeSessionsResponse struct {
	Revoked int64 `json:"revoked"`
}

type StartPasskeyRegistrationRequest struct{}

// StartPasskeyResponse carries the WebAuthn options for the browser and the nonce to echo back.
type StartPasskeyResponse struct {
	Options json.RawMessage `json:"options"`
	Nonce   string          `json:"nonce"`
}

type CompletePasskeyRegistrationRequest struct {
	Nonce string `json:"nonce"`
	// Attestation is the PublicKeyCredential JSON produced by navigator.credentials.create.
	Attestation json.RawMessage `json:"attestation"`
}

type CompletePasskeyRegistrationResponse struct {
	Passkey *Passkey `json:"passkey"`
}

type StartPasskeyAuthenticationRequest struct {
	LoginID string `json:"login_id"`
}

type CompletePasskeyAuthenticationRequest struct {
	LoginID string `json:"login_id"`
	Nonce   string `json:"nonce"`
	// Assertion is the PublicKeyCredential JSON produced by navigator.credentials.get.
	Assertion json.RawMessage `json:"assertion"`
}

type ListPasskeysRequest struct{}

type ListPasskeysResponse struct {
	Passkeys []*Passkey `json:"passkeys"`
}

type DeletePasskeyRequest struct {
	CredentialID string `json:"credential_id"`
}

type DeletePasskeyResponse struct{}

// Passkey is the client view of a registered credential. Key material is never returned.
type Passkey struct {
	CredentialID string    `json:"credential_id"`
	Transports   []string  `json:"transports,omitempty"`
	SignCount    uint32    `json:"sign_count"`
	BackedUp     bool      `json:"backed_up"`
	CreatedAt    time.Time `json:"created_at"`
}

type GetMeRequest struct{}

// GetMeResponse describes the calling member.
type GetMeResponse struct {
	UserID    string    `json:"user_id"`
	LoginID   string    `json:"login_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CompanyID string    `json:"company_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ListSessionsRequest struct{}

type ListSessionsResponse struct {
	Sessions []*Session `json:"sessions"`
}

// Session is the client view of a refresh-token lineage. The correlation hash is never returned.
type Session struct {
	ID        string    `json:"id"`
	Current   bool      `json:"current"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RevokeSessionRequest struct {
	SessionID string `json:"session_id"`
}

type RevokeSessionResponse struct{}

// ListAuditEventsRequest lists the caller's events, or another member's when UserID is set and
// the caller is an admin over them.
type ListAuditEventsRequest struct {
	UserID string `json:"user_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type ListAuditEventsResponse struct {
	Events []*AuditEvent `json:"events"`
}

type AuditEvent struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
