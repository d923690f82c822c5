package domain

import "time"

// MaxPerOwnerDefault is the default cap on registered passkeys per user.
const MaxPerOwnerDefault = 5

// Credential is one registered authenticator.
type Credential struct {
	ID              string
	UserID          string
	CredentialID    string // base64url (no padding) of the authenticator credential id
	PublicKey       []byte // COSE-encoded key
	SignCount       uint32
	Transports      []string
	AAGUID          []byte
	AttestationType string
	BackupEligible  bool
	BackupState     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ChallengeKind separates registration from login ceremonies.
type ChallengeKind string

const (
	ChallengeRegistration ChallengeKind = "registration"
	ChallengeLogin        ChallengeKind = "login"
)

// Challenge is one outstanding ceremony. Hash is derived from the user id and the nonce handed
// to the client; SessionData is the serialized ceremony state needed for verification.
type Challenge struct {
	ID          string
	UserID      string
	Kind        ChallengeKind
	Challenge   string
	Hash        string
	SessionData []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the challenge is no longer usable at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
