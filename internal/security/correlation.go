package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const (
	saltBytes  = 8
	nonceBytes = 10
)

// PepperHasher derives correlation hashes that bind signed tokens and ceremony
// follow-ups to storage rows. The pepper is read-only after construction.
type PepperHasher struct {
	pepper []byte
}

// NewPepperHasher returns a PepperHasher mixing pepper into every digest.
func NewPepperHasher(pepper string) *PepperHasher {
	return &PepperHasher{pepper: []byte(pepper)}
}

// CorrelationHash returns sha256(seed || pepper || random salt) hex-encoded.
// Every call yields a fresh, unguessable value; use it for session rows.
func (h *PepperHasher) CorrelationHash(seed string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	d := sha256.New()
	d.Write([]byte(seed))
	d.Write(h.pepper)
	d.Write(salt)
	return hex.EncodeToString(d.Sum(nil)), nil
}

// VerificationHash returns sha256(seed || pepper) hex-encoded. The result is
// recomputable from the same seed, which ceremony follow-up calls rely on.
func (h *PepperHasher) VerificationHash(seed string) string {
	d := sha256.New()
	d.Write([]byte(seed))
	d.Write(h.pepper)
	return hex.EncodeToString(d.Sum(nil))
}

// Seed joins parts as |a|b|...| so that distinct part lists never collide.
func Seed(parts ...string) string {
	var b strings.Builder
	b.WriteByte('|')
	for _, p := range parts {
		b.WriteString(p)
		b.WriteByte('|')
	}
	return b.String()
}

// NewNonce returns a random hex nonce handed to clients for ceremony correlation.
func NewNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashEqual compares two hex hashes in constant time.
func HashEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
