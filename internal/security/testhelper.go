package security

import "time"

// Test secrets for unit tests only. Do not use in production.
const (
	testAccessSecret  = "test-access-secret"
	testRefreshSecret = "test-refresh-secret"
	testPepper        = "test-pepper"
)

// NewTestTokenIssuer returns a TokenIssuer signed with fixed test secrets.
// For unit tests only. Callers must not use in production.
func NewTestTokenIssuer() *TokenIssuer {
	p, err := NewTokenIssuer([]byte(testAccessSecret), []byte(testRefreshSecret), "test-issuer", 15*time.Minute, 24*time.Hour)
	if err != nil {
		panic(err)
	}
	return p
}

// NewTestPepperHasher returns a PepperHasher with a fixed test pepper.
func NewTestPepperHasher() *PepperHasher {
	return NewPepperHasher(testPepper)
}
