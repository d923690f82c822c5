// Package ceremony adapts go-webauthn to the passkey service: it produces ceremony options
// and verifies attestation and assertion responses against stored credentials.
package ceremony

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"member-service/internal/passkey/domain"
	"member-service/internal/platform/apperr"
)

// Config describes the relying party.
type Config struct {
	RPID          string
	RPDisplayName string
	Origins       []string
	Timeout       time.Duration
}

// Owner is the account a ceremony runs for, with its registered passkeys.
type Owner struct {
	ID          string
	Name        string
	DisplayName string
	Credentials []*domain.Credential
}

// Begin is the result of starting a ceremony. Options is the JSON handed to the browser;
// SessionData must be stored and passed back on finish.
type Begin struct {
	Options     []byte
	Challenge   string
	SessionData []byte
}

// Registered is the credential material produced by a verified attestation.
type Registered struct {
	CredentialID    string
	PublicKey       []byte
	SignCount       uint32
	Transports      []string
	AAGUID          []byte
	AttestationType string
	BackupEligible  bool
	BackupState     bool
}

// Assertion is the outcome of a verified login: which credential signed and the counter it reported.
type Assertion struct {
	CredentialID string
	Counter      uint32
}

// Verifier runs WebAuthn ceremonies.
type Verifier interface {
	BeginRegistration(owner Owner) (*Begin, error)
	FinishRegistration(owner Owner, sessionData, response []byte) (*Registered, error)
	BeginLogin(owner Owner) (*Begin, error)
	FinishLogin(owner Owner, sessionData, response []byte) (*Assertion, error)
	// CredentialID extracts the asserted credential id from a login response without verifying it.
	CredentialID(response []byte) (string, error)
}

// WebAuthn implements Verifier with github.com/go-webauthn/webauthn.
type WebAuthn struct {
	wa *webauthn.WebAuthn
}

// New validates cfg and returns a WebAuthn verifier.
func New(cfg Config) (*WebAuthn, error) {
	if cfg.RPID == "" || len(cfg.Origins) == 0 {
		return nil, errors.New("ceremony: relying party id and origin are required")
	}
	timeout := webauthn.TimeoutConfig{Enforce: cfg.Timeout > 0, Timeout: cfg.Timeout}
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.Origins,
		Timeouts: webauthn.TimeoutsConfig{
			Login:        timeout,
			Registration: timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ceremony: %w", err)
	}
	return &WebAuthn{wa: wa}, nil
}

// BeginRegistration builds creation options excluding the owner's existing credentials.
func (w *WebAuthn) BeginRegistration(owner Owner) (*Begin, error) {
	u, err := newUser(owner)
	if err != nil {
		return nil, err
	}
	var opts []webauthn.RegistrationOption
	if len(u.credentials) > 0 {
		opts = append(opts, webauthn.WithExclusions(webauthn.Credentials(u.credentials).CredentialDescriptors()))
	}
	creation, session, err := w.wa.BeginRegistration(u, opts...)
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}
	return encodeBegin(creation, session)
}

// FinishRegistration verifies an attestation response against the stored session.
func (w *WebAuthn) FinishRegistration(owner Owner, sessionData, response []byte) (*Registered, error) {
	u, err := newUser(owner)
	if err != nil {
		return nil, err
	}
	session, err := decodeSession(sessionData)
	if err != nil {
		return nil, err
	}
	parsed, err := protocol.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrVerificationFailed, err)
	}
	cred, err := w.wa.CreateCredential(u, session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrVerificationFailed, err)
	}
	if cred == nil || len(cred.ID) == 0 || len(cred.PublicKey) == 0 {
		return nil, fmt.Errorf("%w: attestation carried no credential", apperr.ErrVerificationFailed)
	}
	transports := make([]string, 0, len(cred.Transport))
	for _, t := range cred.Transport {
		transports = append(transports, string(t))
	}
	return &Registered{
		CredentialID:    EncodeID(cred.ID),
		PublicKey:       cred.PublicKey,
		SignCount:       cred.Authenticator.SignCount,
		Transports:      transports,
		AAGUID:          cred.Authenticator.AAGUID,
		AttestationType: cred.AttestationType,
		BackupEligible:  cred.Flags.BackupEligible,
		BackupState:     cred.Flags.BackupState,
	}, nil
}

// BeginLogin builds request options allowing every credential of the owner.
func (w *WebAuthn) BeginLogin(owner Owner) (*Begin, error) {
	u, err := newUser(owner)
	if err != nil {
		return nil, err
	}
	if len(u.credentials) == 0 {
		return nil, apperr.ErrNoCredentials
	}
	assertion, session, err := w.wa.BeginLogin(u)
	if err != nil {
		return nil, fmt.Errorf("begin login: %w", err)
	}
	return encodeBegin(assertion, session)
}

// FinishLogin verifies an assertion signature with the stored public key and returns the
// counter the authenticator reported. Counter policy is left to the caller.
func (w *WebAuthn) FinishLogin(owner Owner, sessionData, response []byte) (*Assertion, error) {
	u, err := newUser(owner)
	if err != nil {
		return nil, err
	}
	session, err := decodeSession(sessionData)
	if err != nil {
		return nil, err
	}
	parsed, err := protocol.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrVerificationFailed, err)
	}
	cred, err := w.wa.ValidateLogin(u, session, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrVerificationFailed, err)
	}
	return &Assertion{
		CredentialID: EncodeID(cred.ID),
		Counter:      parsed.Response.AuthenticatorData.Counter,
	}, nil
}

// CredentialID parses a login response and returns its credential id.
func (w *WebAuthn) CredentialID(response []byte) (string, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrVerificationFailed, err)
	}
	return EncodeID(parsed.RawID), nil
}

// EncodeID renders a raw credential id the way it is stored.
func EncodeID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeID reverses EncodeID.
func DecodeID(id string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(id)
}

func encodeBegin(options any, session *webauthn.SessionData) (*Begin, error) {
	if session == nil {
		return nil, errors.New("ceremony: missing session data")
	}
	opts, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	sd, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return &Begin{Options: opts, Challenge: session.Challenge, SessionData: sd}, nil
}

func decodeSession(b []byte) (webauthn.SessionData, error) {
	var s webauthn.SessionData
	if err := json.Unmarshal(b, &s); err != nil {
		return s, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

type user struct {
	owner       Owner
	credentials []webauthn.Credential
}

func newUser(owner Owner) (*user, error) {
	creds := make([]webauthn.Credential, 0, len(owner.Credentials))
	for _, c := range owner.Credentials {
		wc, err := toWebAuthn(c)
		if err != nil {
			return nil, err
		}
		creds = append(creds, wc)
	}
	return &user{owner: owner, credentials: creds}, nil
}

func (u *user) WebAuthnID() []byte                         { return []byte(u.owner.ID) }
func (u *user) WebAuthnName() string                       { return u.owner.Name }
func (u *user) WebAuthnDisplayName() string                { return u.owner.DisplayName }
func (u *user) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

func toWebAuthn(c *domain.Credential) (webauthn.Credential, error) {
	id, err := DecodeID(c.CredentialID)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("decode credential id: %w", err)
	}
	transports := make([]protocol.AuthenticatorTransport, 0, len(c.Transports))
	for _, t := range c.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}
	return webauthn.Credential{
		ID:              id,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Flags: webauthn.CredentialFlags{
			UserPresent:    true,
			UserVerified:   true,
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.SignCount,
		},
	}, nil
}
