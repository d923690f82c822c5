package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	identityservice "member-service/internal/identity/service"
	"member-service/internal/passkey/ceremony"
	"member-service/internal/passkey/domain"
	"member-service/internal/platform/apperr"
	"member-service/internal/security"
	userdomain "member-service/internal/user/domain"
)

// Audit actions written by the passkey service.
const (
	ActionPasskeyRegistered = "passkey_registered"
	ActionPasskeyRemoved    = "passkey_removed"
	ActionPasskeyLogin      = "login_success"
	ActionReplayDetected    = "passkey_replay_detected"
)

// DefaultChallengeTTL bounds how long a ceremony may stay open.
const DefaultChallengeTTL = 600 * time.Second

// UserRepo is the minimal user repository needed by the passkey service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByLoginID(ctx context.Context, loginID string) (*userdomain.User, error)
	GetProfile(ctx context.Context, userID string) (*userdomain.Profile, error)
}

// CredentialRepo is the minimal passkey repository needed by the passkey service.
type CredentialRepo interface {
	ListByUser(ctx context.Context, userID string) ([]*domain.Credential, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	GetByCredentialID(ctx context.Context, credentialID string) (*domain.Credential, error)
	Create(ctx context.Context, c *domain.Credential) error
	AdvanceSignCount(ctx context.Context, id string, count uint32) (bool, error)
	TouchLastUsed(ctx context.Context, id string) error
	Delete(ctx context.Context, userID, credentialID string) (bool, error)
}

// ChallengeStore is the minimal challenge store needed by the passkey service.
type ChallengeStore interface {
	Create(ctx context.Context, c *domain.Challenge) error
	GetByHash(ctx context.Context, hash string, kind domain.ChallengeKind) (*domain.Challenge, error)
	DeleteByHash(ctx context.Context, hash string) (bool, error)
}

// TokenIssuer mints a token pair and session for an authenticated user.
type TokenIssuer interface {
	IssueTokens(ctx context.Context, user *userdomain.User) (*identityservice.AuthResult, error)
}

// AuditLogger records security events. Implementations are best-effort.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource, metadata string)
}

// Options tunes the passkey service.
type Options struct {
	MaxPerOwner  int
	ChallengeTTL time.Duration
}

// Start is returned by the Start* ceremonies. Options is the WebAuthn JSON for the browser;
// Nonce must be echoed back on completion.
type Start struct {
	Options []byte
	Nonce   string
}

// PasskeyService drives WebAuthn registration and authentication ceremonies.
type PasskeyService struct {
	users        UserRepo
	credentials  CredentialRepo
	challenges   ChallengeStore
	verifier     ceremony.Verifier
	pepper       *security.PepperHasher
	tokens       TokenIssuer
	audit        AuditLogger
	maxPerOwner  int
	challengeTTL time.Duration
	now          func() time.Time
}

// NewPasskeyService returns a PasskeyService. Zero options fall back to the defaults; audit may be nil.
func NewPasskeyService(
	users UserRepo,
	credentials CredentialRepo,
	challenges ChallengeStore,
	verifier ceremony.Verifier,
	pepper *security.PepperHasher,
	tokens TokenIssuer,
	audit AuditLogger,
	opts Options,
) *PasskeyService {
	if opts.MaxPerOwner <= 0 {
		opts.MaxPerOwner = domain.MaxPerOwnerDefault
	}
	if opts.ChallengeTTL <= 0 {
		opts.ChallengeTTL = DefaultChallengeTTL
	}
	return &PasskeyService{
		users:        users,
		credentials:  credentials,
		challenges:   challenges,
		verifier:     verifier,
		pepper:       pepper,
		tokens:       tokens,
		audit:        audit,
		maxPerOwner:  opts.MaxPerOwner,
		challengeTTL: opts.ChallengeTTL,
		now:          time.Now,
	}
}

// StartRegistration opens a registration ceremony for an authenticated user.
func (s *PasskeyService) StartRegistration(ctx context.Context, userID string) (*Start, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	creds, err := s.credentials.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(creds) >= s.maxPerOwner {
		return nil, apperr.ErrLimitExceeded
	}
	owner, err := s.owner(ctx, user, creds)
	if err != nil {
		return nil, err
	}
	begin, err := s.verifier.BeginRegistration(owner)
	if err != nil {
		return nil, err
	}
	return s.openChallenge(ctx, user.ID, domain.ChallengeRegistration, begin)
}

// CompleteRegistration verifies the attestation for the challenge identified by nonce and
// stores the new passkey.
func (s *PasskeyService) CompleteRegistration(ctx context.Context, userID, nonce string, attestation []byte) (*domain.Credential, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ch, err := s.lookupChallenge(ctx, user.ID, nonce, domain.ChallengeRegistration)
	if err != nil {
		return nil, err
	}
	n, err := s.credentials.CountByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if n >= s.maxPerOwner {
		return nil, apperr.ErrLimitExceeded
	}
	owner, err := s.owner(ctx, user, nil)
	if err != nil {
		return nil, err
	}
	reg, err := s.verifier.FinishRegistration(owner, ch.SessionData, attestation)
	if err != nil {
		return nil, asVerificationFailure(err)
	}
	if reg == nil || reg.CredentialID == "" || len(reg.PublicKey) == 0 {
		return nil, fmt.Errorf("%w: no credential material", apperr.ErrVerificationFailed)
	}
	now := s.now().UTC()
	cred := &domain.Credential{
		ID:              uuid.New().String(),
		UserID:          user.ID,
		CredentialID:    reg.CredentialID,
		PublicKey:       reg.PublicKey,
		SignCount:       reg.SignCount,
		Transports:      reg.Transports,
		AAGUID:          reg.AAGUID,
		AttestationType: reg.AttestationType,
		BackupEligible:  reg.BackupEligible,
		BackupState:     reg.BackupState,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.consumeChallenge(ctx, ch); err != nil {
		return nil, err
	}
	if err := s.credentials.Create(ctx, cred); err != nil {
		return nil, err
	}
	s.logEvent(ctx, user.ID, ActionPasskeyRegistered, "passkey", fmt.Sprintf(`{"credential_id":%q}`, cred.CredentialID))
	return cred, nil
}

// StartAuthentication opens a login ceremony for loginID allowing every registered passkey.
func (s *PasskeyService) StartAuthentication(ctx context.Context, loginID string) (*Start, error) {
	user, err := s.users.GetByLoginID(ctx, normalizeLoginID(loginID))
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active() {
		return nil, apperr.ErrNoCredentials
	}
	creds, err := s.credentials.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, apperr.ErrNoCredentials
	}
	owner, err := s.owner(ctx, user, creds)
	if err != nil {
		return nil, err
	}
	begin, err := s.verifier.BeginLogin(owner)
	if err != nil {
		return nil, err
	}
	return s.openChallenge(ctx, user.ID, domain.ChallengeLogin, begin)
}

// CompleteAuthentication verifies an assertion, enforces the signature counter and issues a
// token pair exactly like password login.
//
// A reported counter that does not exceed the stored one is rejected with
// apperr.ErrReplayDetected, except when both are zero, which is how authenticators without a
// counter report.
func (s *PasskeyService) CompleteAuthentication(ctx context.Context, loginID, nonce string, assertion []byte) (*identityservice.AuthResult, error) {
	user, err := s.users.GetByLoginID(ctx, normalizeLoginID(loginID))
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active() {
		return nil, apperr.ErrNoCredentials
	}
	credID, err := s.verifier.CredentialID(assertion)
	if err != nil {
		return nil, asVerificationFailure(err)
	}
	cred, err := s.credentials.GetByCredentialID(ctx, credID)
	if err != nil {
		return nil, err
	}
	if cred == nil || cred.UserID != user.ID {
		return nil, apperr.ErrNoCredentials
	}
	ch, err := s.lookupChallenge(ctx, user.ID, nonce, domain.ChallengeLogin)
	if err != nil {
		return nil, err
	}
	owner, err := s.owner(ctx, user, []*domain.Credential{cred})
	if err != nil {
		return nil, err
	}
	result, err := s.verifier.FinishLogin(owner, ch.SessionData, assertion)
	if err != nil {
		return nil, asVerificationFailure(err)
	}
	if result == nil || result.CredentialID != cred.CredentialID {
		return nil, fmt.Errorf("%w: assertion credential mismatch", apperr.ErrVerificationFailed)
	}
	if err := s.consumeChallenge(ctx, ch); err != nil {
		return nil, err
	}

	if err := s.applyCounter(ctx, cred, result.Counter); err != nil {
		if errors.Is(err, apperr.ErrReplayDetected) {
			s.logEvent(ctx, user.ID, ActionReplayDetected, "passkey",
				fmt.Sprintf(`{"credential_id":%q,"stored":%d,"reported":%d}`, cred.CredentialID, cred.SignCount, result.Counter))
		}
		return nil, err
	}
	res, err := s.tokens.IssueTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, user.ID, ActionPasskeyLogin, "session", "passkey")
	return res, nil
}

func (s *PasskeyService) applyCounter(ctx context.Context, cred *domain.Credential, reported uint32) error {
	if reported == 0 && cred.SignCount == 0 {
		return s.credentials.TouchLastUsed(ctx, cred.ID)
	}
	if reported <= cred.SignCount {
		return apperr.ErrReplayDetected
	}
	advanced, err := s.credentials.AdvanceSignCount(ctx, cred.ID, reported)
	if err != nil {
		return err
	}
	if !advanced {
		return apperr.ErrReplayDetected
	}
	return nil
}

// ListPasskeys returns the user's registered passkeys.
func (s *PasskeyService) ListPasskeys(ctx context.Context, userID string) ([]*domain.Credential, error) {
	return s.credentials.ListByUser(ctx, userID)
}

// DeletePasskey removes a passkey after checking it belongs to userID. A missing or foreign
// credential yields apperr.ErrNoCredentials.
func (s *PasskeyService) DeletePasskey(ctx context.Context, userID, credentialID string) error {
	if credentialID == "" {
		return fmt.Errorf("%w: credential id is required", apperr.ErrInvalidArgument)
	}
	ok, err := s.credentials.Delete(ctx, userID, credentialID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNoCredentials
	}
	s.logEvent(ctx, userID, ActionPasskeyRemoved, "passkey", fmt.Sprintf(`{"credential_id":%q}`, credentialID))
	return nil
}

func (s *PasskeyService) activeUser(ctx context.Context, userID string) (*userdomain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active() {
		return nil, apperr.ErrInvalidToken
	}
	return user, nil
}

func (s *PasskeyService) owner(ctx context.Context, user *userdomain.User, creds []*domain.Credential) (ceremony.Owner, error) {
	display := user.LoginID
	profile, err := s.users.GetProfile(ctx, user.ID)
	if err != nil {
		return ceremony.Owner{}, err
	}
	if profile != nil && profile.Name != "" {
		display = profile.Name
	}
	return ceremony.Owner{ID: user.ID, Name: user.LoginID, DisplayName: display, Credentials: creds}, nil
}

func (s *PasskeyService) challengeHash(userID, nonce string) string {
	return s.pepper.VerificationHash(security.Seed(userID, nonce))
}

func (s *PasskeyService) openChallenge(ctx context.Context, userID string, kind domain.ChallengeKind, begin *ceremony.Begin) (*Start, error) {
	nonce, err := security.NewNonce()
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	now := s.now().UTC()
	ch := &domain.Challenge{
		ID:          uuid.New().String(),
		UserID:      userID,
		Kind:        kind,
		Challenge:   begin.Challenge,
		Hash:        s.challengeHash(userID, nonce),
		SessionData: begin.SessionData,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.challengeTTL),
	}
	if err := s.challenges.Create(ctx, ch); err != nil {
		return nil, err
	}
	return &Start{Options: begin.Options, Nonce: nonce}, nil
}

func (s *PasskeyService) lookupChallenge(ctx context.Context, userID, nonce string, kind domain.ChallengeKind) (*domain.Challenge, error) {
	if nonce == "" {
		return nil, apperr.ErrChallengeNotFound
	}
	ch, err := s.challenges.GetByHash(ctx, s.challengeHash(userID, nonce), kind)
	if err != nil {
		return nil, err
	}
	if ch == nil || ch.UserID != userID || ch.Expired(s.now()) {
		return nil, apperr.ErrChallengeNotFound
	}
	return ch, nil
}

// consumeChallenge claims ch for the calling completion. A completion that lost the claim to a
// concurrent one gets apperr.ErrChallengeNotFound. A failing store only delays cleanup to expiry.
func (s *PasskeyService) consumeChallenge(ctx context.Context, ch *domain.Challenge) error {
	ok, err := s.challenges.DeleteByHash(ctx, ch.Hash)
	if err != nil {
		log.Printf("passkey: delete consumed challenge %s: %v", ch.ID, err)
		return nil
	}
	if !ok {
		return apperr.ErrChallengeNotFound
	}
	return nil
}

func (s *PasskeyService) logEvent(ctx context.Context, userID, action, resource, metadata string) {
	if s.audit != nil {
		s.audit.LogEvent(ctx, userID, action, resource, metadata)
	}
}

func asVerificationFailure(err error) error {
	if apperr.Known(err) {
		return err
	}
	return fmt.Errorf("%w: %v", apperr.ErrVerificationFailed, err)
}

func normalizeLoginID(id string) string {
	return strings.TrimSpace(strings.ToLower(id))
}
