package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	identityservice "member-service/internal/identity/service"
	"member-service/internal/passkey/ceremony"
	"member-service/internal/passkey/domain"
	"member-service/internal/platform/apperr"
	"member-service/internal/security"
	userdomain "member-service/internal/user/domain"
)

type memUserRepo struct {
	users map[string]*userdomain.User
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	return r.users[id], nil
}

func (r *memUserRepo) GetByLoginID(ctx context.Context, loginID string) (*userdomain.User, error) {
	for _, u := range r.users {
		if u.LoginID == loginID {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) GetProfile(ctx context.Context, userID string) (*userdomain.Profile, error) {
	return &userdomain.Profile{UserID: userID, Name: "Alice"}, nil
}

type memCredentialRepo struct {
	mu sync.Mutex
	m  map[string]*domain.Credential // keyed by credential id
}

func (r *memCredentialRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Credential
	for _, c := range r.m {
		if c.UserID == userID {
			c2 := *c
			out = append(out, &c2)
		}
	}
	return out, nil
}

func (r *memCredentialRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	list, err := r.ListByUser(ctx, userID)
	return len(list), err
}

func (r *memCredentialRepo) GetByCredentialID(ctx context.Context, credentialID string) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.m[credentialID]; ok {
		c2 := *c
		return &c2, nil
	}
	return nil, nil
}

func (r *memCredentialRepo) Create(ctx context.Context, c *domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[c.CredentialID]; ok {
		return apperr.ErrAlreadyExists
	}
	c2 := *c
	r.m[c.CredentialID] = &c2
	return nil
}

func (r *memCredentialRepo) AdvanceSignCount(ctx context.Context, id string, count uint32) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.m {
		if c.ID == id && c.SignCount < count {
			c.SignCount = count
			return true, nil
		}
	}
	return false, nil
}

func (r *memCredentialRepo) TouchLastUsed(ctx context.Context, id string) error { return nil }

func (r *memCredentialRepo) Delete(ctx context.Context, userID, credentialID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.m[credentialID]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(r.m, credentialID)
	return true, nil
}

func (r *memCredentialRepo) signCount(credentialID string) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m[credentialID].SignCount
}

type memChallengeStore struct {
	mu        sync.Mutex
	m         map[string]*domain.Challenge
	deleteErr error
}

func (s *memChallengeStore) Create(ctx context.Context, c *domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[c.Hash]; ok {
		return apperr.ErrStorage
	}
	s.m[c.Hash] = c
	return nil
}

func (s *memChallengeStore) GetByHash(ctx context.Context, hash string, kind domain.ChallengeKind) (*domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[hash]
	if !ok || c.Kind != kind || c.Expired(time.Now()) {
		return nil, nil
	}
	return c, nil
}

func (s *memChallengeStore) DeleteByHash(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	if _, ok := s.m[hash]; !ok {
		return false, nil
	}
	delete(s.m, hash)
	return true, nil
}

// lockstepChallengeStore holds every GetByHash until two callers have read the challenge, so
// both completions pass lookup before either claims it.
type lockstepChallengeStore struct {
	*memChallengeStore
	reads sync.WaitGroup
}

func (s *lockstepChallengeStore) GetByHash(ctx context.Context, hash string, kind domain.ChallengeKind) (*domain.Challenge, error) {
	c, err := s.memChallengeStore.GetByHash(ctx, hash, kind)
	s.reads.Done()
	s.reads.Wait()
	return c, err
}

func (s *memChallengeStore) expireAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.m {
		c.ExpiresAt = time.Now().Add(-time.Second)
	}
}

// fakeVerifier accepts JSON responses of the form {"id":..., "counter":..., "fail":...} and
// checks that the session data handed back is the one it produced.
type fakeVerifier struct {
	mu       sync.Mutex
	seq      int
	excluded [][]string
}

type fakeResponse struct {
	ID      string `json:"id"`
	Counter uint32 `json:"counter"`
	Fail    bool   `json:"fail"`
}

func (v *fakeVerifier) begin(owner ceremony.Owner) *ceremony.Begin {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.seq++
	ids := make([]string, 0, len(owner.Credentials))
	for _, c := range owner.Credentials {
		ids = append(ids, c.CredentialID)
	}
	v.excluded = append(v.excluded, ids)
	challenge := fmt.Sprintf("challenge-%d", v.seq)
	opts, _ := json.Marshal(map[string]any{"challenge": challenge, "credentials": ids})
	return &ceremony.Begin{Options: opts, Challenge: challenge, SessionData: []byte(challenge)}
}

func (v *fakeVerifier) BeginRegistration(owner ceremony.Owner) (*ceremony.Begin, error) {
	return v.begin(owner), nil
}

func (v *fakeVerifier) BeginLogin(owner ceremony.Owner) (*ceremony.Begin, error) {
	if len(owner.Credentials) == 0 {
		return nil, apperr.ErrNoCredentials
	}
	return v.begin(owner), nil
}

func parseFake(response []byte) (fakeResponse, error) {
	var r fakeResponse
	if err := json.Unmarshal(response, &r); err != nil {
		return r, err
	}
	if r.ID == "" {
		return r, errors.New("missing id")
	}
	return r, nil
}

func (v *fakeVerifier) FinishRegistration(owner ceremony.Owner, sessionData, response []byte) (*ceremony.Registered, error) {
	r, err := parseFake(response)
	if err != nil {
		return nil, err
	}
	if r.Fail || len(sessionData) == 0 {
		return nil, errors.New("bad attestation")
	}
	return &ceremony.Registered{CredentialID: r.ID, PublicKey: []byte("pk-" + r.ID), SignCount: r.Counter, Transports: []string{"internal"}}, nil
}

func (v *fakeVerifier) FinishLogin(owner ceremony.Owner, sessionData, response []byte) (*ceremony.Assertion, error) {
	r, err := parseFake(response)
	if err != nil {
		return nil, err
	}
	if r.Fail || len(sessionData) == 0 {
		return nil, errors.New("bad signature")
	}
	for _, c := range owner.Credentials {
		if c.CredentialID == r.ID {
			return &ceremony.Assertion{CredentialID: r.ID, Counter: r.Counter}, nil
		}
	}
	return nil, errors.New("credential not allowed")
}

func (v *fakeVerifier) CredentialID(response []byte) (string, error) {
	r, err := parseFake(response)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

type fakeTokens struct{ issued int }

func (f *fakeTokens) IssueTokens(ctx context.Context, user *userdomain.User) (*identityservice.AuthResult, error) {
	f.issued++
	return &identityservice.AuthResult{AccessToken: "access", RefreshToken: "refresh", UserID: user.ID}, nil
}

type passkeyFixture struct {
	svc        *PasskeyService
	creds      *memCredentialRepo
	challenges *memChallengeStore
	verifier   *fakeVerifier
	tokens     *fakeTokens
	user       *userdomain.User
}

func newPasskeyFixture(t *testing.T) *passkeyFixture {
	t.Helper()
	user := &userdomain.User{ID: "u1", LoginID: "alice@example.com", Status: userdomain.UserStatusActive, Role: userdomain.RoleMember}
	f := &passkeyFixture{
		creds:      &memCredentialRepo{m: map[string]*domain.Credential{}},
		challenges: &memChallengeStore{m: map[string]*domain.Challenge{}},
		verifier:   &fakeVerifier{},
		tokens:     &fakeTokens{},
		user:       user,
	}
	users := &memUserRepo{users: map[string]*userdomain.User{
		user.ID: user,
		"u2":    {ID: "u2", LoginID: "bob@example.com", Status: userdomain.UserStatusActive},
	}}
	f.svc = NewPasskeyService(users, f.creds, f.challenges, f.verifier, security.NewTestPepperHasher(), f.tokens, nil, Options{})
	return f
}

func response(id string, counter uint32) []byte {
	b, _ := json.Marshal(fakeResponse{ID: id, Counter: counter})
	return b
}

func (f *passkeyFixture) register(t *testing.T, userID, credID string, counter uint32) {
	t.Helper()
	ctx := context.Background()
	start, err := f.svc.StartRegistration(ctx, userID)
	if err != nil {
		t.Fatalf("StartRegistration: %v", err)
	}
	if _, err := f.svc.CompleteRegistration(ctx, userID, start.Nonce, response(credID, counter)); err != nil {
		t.Fatalf("CompleteRegistration(%s): %v", credID, err)
	}
}

func TestRegistration_CapAtFive(t *testing.T) {
	f := newPasskeyFixture(t)
	for i := 1; i <= 5; i++ {
		f.register(t, "u1", fmt.Sprintf("cred-%d", i), 0)
	}
	list, _ := f.svc.ListPasskeys(context.Background(), "u1")
	if len(list) != 5 {
		t.Fatalf("ListPasskeys = %d, want 5", len(list))
	}
	seen := map[string]bool{}
	for _, c := range list {
		seen[c.CredentialID] = true
	}
	if len(seen) != 5 {
		t.Errorf("credential ids not distinct: %v", seen)
	}
	if _, err := f.svc.StartRegistration(context.Background(), "u1"); err != apperr.ErrLimitExceeded {
		t.Errorf("sixth registration: want ErrLimitExceeded, got %v", err)
	}
}

func TestRegistration_CapRecheckedOnCompletion(t *testing.T) {
	f := newPasskeyFixture(t)
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		f.register(t, "u1", fmt.Sprintf("cred-%d", i), 0)
	}
	a, _ := f.svc.StartRegistration(ctx, "u1")
	b, _ := f.svc.StartRegistration(ctx, "u1")
	if _, err := f.svc.CompleteRegistration(ctx, "u1", a.Nonce, response("cred-5", 0)); err != nil {
		t.Fatalf("fifth: %v", err)
	}
	if _, err := f.svc.CompleteRegistration(ctx, "u1", b.Nonce, response("cred-6", 0)); err != apperr.ErrLimitExceeded {
		t.Errorf("racing sixth: want ErrLimitExceeded, got %v", err)
	}
}

func TestRegistration_ExcludesExistingCredentials(t *testing.T) {
	f := newPasskeyFixture(t)
	f.register(t, "u1", "cred-1", 0)
	if _, err := f.svc.StartRegistration(context.Background(), "u1"); err != nil {
		t.Fatalf("StartRegistration: %v", err)
	}
	last := f.verifier.excluded[len(f.verifier.excluded)-1]
	if len(last) != 1 || last[0] != "cred-1" {
		t.Errorf("excluded = %v, want [cred-1]", last)
	}
}

func TestRegistration_ChallengeSingleUse(t *testing.T) {
	f := newPasskeyFixture(t)
	ctx := context.Background()
	start, err := f.svc.StartRegistration(ctx, "u1")
	if err != nil {
		t.Fatalf("StartRegistration: %v", err)
	}
	if _, err := f.svc.CompleteRegistration(ctx, "u1", start.Nonce, response("cred-1", 0)); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	if _, err := f.svc.CompleteRegistration(ctx, "u1", start.Nonce, response("cred-2", 0)); err != apperr.ErrChallengeNotFound {
		t.Errorf("second completion: want ErrChallengeNotFound, got %v", err)
	}
}

func TestRegistration_ChallengeBoundToOwnerAndUnexpired(t *testing.T) {
	f := newPasskeyFixture(t)
	ctx := context.Background()
	start, _ := f.svc.StartRegistration(ctx, "u1")
	if _, err := f.svc.CompleteRegistration(ctx, "u2", start.Nonce, response("cred-1", 0)); err != apperr.ErrChallengeNotFound {
		t.Errorf("other owner: want ErrChallengeNotFound, got %v", err)
	}
	if _, err := f.svc.CompleteRegistration(ctx, "u1", "wrong-nonce", response("cred-1", 0)); err != apperr.ErrChallengeNotFound {
		t.Errorf("wrong nonce: want ErrChallengeNotFound, got %v", err)
	}
	f.challenges.expireAll()
	if _, err := f.svc.CompleteRegistration(ctx, "u1", start.Nonce, response("cred-1", 0)); err != apperr.ErrChallengeNotFound {
		t.Errorf("expired: want ErrChallengeNotFound, got %v", err)
	}
}

func TestRegistration_VerificationFailure(t *testing.T) {
	f := newPasskeyFixture(t)
	ctx := context.Background()
	start, _ := f.svc.StartRegistration(ctx, "u1")
	bad, _ := json.Marshal(fakeResponse{ID: "cred-1", Fail: true})
	if _, err := f.svc.CompleteRegistration(ctx, "u1", start.Nonce, bad); !errors.Is(err, apperr.ErrVerificationFailed) {
		t.Errorf("bad attestation: want ErrVerificationFailed, got %v", err)
	}
	if list, _ := f.svc.ListPasskeys(ctx, "u1"); len(list) != 0 {
		t.Errorf("failed verification stored %d credentials", len(list))
	}
}

func TestRegistration_ToleratesChallengeCleanupFailure(t *testing.T) {
	f := newPasskeyFixture(t)
	f.challenges.deleteErr = errors.New("connection reset")
	f.register(t, "u1", "cred-1", 0)
	if list, _ := f.svc.ListPasskeys(context.Background(), "u1"); len(list) != 1 {
		t.Errorf("credential should be kept when cleanup fails, have %d", len(list))
	}
}

func (f *passkeyFixture) authenticate(t *testing.T, credID string, counter uint32) error {
	t.Helper()
	ctx := context.Background()
	start, err := f.svc.StartAuthentication(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("StartAuthentication: %v", err)
	}
	_, err = f.svc.CompleteAuthentication(ctx, "alice@example.com", start.Nonce, response(credID, counter))
	return err
}

func TestAuthentication_ReplayRule(t *testing.T) {
	f := newPasskeyFixture(t)
	f.register(t, "u1", "cred-1", 5)

	for _, counter := range []uint32{5, 3} {
		if err := f.authenticate(t, "cred-1", counter); err != apperr.ErrReplayDetected {
			t.Errorf("counter %d: want ErrReplayDetected, got %v", counter, err)
		}
	}
	if f.tokens.issued != 0 {
		t.Fatalf("tokens issued on replay: %d", f.tokens.issued)
	}
	if err := f.authenticate(t, "cred-1", 6); err != nil {
		t.Fatalf("counter 6: %v", err)
	}
	if got := f.creds.signCount("cred-1"); got != 6 {
		t.Errorf("stored sign count = %d, want 6", got)
	}
	if f.tokens.issued != 1 {
		t.Errorf("tokens issued = %d, want 1", f.tokens.issued)
	}
}

func TestAuthentication_ZeroCounterAuthenticator(t *testing.T) {
	f := newPasskeyFixture(t)
	f.register(t, "u1", "cred-1", 0)
	for i := 0; i < 2; i++ {
		if err := f.authenticate(t, "cred-1", 0); err != nil {
			t.Fatalf("zero-counter login %d: %v", i, err)
		}
	}
	if err := f.authenticate(t, "cred-1", 1); err != nil {
		t.Fatalf("first counted login: %v", err)
	}
	if err := f.authenticate(t, "cred-1", 0); err != apperr.ErrReplayDetected {
		t.Errorf("counter back to zero: want ErrReplayDetected, got %v", err)
	}
}

func TestAuthentication_NoCredentials(t *testing.T) {
	f := newPasskeyFixture(t)
	ctx := context.Background()
	if _, err := f.svc.StartAuthentication(ctx, "alice@example.com"); err != apperr.ErrNoCredentials {
		t.Errorf("no passkeys: want ErrNoCredentials, got %v", err)
	}
	if _, err := f.svc.StartAuthentication(ctx, "nobody@example.com"); err != apperr.ErrNoCredentials {
		t.Errorf("unknown login: want ErrNoCredentials, got %v", err)
	}

	f.register(t, "u2", "bob-cred", 0)
	f.register(t, "u1", "cred-1", 0)
	start, _ := f.svc.StartAuthentication(ctx, "alice@example.com")
	if _, err := f.svc.CompleteAuthentication(ctx, "alice@example.com", start.Nonce, response("bob-cred", 1)); err != apperr.ErrNoCredentials {
		t.Errorf("foreign credential: want ErrNoCredentials, got %v", err)
	}
	if _, err := f.svc.CompleteAuthentication(ctx, "alice@example.com", start.Nonce, response("missing", 1)); err != apperr.ErrNoCredentials {
		t.Errorf("unknown credential: want ErrNoCredentials, got %v", err)
	}
}

func TestAuthentication_ChallengeNotFound(t *testing.T) {
	f := newPasskeyFixture(t)
	ctx := context.Background()
	f.register(t, "u1", "cred-1", 0)
	if _, err := f.svc.CompleteAuthentication(ctx, "alice@example.com", "never-issued", response("cred-1", 1)); err != apperr.ErrChallengeNotFound {
		t.Errorf("unknown nonce: want ErrChallengeNotFound, got %v", err)
	}
	// A registration challenge never satisfies a login.
	reg, _ := f.svc.StartRegistration(ctx, "u1")
	if _, err := f.svc.CompleteAuthentication(ctx, "alice@example.com", reg.Nonce, response("cred-1", 1)); err != apperr.ErrChallengeNotFound {
		t.Errorf("registration nonce: want ErrChallengeNotFound, got %v", err)
	}
	start, _ := f.svc.StartAuthentication(ctx, "alice@example.com")
	if _, err := f.svc.CompleteAuthentication(ctx, "alice@example.com", start.Nonce, response("cred-1", 1)); err != nil {
		t.Fatalf("CompleteAuthentication: %v", err)
	}
	if _, err := f.svc.CompleteAuthentication(ctx, "alice@example.com", start.Nonce, response("cred-1", 2)); err != apperr.ErrChallengeNotFound {
		t.Errorf("reused login nonce: want ErrChallengeNotFound, got %v", err)
	}
}

func TestAuthentication_ConcurrentCompletionsClaimChallengeOnce(t *testing.T) {
	f := newPasskeyFixture(t)
	ctx := context.Background()
	f.register(t, "u1", "cred-1", 0)

	store := &lockstepChallengeStore{memChallengeStore: f.challenges}
	store.reads.Add(2)
	users := &memUserRepo{users: map[string]*userdomain.User{f.user.ID: f.user}}
	svc := NewPasskeyService(users, f.creds, store, f.verifier, security.NewTestPepperHasher(), f.tokens, nil, Options{})

	start, err := svc.StartAuthentication(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("StartAuthentication: %v", err)
	}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CompleteAuthentication(ctx, "alice@example.com", start.Nonce, response("cred-1", 0))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, apperr.ErrChallengeNotFound):
			t.Errorf("losing completion: want ErrChallengeNotFound, got %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("successful completions = %d, want 1", ok)
	}
	if f.tokens.issued != 1 {
		t.Errorf("tokens issued = %d, want 1", f.tokens.issued)
	}
}

func TestRegistration_ConcurrentCompletionsClaimChallengeOnce(t *testing.T) {
	f := newPasskeyFixture(t)
	ctx := context.Background()

	store := &lockstepChallengeStore{memChallengeStore: f.challenges}
	store.reads.Add(2)
	users := &memUserRepo{users: map[string]*userdomain.User{f.user.ID: f.user}}
	svc := NewPasskeyService(users, f.creds, store, f.verifier, security.NewTestPepperHasher(), f.tokens, nil, Options{})

	start, err := svc.StartRegistration(ctx, "u1")
	if err != nil {
		t.Fatalf("StartRegistration: %v", err)
	}
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CompleteRegistration(ctx, "u1", start.Nonce, response(fmt.Sprintf("cred-%d", i), 0))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, apperr.ErrChallengeNotFound):
			t.Errorf("losing completion: want ErrChallengeNotFound, got %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("successful completions = %d, want 1", ok)
	}
	if list, _ := svc.ListPasskeys(ctx, "u1"); len(list) != 1 {
		t.Errorf("stored passkeys = %d, want 1", len(list))
	}
}

func TestDeletePasskey_Ownership(t *testing.T) {
	f := newPasskeyFixture(t)
	ctx := context.Background()
	f.register(t, "u1", "cred-1", 0)
	if err := f.svc.DeletePasskey(ctx, "u2", "cred-1"); err != apperr.ErrNoCredentials {
		t.Errorf("foreign delete: want ErrNoCredentials, got %v", err)
	}
	if err := f.svc.DeletePasskey(ctx, "u1", "cred-1"); err != nil {
		t.Fatalf("DeletePasskey: %v", err)
	}
	if err := f.svc.DeletePasskey(ctx, "u1", "cred-1"); err != apperr.ErrNoCredentials {
		t.Errorf("second delete: want ErrNoCredentials, got %v", err)
	}
}
