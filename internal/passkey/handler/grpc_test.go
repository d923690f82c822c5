package handler

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	authv1 "member-service/api/auth/v1"
	identityservice "member-service/internal/identity/service"
	"member-service/internal/passkey/domain"
	"member-service/internal/passkey/service"
	"member-service/internal/platform/apperr"
	"member-service/internal/server/interceptors"
)

type fakePasskeys struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakePasskeys) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakePasskeys) StartRegistration(ctx context.Context, userID string) (*service.Start, error) {
	if err := f.record("start-reg:" + userID); err != nil {
		return nil, err
	}
	return &service.Start{Options: []byte(`{"publicKey":{}}`), Nonce: "n1"}, nil
}

func (f *fakePasskeys) CompleteRegistration(ctx context.Context, userID, nonce string, attestation []byte) (*domain.Credential, error) {
	if err := f.record("complete-reg:" + userID + ":" + nonce); err != nil {
		return nil, err
	}
	return &domain.Credential{CredentialID: "cred-1", UserID: userID, PublicKey: []byte{1, 2}, BackupState: true, CreatedAt: time.Unix(0, 0)}, nil
}

func (f *fakePasskeys) StartAuthentication(ctx context.Context, loginID string) (*service.Start, error) {
	if err := f.record("start-auth:" + loginID); err != nil {
		return nil, err
	}
	return &service.Start{Options: []byte(`{}`), Nonce: "n2"}, nil
}

func (f *fakePasskeys) CompleteAuthentication(ctx context.Context, loginID, nonce string, assertion []byte) (*identityservice.AuthResult, error) {
	if err := f.record("complete-auth:" + loginID + ":" + nonce); err != nil {
		return nil, err
	}
	return &identityservice.AuthResult{AccessToken: "a", RefreshToken: "r", UserID: "u1"}, nil
}

func (f *fakePasskeys) ListPasskeys(ctx context.Context, userID string) ([]*domain.Credential, error) {
	if err := f.record("list:" + userID); err != nil {
		return nil, err
	}
	return []*domain.Credential{{CredentialID: "cred-1", SignCount: 4}, {CredentialID: "cred-2"}}, nil
}

func (f *fakePasskeys) DeletePasskey(ctx context.Context, userID, credentialID string) error {
	return f.record("delete:" + userID + ":" + credentialID)
}

func authed() context.Context {
	return interceptors.WithIdentity(context.Background(), interceptors.Identity{UserID: "u1", Hash: "h1"})
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", want)
	}
	if st, _ := status.FromError(err); st.Code() != want {
		t.Fatalf("code = %v, want %v (%v)", st.Code(), want, err)
	}
}

func TestPasskeyServer_NilService(t *testing.T) {
	srv := NewPasskeyServer(nil)
	_, err := srv.StartRegistration(authed(), &authv1.StartPasskeyRegistrationRequest{})
	assertCode(t, err, codes.Unimplemented)
	_, err = srv.CompleteAuthentication(authed(), &authv1.CompletePasskeyAuthenticationRequest{})
	assertCode(t, err, codes.Unimplemented)
	_, err = srv.ListPasskeys(authed(), &authv1.ListPasskeysRequest{})
	assertCode(t, err, codes.Unimplemented)
}

func TestRegistration_UsesCaller(t *testing.T) {
	f := &fakePasskeys{}
	srv := NewPasskeyServer(f)
	start, err := srv.StartRegistration(authed(), &authv1.StartPasskeyRegistrationRequest{})
	if err != nil {
		t.Fatalf("StartRegistration: %v", err)
	}
	if start.Nonce != "n1" || !json.Valid(start.Options) {
		t.Errorf("start = %+v", start)
	}
	resp, err := srv.CompleteRegistration(authed(), &authv1.CompletePasskeyRegistrationRequest{Nonce: "n1", Attestation: json.RawMessage(`{"id":"x"}`)})
	if err != nil {
		t.Fatalf("CompleteRegistration: %v", err)
	}
	if resp.Passkey.CredentialID != "cred-1" || !resp.Passkey.BackedUp {
		t.Errorf("passkey = %+v", resp.Passkey)
	}
	if f.calls[0] != "start-reg:u1" || f.calls[1] != "complete-reg:u1:n1" {
		t.Errorf("calls = %v", f.calls)
	}
}

func TestRegistration_Unauthenticated(t *testing.T) {
	srv := NewPasskeyServer(&fakePasskeys{})
	_, err := srv.StartRegistration(context.Background(), &authv1.StartPasskeyRegistrationRequest{})
	assertCode(t, err, codes.Unauthenticated)
	_, err = srv.CompleteRegistration(context.Background(), &authv1.CompletePasskeyRegistrationRequest{Nonce: "n", Attestation: json.RawMessage(`{}`)})
	assertCode(t, err, codes.Unauthenticated)
}

func TestCompleteRegistration_MissingFields(t *testing.T) {
	srv := NewPasskeyServer(&fakePasskeys{})
	_, err := srv.CompleteRegistration(authed(), &authv1.CompletePasskeyRegistrationRequest{Nonce: "n1"})
	assertCode(t, err, codes.InvalidArgument)
}

func TestCompleteRegistration_LimitExceeded(t *testing.T) {
	srv := NewPasskeyServer(&fakePasskeys{err: apperr.ErrLimitExceeded})
	_, err := srv.CompleteRegistration(authed(), &authv1.CompletePasskeyRegistrationRequest{Nonce: "n1", Attestation: json.RawMessage(`{}`)})
	assertCode(t, err, codes.ResourceExhausted)
	if apperr.ReasonOf(err) != apperr.TagLimitExceeded {
		t.Errorf("reason = %q", apperr.ReasonOf(err))
	}
}

func TestAuthentication_Public(t *testing.T) {
	f := &fakePasskeys{}
	srv := NewPasskeyServer(f)
	if _, err := srv.StartAuthentication(context.Background(), &authv1.StartPasskeyAuthenticationRequest{LoginID: "alice@example.com"}); err != nil {
		t.Fatalf("StartAuthentication: %v", err)
	}
	resp, err := srv.CompleteAuthentication(context.Background(), &authv1.CompletePasskeyAuthenticationRequest{
		LoginID: "alice@example.com", Nonce: "n2", Assertion: json.RawMessage(`{"id":"cred-1"}`),
	})
	if err != nil {
		t.Fatalf("CompleteAuthentication: %v", err)
	}
	if resp.AccessToken != "a" || resp.UserID != "u1" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCompleteAuthentication_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{apperr.ErrReplayDetected, codes.Unauthenticated},
		{apperr.ErrVerificationFailed, codes.Unauthenticated},
		{apperr.ErrChallengeNotFound, codes.NotFound},
		{apperr.ErrNoCredentials, codes.NotFound},
	}
	for _, tt := range tests {
		srv := NewPasskeyServer(&fakePasskeys{err: tt.err})
		_, err := srv.CompleteAuthentication(context.Background(), &authv1.CompletePasskeyAuthenticationRequest{
			LoginID: "alice@example.com", Nonce: "n", Assertion: json.RawMessage(`{}`),
		})
		assertCode(t, err, tt.code)
		if apperr.ReasonOf(err) != apperr.Tag(tt.err) {
			t.Errorf("reason = %q, want %q", apperr.ReasonOf(err), apperr.Tag(tt.err))
		}
	}
}

func TestListPasskeys(t *testing.T) {
	srv := NewPasskeyServer(&fakePasskeys{})
	resp, err := srv.ListPasskeys(authed(), &authv1.ListPasskeysRequest{})
	if err != nil {
		t.Fatalf("ListPasskeys: %v", err)
	}
	if len(resp.Passkeys) != 2 || resp.Passkeys[0].SignCount != 4 {
		t.Errorf("passkeys = %+v", resp.Passkeys)
	}
}

func TestDeletePasskey(t *testing.T) {
	f := &fakePasskeys{}
	srv := NewPasskeyServer(f)
	_, err := srv.DeletePasskey(authed(), &authv1.DeletePasskeyRequest{})
	assertCode(t, err, codes.InvalidArgument)
	if _, err := srv.DeletePasskey(authed(), &authv1.DeletePasskeyRequest{CredentialID: "cred-1"}); err != nil {
		t.Fatalf("DeletePasskey: %v", err)
	}
	if f.calls[len(f.calls)-1] != "delete:u1:cred-1" {
		t.Errorf("calls = %v", f.calls)
	}
	f.err = apperr.ErrNoCredentials
	_, err = srv.DeletePasskey(authed(), &authv1.DeletePasskeyRequest{CredentialID: "cred-9"})
	assertCode(t, err, codes.NotFound)
}
