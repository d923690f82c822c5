package handler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	authv1 "member-service/api/auth/v1"
	"member-service/internal/identity/service"
	"member-service/internal/platform/apperr"
	"member-service/internal/server/interceptors"
	userdomain "member-service/internal/user/domain"
)

type fakeAuth struct {
	mu        sync.Mutex
	err       error
	loggedOut []string
	changed   []string
	revoked   []string
}

func (f *fakeAuth) Register(ctx context.Context, loginID, password, name string) (*userdomain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &userdomain.User{ID: "u-new", LoginID: loginID}, nil
}

func (f *fakeAuth) result(userID string) *service.AuthResult {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	return &service.AuthResult{AccessToken: "a", RefreshToken: "r", ExpiresAt: exp, RefreshExpiresAt: exp.Add(time.Hour), UserID: userID}
}

func (f *fakeAuth) Login(ctx context.Context, loginID, password string) (*service.AuthResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result("u1"), nil
}

func (f *fakeAuth) Refresh(ctx context.Context, accessToken, refreshToken string) (*service.AuthResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result("u1"), nil
}

func (f *fakeAuth) Logout(ctx context.Context, userID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = append(f.loggedOut, userID+"/"+hash)
	return f.err
}

func (f *fakeAuth) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed = append(f.changed, userID)
	return f.err
}

func (f *fakeAuth) RevokeSessions(ctx context.Context, targetUserID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, targetUserID)
	return 3, f.err
}

type fakeGuard struct {
	err error
}

func (g fakeGuard) RequireRoleOver(ctx context.Context, role, targetUserID string) (interceptors.Identity, error) {
	if g.err != nil {
		return interceptors.Identity{}, g.err
	}
	id, _ := interceptors.IdentityFrom(ctx)
	return id, nil
}

func authed() context.Context {
	return interceptors.WithIdentity(context.Background(), interceptors.Identity{UserID: "u1", Hash: "h1", Role: userdomain.RoleMember})
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", want)
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("error is not a gRPC status: %v", err)
	}
	if st.Code() != want {
		t.Fatalf("code = %v, want %v", st.Code(), want)
	}
}

func TestAuthServer_NilService(t *testing.T) {
	srv := NewAuthServer(nil, nil)
	ctx := authed()
	_, err := srv.Register(ctx, &authv1.RegisterRequest{})
	assertCode(t, err, codes.Unimplemented)
	_, err = srv.Login(ctx, &authv1.LoginRequest{})
	assertCode(t, err, codes.Unimplemented)
	_, err = srv.Refresh(ctx, &authv1.RefreshRequest{})
	assertCode(t, err, codes.Unimplemented)
	_, err = srv.Logout(ctx, &authv1.LogoutRequest{})
	assertCode(t, err, codes.Unimplemented)
	_, err = srv.ChangePassword(ctx, &authv1.ChangePasswordRequest{})
	assertCode(t, err, codes.Unimplemented)
	_, err = srv.RevokeSessions(ctx, &authv1.RevokeSessionsRequest{})
	assertCode(t, err, codes.Unimplemented)
}

func TestRegister(t *testing.T) {
	srv := NewAuthServer(&fakeAuth{}, fakeGuard{})
	resp, err := srv.Register(context.Background(), &authv1.RegisterRequest{LoginID: "carol@example.com", Password: "x"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.UserID != "u-new" || resp.LoginID != "carol@example.com" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	srv := NewAuthServer(&fakeAuth{err: apperr.ErrAlreadyExists}, fakeGuard{})
	_, err := srv.Register(context.Background(), &authv1.RegisterRequest{LoginID: "alice@example.com"})
	assertCode(t, err, codes.AlreadyExists)
	if got := apperr.ReasonOf(err); got != apperr.TagAlreadyExists {
		t.Errorf("reason = %q", got)
	}
}

func TestLogin(t *testing.T) {
	srv := NewAuthServer(&fakeAuth{}, fakeGuard{})
	resp, err := srv.Login(context.Background(), &authv1.LoginRequest{LoginID: "alice@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.AccessToken != "a" || resp.RefreshToken != "r" || resp.UserID != "u1" {
		t.Errorf("resp = %+v", resp)
	}
	if !resp.RefreshExpiresAt.After(resp.ExpiresAt) {
		t.Error("refresh expiry should follow access expiry")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv := NewAuthServer(&fakeAuth{err: apperr.ErrInvalidCredentials}, fakeGuard{})
	_, err := srv.Login(context.Background(), &authv1.LoginRequest{LoginID: "alice@example.com", Password: "bad"})
	assertCode(t, err, codes.Unauthenticated)
	if got := apperr.ReasonOf(err); got != apperr.TagInvalidCredentials {
		t.Errorf("reason = %q", got)
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	srv := NewAuthServer(&fakeAuth{err: apperr.ErrInvalidToken}, fakeGuard{})
	_, err := srv.Refresh(context.Background(), &authv1.RefreshRequest{AccessToken: "a", RefreshToken: "r"})
	assertCode(t, err, codes.Unauthenticated)
}

func TestRefresh_StorageErrorHidesCause(t *testing.T) {
	srv := NewAuthServer(&fakeAuth{err: errors.New("pq: relation user_sessions does not exist")}, fakeGuard{})
	_, err := srv.Refresh(context.Background(), &authv1.RefreshRequest{})
	assertCode(t, err, codes.Internal)
	if st, _ := status.FromError(err); st.Message() != "temporary error; please try again" {
		t.Errorf("message = %q", st.Message())
	}
}

func TestLogout_UsesCallerSession(t *testing.T) {
	auth := &fakeAuth{}
	srv := NewAuthServer(auth, fakeGuard{})
	if _, err := srv.Logout(authed(), &authv1.LogoutRequest{}); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if len(auth.loggedOut) != 1 || auth.loggedOut[0] != "u1/h1" {
		t.Errorf("loggedOut = %v", auth.loggedOut)
	}
}

func TestLogout_Unauthenticated(t *testing.T) {
	srv := NewAuthServer(&fakeAuth{}, fakeGuard{})
	_, err := srv.Logout(context.Background(), &authv1.LogoutRequest{})
	assertCode(t, err, codes.Unauthenticated)
}

func TestChangePassword(t *testing.T) {
	auth := &fakeAuth{}
	srv := NewAuthServer(auth, fakeGuard{})
	if _, err := srv.ChangePassword(authed(), &authv1.ChangePasswordRequest{OldPassword: "a", NewPassword: "b"}); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if len(auth.changed) != 1 || auth.changed[0] != "u1" {
		t.Errorf("changed = %v", auth.changed)
	}
	_, err := srv.ChangePassword(context.Background(), &authv1.ChangePasswordRequest{})
	assertCode(t, err, codes.Unauthenticated)
}

func TestChangePassword_WrongOld(t *testing.T) {
	srv := NewAuthServer(&fakeAuth{err: apperr.ErrInvalidCredentials}, fakeGuard{})
	_, err := srv.ChangePassword(authed(), &authv1.ChangePasswordRequest{OldPassword: "x", NewPassword: "y"})
	assertCode(t, err, codes.Unauthenticated)
}

func TestRevokeSessions(t *testing.T) {
	auth := &fakeAuth{}
	srv := NewAuthServer(auth, fakeGuard{})
	resp, err := srv.RevokeSessions(authed(), &authv1.RevokeSessionsRequest{UserID: "u2"})
	if err != nil {
		t.Fatalf("RevokeSessions: %v", err)
	}
	if resp.Revoked != 3 || len(auth.revoked) != 1 || auth.revoked[0] != "u2" {
		t.Errorf("resp = %+v revoked = %v", resp, auth.revoked)
	}
}

func TestRevokeSessions_Denied(t *testing.T) {
	auth := &fakeAuth{}
	srv := NewAuthServer(auth, fakeGuard{err: status.Error(codes.PermissionDenied, "permission denied")})
	_, err := srv.RevokeSessions(authed(), &authv1.RevokeSessionsRequest{UserID: "u2"})
	assertCode(t, err, codes.PermissionDenied)
	if len(auth.revoked) != 0 {
		t.Errorf("sessions revoked despite denial: %v", auth.revoked)
	}
}
