package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	authv1 "member-service/api/auth/v1"
	"member-service/internal/identity/service"
	"member-service/internal/platform/apperr"
	"member-service/internal/server/interceptors"
	userdomain "member-service/internal/user/domain"
)

// AuthService is the subset of the identity service the handler calls.
type AuthService interface {
	Register(ctx context.Context, loginID, password, name string) (*userdomain.User, error)
	Login(ctx context.Context, loginID, password string) (*service.AuthResult, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*service.AuthResult, error)
	Logout(ctx context.Context, userID, hash string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	RevokeSessions(ctx context.Context, targetUserID string) (int64, error)
}

// RoleGuard authorizes role-restricted operations on a target member.
type RoleGuard interface {
	RequireRoleOver(ctx context.Context, role, targetUserID string) (interceptors.Identity, error)
}

// AuthServer implements AuthService (gRPC) for registration, password login, token rotation,
// logout, password change and admin session revocation.
type AuthServer struct {
	authv1.UnimplementedAuthServiceServer
	auth  AuthService
	guard RoleGuard
}

// NewAuthServer returns a new Auth gRPC server. When auth is nil every RPC returns Unimplemented.
func NewAuthServer(auth AuthService, guard RoleGuard) *AuthServer {
	return &AuthServer{auth: auth, guard: guard}
}

// Register creates a member with a password. Tokens are obtained with Login.
func (s *AuthServer) Register(ctx context.Context, req *authv1.RegisterRequest) (*authv1.RegisterResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Register not implemented")
	}
	u, err := s.auth.Register(ctx, req.LoginID, req.Password, req.Name)
	if err != nil {
		return nil, apperr.ToStatus("auth.Register", err)
	}
	return &authv1.RegisterResponse{UserID: u.ID, LoginID: u.LoginID}, nil
}

// Login authenticates a member by login id and password and returns a new token pair.
func (s *AuthServer) Login(ctx context.Context, req *authv1.LoginRequest) (*authv1.AuthResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Login not implemented")
	}
	res, err := s.auth.Login(ctx, req.LoginID, req.Password)
	if err != nil {
		return nil, apperr.ToStatus("auth.Login", err)
	}
	return AuthResultToProto(res), nil
}

// Refresh rotates the session bound to the presented token pair.
func (s *AuthServer) Refresh(ctx context.Context, req *authv1.RefreshRequest) (*authv1.AuthResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
	}
	res, err := s.auth.Refresh(ctx, req.AccessToken, req.RefreshToken)
	if err != nil {
		return nil, apperr.ToStatus("auth.Refresh", err)
	}
	return AuthResultToProto(res), nil
}

// Logout ends the session the caller's access token is bound to.
func (s *AuthServer) Logout(ctx context.Context, req *authv1.LogoutRequest) (*authv1.LogoutResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
	}
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	if err := s.auth.Logout(ctx, id.UserID, id.Hash); err != nil {
		return nil, apperr.ToStatus("auth.Logout", err)
	}
	return &authv1.LogoutResponse{}, nil
}

// ChangePassword replaces the caller's password; every session of the caller ends.
func (s *AuthServer) ChangePassword(ctx context.Context, req *authv1.ChangePasswordRequest) (*authv1.ChangePasswordResponse, error) {
	if s.auth == nil {
		return nil, status.Error(codes.Unimplemented, "method ChangePassword not implemented")
	}
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	if err := s.auth.ChangePassword(ctx, id.UserID, req.OldPassword, req.NewPassword); err != nil {
		return nil, apperr.ToStatus("auth.ChangePassword", err)
	}
	return &authv1.ChangePasswordResponse{}, nil
}

// RevokeSessions ends every session of another member. Requires the admin role over the target.
func (s *AuthServer) RevokeSessions(ctx context.Context, req *authv1.RevokeSessionsRequest) (*authv1.RevokeSessionsResponse, error) {
	if s.auth == nil || s.guard == nil {
		return nil, status.Error(codes.Unimplemented, "method RevokeSessions not implemented")
	}
	if _, err := s.guard.RequireRoleOver(ctx, userdomain.RoleAdmin, req.UserID); err != nil {
		return nil, err
	}
	n, err := s.auth.RevokeSessions(ctx, req.UserID)
	if err != nil {
		return nil, apperr.ToStatus("auth.RevokeSessions", err)
	}
	return &authv1.RevokeSessionsResponse{Revoked: n}, nil
}

// AuthResultToProto converts a service token pair to the wire response.
func AuthResultToProto(res *service.AuthResult) *authv1.AuthResponse {
	if res == nil {
		return nil
	}
	return &authv1.AuthResponse{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		ExpiresAt:        res.ExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
		UserID:           res.UserID,
	}
}
