package handler

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	authv1 "member-service/api/auth/v1"
	auditdomain "member-service/internal/audit/domain"
	"member-service/internal/platform/apperr"
	"member-service/internal/server/interceptors"
	sessiondomain "member-service/internal/session/domain"
	"member-service/internal/user/domain"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 100
)

// UserReader loads the caller's identity and profile rows.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// SessionLister lists and removes the caller's sessions.
type SessionLister interface {
	ListByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

// AuditLister reads a member's recent audit events.
type AuditLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*auditdomain.AuditLog, error)
}

// RoleGuard authorizes reads of another member's audit trail.
type RoleGuard interface {
	RequireRoleOver(ctx context.Context, role, targetUserID string) (interceptors.Identity, error)
}

// AccountServer implements AccountService (gRPC): the caller's profile, active sessions and
// audit trail. Every RPC requires an authenticated caller.
type AccountServer struct {
	authv1.UnimplementedAccountServiceServer
	users    UserReader
	sessions SessionLister
	audits   AuditLister
	guard    RoleGuard
}

// NewAccountServer returns a new Account gRPC server. An RPC whose repository is nil returns
// Unimplemented.
func NewAccountServer(users UserReader, sessions SessionLister, audits AuditLister, guard RoleGuard) *AccountServer {
	return &AccountServer{users: users, sessions: sessions, audits: audits, guard: guard}
}

// GetMe returns the calling member.
func (s *AccountServer) GetMe(ctx context.Context, _ *authv1.GetMeRequest) (*authv1.GetMeResponse, error) {
	if s.users == nil {
		return nil, status.Error(codes.Unimplemented, "method GetMe not implemented")
	}
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	u, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return nil, apperr.ToStatus("account.GetMe", err)
	}
	if u == nil || !u.Active() {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	profile, err := s.users.GetProfile(ctx, u.ID)
	if err != nil {
		return nil, apperr.ToStatus("account.GetMe", err)
	}
	resp := &authv1.GetMeResponse{
		UserID:    u.ID,
		LoginID:   u.LoginID,
		Role:      u.Role,
		CompanyID: u.CompanyID,
		CreatedAt: u.CreatedAt,
	}
	if profile != nil {
		resp.Name = profile.Name
		resp.Email = profile.Email
	}
	return resp, nil
}

// ListSessions returns the caller's sessions, newest first. The session the request was made
// with is marked current.
func (s *AccountServer) ListSessions(ctx context.Context, _ *authv1.ListSessionsRequest) (*authv1.ListSessionsResponse, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method ListSessions not implemented")
	}
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	list, err := s.sessions.ListByUser(ctx, id.UserID)
	if err != nil {
		return nil, apperr.ToStatus("account.ListSessions", err)
	}
	out := make([]*authv1.Session, len(list))
	for i, ses := range list {
		out[i] = sessionToProto(ses, id.Hash)
	}
	return &authv1.ListSessionsResponse{Sessions: out}, nil
}

// RevokeSession ends one of the caller's sessions. Sessions of other members are reported as
// not found.
func (s *AccountServer) RevokeSession(ctx context.Context, req *authv1.RevokeSessionRequest) (*authv1.RevokeSessionResponse, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method RevokeSession not implemented")
	}
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id required")
	}
	list, err := s.sessions.ListByUser(ctx, id.UserID)
	if err != nil {
		return nil, apperr.ToStatus("account.RevokeSession", err)
	}
	owned := false
	for _, ses := range list {
		if ses.ID == sessionID {
			owned = true
			break
		}
	}
	if !owned {
		return nil, status.Error(codes.NotFound, "session not found")
	}
	if err := s.sessions.DeleteByID(ctx, sessionID); err != nil {
		if apperr.Tag(err) == apperr.TagSessionNotFound {
			return nil, status.Error(codes.NotFound, "session not found")
		}
		return nil, apperr.ToStatus("account.RevokeSession", err)
	}
	return &authv1.RevokeSessionResponse{}, nil
}

// ListAuditEvents returns recent audit events of the caller, or of req.UserID when the caller
// is an admin over that member.
func (s *AccountServer) ListAuditEvents(ctx context.Context, req *authv1.ListAuditEventsRequest) (*authv1.ListAuditEventsResponse, error) {
	if s.audits == nil {
		return nil, status.Error(codes.Unimplemented, "method ListAuditEvents not implemented")
	}
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	target := strings.TrimSpace(req.UserID)
	if target == "" {
		target = id.UserID
	}
	if target != id.UserID {
		if s.guard == nil {
			return nil, status.Error(codes.PermissionDenied, "permission denied")
		}
		if _, err := s.guard.RequireRoleOver(ctx, domain.RoleAdmin, target); err != nil {
			return nil, err
		}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	list, err := s.audits.ListByUser(ctx, target, limit)
	if err != nil {
		return nil, apperr.ToStatus("account.ListAuditEvents", err)
	}
	out := make([]*authv1.AuditEvent, len(list))
	for i, a := range list {
		out[i] = &authv1.AuditEvent{ID: a.ID, Action: a.Action, Resource: a.Resource, IP: a.IP, CreatedAt: a.CreatedAt}
	}
	return &authv1.ListAuditEventsResponse{Events: out}, nil
}

func sessionToProto(s *sessiondomain.Session, currentHash string) *authv1.Session {
	return &authv1.Session{
		ID:        s.ID,
		Current:   currentHash != "" && s.Hash == currentHash,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}
