package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	authv1 "member-service/api/auth/v1"
	identityhandler "member-service/internal/identity/handler"
	identityservice "member-service/internal/identity/service"
	"member-service/internal/passkey/domain"
	"member-service/internal/passkey/service"
	"member-service/internal/platform/apperr"
	"member-service/internal/server/interceptors"
)

// PasskeyService is the subset of the passkey service the handler calls.
type PasskeyService interface {
	StartRegistration(ctx context.Context, userID string) (*service.Start, error)
	CompleteRegistration(ctx context.Context, userID, nonce string, attestation []byte) (*domain.Credential, error)
	StartAuthentication(ctx context.Context, loginID string) (*service.Start, error)
	CompleteAuthentication(ctx context.Context, loginID, nonce string, assertion []byte) (*identityservice.AuthResult, error)
	ListPasskeys(ctx context.Context, userID string) ([]*domain.Credential, error)
	DeletePasskey(ctx context.Context, userID, credentialID string) error
}

// PasskeyServer implements PasskeyService (gRPC). Registration and management act on the
// authenticated caller; authentication is public and ends in a token pair.
type PasskeyServer struct {
	authv1.UnimplementedPasskeyServiceServer
	svc PasskeyService
}

// NewPasskeyServer returns a new Passkey gRPC server. When svc is nil every RPC returns Unimplemented.
func NewPasskeyServer(svc PasskeyService) *PasskeyServer {
	return &PasskeyServer{svc: svc}
}

func (s *PasskeyServer) StartRegistration(ctx context.Context, req *authv1.StartPasskeyRegistrationRequest) (*authv1.StartPasskeyResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method StartRegistration not implemented")
	}
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	start, err := s.svc.StartRegistration(ctx, id.UserID)
	if err != nil {
		return nil, apperr.ToStatus("passkey.StartRegistration", err)
	}
	return startToProto(start), nil
}

func (s *PasskeyServer) CompleteRegistration(ctx context.Context, req *authv1.CompletePasskeyRegistrationRequest) (*authv1.CompletePasskeyRegistrationResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method CompleteRegistration not implemented")
	}
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	if req.Nonce == "" || len(req.Attestation) == 0 {
		return nil, status.Error(codes.InvalidArgument, "nonce and attestation are required")
	}
	cred, err := s.svc.CompleteRegistration(ctx, id.UserID, req.Nonce, req.Attestation)
	if err != nil {
		return nil, apperr.ToStatus("passkey.CompleteRegistration", err)
	}
	return &authv1.CompletePasskeyRegistrationResponse{Passkey: credentialToProto(cred)}, nil
}

func (s *PasskeyServer) StartAuthentication(ctx context.Context, req *authv1.StartPasskeyAuthenticationRequest) (*authv1.StartPasskeyResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method StartAuthentication not implemented")
	}
	start, err := s.svc.StartAuthentication(ctx, req.LoginID)
	if err != nil {
		return nil, apperr.ToStatus("passkey.StartAuthentication", err)
	}
	return startToProto(start), nil
}

func (s *PasskeyServer) CompleteAuthentication(ctx context.Context, req *authv1.CompletePasskeyAuthenticationRequest) (*authv1.AuthResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method CompleteAuthentication not implemented")
	}
	if req.Nonce == "" || len(req.Assertion) == 0 {
		return nil, status.Error(codes.InvalidArgument, "nonce and assertion are required")
	}
	res, err := s.svc.CompleteAuthentication(ctx, req.LoginID, req.Nonce, req.Assertion)
	if err != nil {
		return nil, apperr.ToStatus("passkey.CompleteAuthentication", err)
	}
	return identityhandler.AuthResultToProto(res), nil
}

func (s *PasskeyServer) ListPasskeys(ctx context.Context, req *authv1.ListPasskeysRequest) (*authv1.ListPasskeysResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method ListPasskeys not implemented")
	}
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	creds, err := s.svc.ListPasskeys(ctx, id.UserID)
	if err != nil {
		return nil, apperr.ToStatus("passkey.ListPasskeys", err)
	}
	out := make([]*authv1.Passkey, 0, len(creds))
	for _, c := range creds {
		out = append(out, credentialToProto(c))
	}
	return &authv1.ListPasskeysResponse{Passkeys: out}, nil
}

func (s *PasskeyServer) DeletePasskey(ctx context.Context, req *authv1.DeletePasskeyRequest) (*authv1.DeletePasskeyResponse, error) {
	if s.svc == nil {
		return nil, status.Error(codes.Unimplemented, "method DeletePasskey not implemented")
	}
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	if req.CredentialID == "" {
		return nil, status.Error(codes.InvalidArgument, "credential_id is required")
	}
	if err := s.svc.DeletePasskey(ctx, id.UserID, req.CredentialID); err != nil {
		return nil, apperr.ToStatus("passkey.DeletePasskey", err)
	}
	return &authv1.DeletePasskeyResponse{}, nil
}

func startToProto(s *service.Start) *authv1.StartPasskeyResponse {
	return &authv1.StartPasskeyResponse{Options: s.Options, Nonce: s.Nonce}
}

func credentialToProto(c *domain.Credential) *authv1.Passkey {
	if c == nil {
		return nil
	}
	return &authv1.Passkey{
		CredentialID: c.CredentialID,
		Transports:   c.Transports,
		SignCount:    c.SignCount,
		BackedUp:     c.BackupState,
		CreatedAt:    c.CreatedAt,
	}
}
