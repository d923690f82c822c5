package server

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	authv1 "member-service/api/auth/v1"
	"member-service/internal/audit"
	healthhandler "member-service/internal/health/handler"
	identityhandler "member-service/internal/identity/handler"
	passkeyhandler "member-service/internal/passkey/handler"
	"member-service/internal/server/interceptors"
	sessiondomain "member-service/internal/session/domain"
	"member-service/internal/telemetry"
	userhandler "member-service/internal/user/handler"
)

// Deps holds optional service dependencies for gRPC handlers.
type Deps struct {
	// Auth is the auth service for Register/Login/Refresh/Logout/ChangePassword. If nil, auth RPCs return Unimplemented.
	Auth identityhandler.AuthService
	// Guard authorizes RevokeSessions and reads of another member's audit trail.
	Guard identityhandler.RoleGuard
	// Passkeys is the passkey service. If nil, passkey RPCs return Unimplemented.
	Passkeys passkeyhandler.PasskeyService
	// Health runs readiness probes for grpc.health.v1. If nil, Check always reports SERVING.
	Health *healthhandler.Checker
	// Users, Sessions and Audits back AccountService. A nil repository disables its RPCs.
	Users    userhandler.UserReader
	Sessions userhandler.SessionLister
	Audits   userhandler.AuditLister
}

// RegisterServices registers every gRPC service with the given server.
//
// Service → handler mapping:
//   - member.auth.v1.AuthService    → internal/identity/handler
//   - member.auth.v1.PasskeyService → internal/passkey/handler
//   - member.auth.v1.AccountService → internal/user/handler
//   - grpc.health.v1.Health         → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	authv1.RegisterAuthServiceServer(s, identityhandler.NewAuthServer(deps.Auth, deps.Guard))
	authv1.RegisterPasskeyServiceServer(s, passkeyhandler.NewPasskeyServer(deps.Passkeys))
	authv1.RegisterAccountServiceServer(s, userhandler.NewAccountServer(deps.Users, deps.Sessions, deps.Audits, deps.Guard))
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(deps.Health))
}

// PublicMethods are the RPCs callable without an access token.
func PublicMethods() map[string]bool {
	return map[string]bool{
		authv1.AuthService_Register_FullMethodName:                  true,
		authv1.AuthService_Login_FullMethodName:                     true,
		authv1.AuthService_Refresh_FullMethodName:                   true,
		authv1.PasskeyService_StartAuthentication_FullMethodName:    true,
		authv1.PasskeyService_CompleteAuthentication_FullMethodName: true,
		healthpb.Health_Check_FullMethodName:                        true,
		healthpb.Health_Watch_FullMethodName:                        true,
	}
}

// Options configures the interceptor chain built by NewServer.
type Options struct {
	// Tokens verifies access tokens. Required.
	Tokens interceptors.AccessVerifier
	// Sessions makes logout and revocation effective before the access token expires. May be nil.
	Sessions SessionLookup
	// Audit records denied requests. May be nil.
	Audit audit.AuditLogger
	// Telemetry receives one event per RPC. May be nil.
	Telemetry telemetry.EventEmitter
}

// NewServer returns a gRPC server with the otelgrpc stats handler and the telemetry, audit and
// auth interceptors, in that order, then registers deps.
func NewServer(opts Options, deps Deps) *grpc.Server {
	quiet := map[string]bool{
		healthpb.Health_Check_FullMethodName: true,
		healthpb.Health_Watch_FullMethodName: true,
	}
	var validate interceptors.SessionValidator
	if opts.Sessions != nil {
		validate = SessionValidatorFor(opts.Sessions)
	}
	chain := []grpc.UnaryServerInterceptor{}
	if opts.Telemetry != nil {
		chain = append(chain, interceptors.TelemetryUnary(opts.Telemetry, quiet))
	}
	if opts.Audit != nil {
		chain = append(chain, interceptors.AuditUnary(opts.Audit, quiet))
	}
	chain = append(chain, interceptors.AuthUnary(opts.Tokens, PublicMethods(), validate))

	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(chain...),
	)
	RegisterServices(s, deps)
	return s
}

// SessionLookup finds a session by its correlation hash.
type SessionLookup interface {
	GetByHash(ctx context.Context, hash string) (*sessiondomain.Session, error)
}

// SessionValidatorFor accepts an access token only while its session exists, belongs to the
// token subject and has not expired.
func SessionValidatorFor(sessions SessionLookup) interceptors.SessionValidator {
	return func(ctx context.Context, userID, hash string) (bool, error) {
		if hash == "" {
			return false, nil
		}
		s, err := sessions.GetByHash(ctx, hash)
		if err != nil {
			return false, err
		}
		if s == nil || s.UserID != userID {
			return false, nil
		}
		return time.Now().Before(s.ExpiresAt), nil
	}
}
