package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"member-service/internal/security"
)

const bearerPrefix = "bearer "

// AccessVerifier verifies an access token's signature, issuer and expiry.
type AccessVerifier interface {
	VerifyAccess(token string) (*security.AccessClaims, error)
}

// SessionValidator reports whether the session identified by (userID, hash) still exists.
// Used so logout, password change and revocation take effect before the access token expires.
type SessionValidator func(ctx context.Context, userID, hash string) (bool, error)

// AuthUnary returns a unary server interceptor that validates the Bearer (access) token
// from gRPC metadata and sets the caller Identity in context for protected RPCs.
// publicMethods is the set of full method names that do not require a Bearer token
// (e.g. AuthService Register, Login, Refresh; health Check). On public methods a valid token
// still populates the identity; an invalid one is ignored. validate may be nil to skip the
// session lookup.
func AuthUnary(tokens AccessVerifier, publicMethods map[string]bool, validate SessionValidator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		token := extractBearer(ctx)
		public := publicMethods[info.FullMethod]

		if token == "" {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		claims, err := tokens.VerifyAccess(token)
		if err != nil {
			if public {
				return handler(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
		}

		if validate != nil {
			ok, verr := validate(ctx, claims.OwnerID(), claims.Hash)
			if verr != nil || !ok {
				if public {
					return handler(ctx, req)
				}
				return nil, status.Error(codes.Unauthenticated, "missing or invalid authorization")
			}
		}

		ctx = WithIdentity(ctx, Identity{
			UserID:    claims.OwnerID(),
			LoginID:   claims.LoginID,
			Hash:      claims.Hash,
			Role:      claims.Role,
			CompanyID: claims.CompanyID,
		})
		return handler(ctx, req)
	}
}

// extractBearer returns the Bearer token from ctx metadata, or "" if missing or malformed.
func extractBearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := strings.TrimSpace(vals[0])
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
