// Package rbac guards role-restricted RPCs. Identity comes from the auth interceptor; the
// decision comes from the policy engine.
package rbac

import (
	"context"
	"log"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"member-service/internal/policy/engine"
	"member-service/internal/server/interceptors"
	userdomain "member-service/internal/user/domain"
)

// UserGetter resolves the member an operation targets.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
}

// Guard evaluates role requirements for the authenticated caller.
type Guard struct {
	evaluator engine.Evaluator
	users     UserGetter
}

// NewGuard returns a Guard. users may be nil when no guarded operation has a target member.
func NewGuard(evaluator engine.Evaluator, users UserGetter) *Guard {
	return &Guard{evaluator: evaluator, users: users}
}

// RequireRole ensures the caller is authenticated and holds at least role.
// Returns the caller identity on success, or a gRPC error (Unauthenticated or PermissionDenied).
func (g *Guard) RequireRole(ctx context.Context, role string) (interceptors.Identity, error) {
	return g.require(ctx, role, nil)
}

// RequireRoleOver is RequireRole for an operation on targetUserID. The policy also checks that
// the target is within the caller's scope. An unknown target is NotFound only for callers
// that could act on any member; everyone else gets PermissionDenied.
func (g *Guard) RequireRoleOver(ctx context.Context, role, targetUserID string) (interceptors.Identity, error) {
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		return interceptors.Identity{}, status.Error(codes.Unauthenticated, "authentication required")
	}
	if _, err := uuid.Parse(targetUserID); err != nil {
		return interceptors.Identity{}, status.Error(codes.InvalidArgument, "user_id must be a uuid")
	}
	if g.users == nil {
		return interceptors.Identity{}, status.Error(codes.Internal, "target lookup unavailable")
	}
	target, err := g.users.GetByID(ctx, targetUserID)
	if err != nil {
		log.Printf("rbac: resolve target %s: %v", targetUserID, err)
		return interceptors.Identity{}, status.Error(codes.Unavailable, "failed to resolve target")
	}
	if target == nil {
		if id.Role == userdomain.RoleSuperAdmin {
			return interceptors.Identity{}, status.Error(codes.NotFound, "user not found")
		}
		return interceptors.Identity{}, status.Error(codes.PermissionDenied, "permission denied")
	}
	return g.require(ctx, role, target)
}

func (g *Guard) require(ctx context.Context, role string, target *userdomain.User) (interceptors.Identity, error) {
	id, ok := interceptors.IdentityFrom(ctx)
	if !ok {
		return interceptors.Identity{}, status.Error(codes.Unauthenticated, "authentication required")
	}
	if g.evaluator == nil {
		return interceptors.Identity{}, status.Error(codes.PermissionDenied, "permission denied")
	}
	in := engine.Input{
		CallerID:        id.UserID,
		CallerRole:      id.Role,
		CallerCompanyID: id.CompanyID,
		RequiredRole:    role,
	}
	if target != nil {
		in.TargetUserID = target.ID
		in.TargetCompanyID = target.CompanyID
	}
	d, err := g.evaluator.Authorize(ctx, in)
	if err != nil {
		log.Printf("rbac: policy evaluation for %s failed: %v", id.UserID, err)
		return interceptors.Identity{}, status.Error(codes.PermissionDenied, "permission denied")
	}
	if !d.Allow {
		return interceptors.Identity{}, status.Error(codes.PermissionDenied, "permission denied: "+d.Reason)
	}
	return id, nil
}
