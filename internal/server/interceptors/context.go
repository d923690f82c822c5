package interceptors

import "context"

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// Identity is the caller established by AuthUnary from a verified access token.
type Identity struct {
	UserID    string
	LoginID   string
	Hash      string
	Role      string
	CompanyID string
}

// WithIdentity returns a context carrying id.
// Handlers read it via IdentityFrom or the GetX helpers.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller identity and true if AuthUnary authenticated the request.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// GetUserID returns the user_id from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	id, ok := IdentityFrom(ctx)
	return id.UserID, ok
}

// GetHash returns the session correlation hash from context and true if set; otherwise "", false.
func GetHash(ctx context.Context) (string, bool) {
	id, ok := IdentityFrom(ctx)
	return id.Hash, ok && id.Hash != ""
}

// GetRole returns the caller's role from context and true if set; otherwise "", false.
func GetRole(ctx context.Context) (string, bool) {
	id, ok := IdentityFrom(ctx)
	return id.Role, ok && id.Role != ""
}

// GetCompanyID returns the caller's company id from context and true if set; otherwise "", false.
func GetCompanyID(ctx context.Context) (string, bool) {
	id, ok := IdentityFrom(ctx)
	return id.CompanyID, ok && id.CompanyID != ""
}
