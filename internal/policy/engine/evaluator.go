package engine

import "context"

// Input is what the role policy sees: who is calling, what role the operation needs, and
// whose data it touches.
type Input struct {
	CallerID        string
	CallerRole      string
	CallerCompanyID string
	RequiredRole    string
	// TargetUserID and TargetCompanyID are empty when the operation has no target member.
	TargetUserID    string
	TargetCompanyID string
}

// Decision is the outcome of a policy evaluation.
type Decision struct {
	Allow  bool
	Reason string
}

// Evaluator decides whether a caller may perform a role-guarded operation.
type Evaluator interface {
	Authorize(ctx context.Context, in Input) (Decision, error)
}
