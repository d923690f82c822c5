package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const policyQuery = "data.member.authz.decision"

// DefaultRegoPolicy ranks member < admin < super_admin. super_admin may act on anyone; an admin
// may act only on members of their own company; members may act only on themselves.
const DefaultRegoPolicy = `package member.authz

role_rank := {"member": 1, "admin": 2, "super_admin": 3}

default allow := false

allow if {
	input.caller.role == "super_admin"
}

allow if {
	role_rank[input.caller.role] >= role_rank[input.required_role]
	same_scope
}

same_scope if {
	input.target.user_id == ""
}

same_scope if {
	input.target.user_id == input.caller.id
}

same_scope if {
	input.caller.role == "admin"
	input.caller.company_id != ""
	input.target.company_id == input.caller.company_id
}

reason := "super_admin" if {
	input.caller.role == "super_admin"
} else := "allowed" if {
	allow
} else := "insufficient role" if {
	not role_rank[input.caller.role] >= role_rank[input.required_role]
} else := "target outside caller scope"

decision := {"allow": allow, "reason": reason}
`

// OPAEvaluator evaluates the role policy with an in-process OPA Rego engine. The query is
// prepared once at construction.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles modules (DefaultRegoPolicy when none are given) and prepares the
// decision query.
func NewOPAEvaluator(ctx context.Context, modules ...string) (*OPAEvaluator, error) {
	if len(modules) == 0 {
		modules = []string{DefaultRegoPolicy}
	}
	files := make(map[string]string, len(modules))
	for i, m := range modules {
		files[fmt.Sprintf("policy_%d.rego", i)] = m
	}
	compiler, err := ast.CompileModules(files)
	if err != nil {
		return nil, fmt.Errorf("compile policies: %w", err)
	}
	pq, err := rego.New(rego.Query(policyQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy query: %w", err)
	}
	return &OPAEvaluator{query: pq}, nil
}

// HealthCheck evaluates a fixed member-on-self request, which must be allowed.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	d, err := e.Authorize(ctx, Input{CallerID: "health", CallerRole: "member", RequiredRole: "member"})
	if err != nil {
		return err
	}
	if !d.Allow {
		return errors.New("policy denied health probe")
	}
	return nil
}

// Authorize evaluates the policy for in. Evaluation failures deny.
func (e *OPAEvaluator) Authorize(ctx context.Context, in Input) (Decision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(in)))
	if err != nil {
		return Decision{Reason: "evaluation failed"}, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{Reason: "no decision"}, errors.New("policy query returned no result")
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{Reason: "malformed decision"}, fmt.Errorf("policy decision has type %T", rs[0].Expressions[0].Value)
	}
	allow, _ := obj["allow"].(bool)
	reason, _ := obj["reason"].(string)
	return Decision{Allow: allow, Reason: reason}, nil
}

func buildInput(in Input) map[string]interface{} {
	return map[string]interface{}{
		"caller": map[string]interface{}{
			"id":         in.CallerID,
			"role":       in.CallerRole,
			"company_id": in.CallerCompanyID,
		},
		"required_role": in.RequiredRole,
		"target": map[string]interface{}{
			"user_id":    in.TargetUserID,
			"company_id": in.TargetCompanyID,
		},
	}
}
