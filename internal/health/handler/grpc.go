package handler

import (
	"context"
	"log"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Pinger checks database connectivity (e.g. *pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks that the policy engine can evaluate.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker runs the readiness probes shared by the gRPC health service and the HTTP ops router.
type Checker struct {
	pinger Pinger
	policy PolicyChecker
}

// NewChecker returns a Checker. Nil probes are skipped.
func NewChecker(pinger Pinger, policy PolicyChecker) *Checker {
	return &Checker{pinger: pinger, policy: policy}
}

// Result is the outcome of each probe; an empty string means the probe passed or was skipped.
type Result struct {
	Database string `json:"database,omitempty"`
	Policy   string `json:"policy,omitempty"`
}

// Ready reports whether every probe passed.
func (r Result) Ready() bool {
	return r.Database == "" && r.Policy == ""
}

// Check runs every configured probe.
func (c *Checker) Check(ctx context.Context) Result {
	var r Result
	if c == nil {
		return r
	}
	if c.pinger != nil {
		if err := c.pinger.Ping(ctx); err != nil {
			log.Printf("health: database ping failed: %v", err)
			r.Database = "unavailable"
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			log.Printf("health: policy check failed: %v", err)
			r.Policy = "unavailable"
		}
	}
	return r
}

// Server implements grpc.health.v1.Health. Check runs the probes on every call.
type Server struct {
	healthpb.UnimplementedHealthServer
	checker *Checker
}

// NewServer returns a new Health gRPC server.
func NewServer(checker *Checker) *Server {
	return &Server{checker: checker}
}

// Check returns SERVING when every probe passes and NOT_SERVING otherwise. Probe failures are
// never gRPC errors. Only the overall service ("") is known.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if req.GetService() != "" {
		return nil, status.Error(codes.NotFound, "unknown service")
	}
	if !s.checker.Check(ctx).Ready() {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
