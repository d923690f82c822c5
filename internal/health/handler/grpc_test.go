package handler

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// mockPinger implements Pinger for tests.
type mockPinger struct {
	pingErr error
}

func (m *mockPinger) Ping(context.Context) error {
	return m.pingErr
}

// mockPolicyChecker implements PolicyChecker for tests.
type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func check(t *testing.T, srv *Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check must not return gRPC error: %v", err)
	}
	return resp.GetStatus()
}

func TestCheck_NilProbes(t *testing.T) {
	if got := check(t, NewServer(NewChecker(nil, nil))); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
	if got := check(t, NewServer(nil)); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("nil checker status = %v, want SERVING", got)
	}
}

func TestCheck_PingerSuccess(t *testing.T) {
	if got := check(t, NewServer(NewChecker(&mockPinger{}, &mockPolicyChecker{}))); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", got)
	}
}

func TestCheck_PingerFailure(t *testing.T) {
	srv := NewServer(NewChecker(&mockPinger{pingErr: errors.New("connection refused")}, nil))
	if got := check(t, srv); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", got)
	}
}

func TestCheck_PolicyCheckerFailure(t *testing.T) {
	srv := NewServer(NewChecker(&mockPinger{}, &mockPolicyChecker{healthErr: errors.New("rego compile failed")}))
	if got := check(t, srv); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", got)
	}
}

func TestCheck_UnknownService(t *testing.T) {
	srv := NewServer(NewChecker(nil, nil))
	_, err := srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "other"})
	if st, _ := status.FromError(err); st.Code() != codes.NotFound {
		t.Errorf("code = %v, want NotFound", st.Code())
	}
}
