package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   codes.Code
		reason string
	}{
		{"invalid credentials", ErrInvalidCredentials, codes.Unauthenticated, TagInvalidCredentials},
		{"session not found", ErrSessionNotFound, codes.Unauthenticated, TagSessionNotFound},
		{"challenge", ErrChallengeNotFound, codes.NotFound, TagChallengeNotFound},
		{"limit", ErrLimitExceeded, codes.ResourceExhausted, TagLimitExceeded},
		{"replay", ErrReplayDetected, codes.Unauthenticated, TagReplayDetected},
		{"denied", ErrPermissionDenied, codes.PermissionDenied, TagPermissionDenied},
		{"wrapped storage", fmt.Errorf("sessionRepo.Create: %w", ErrStorage), codes.Unavailable, TagStorage},
		{"untagged", errors.New("relation \"users\" does not exist"), codes.Internal, TagInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ToStatus("/test/Method", tt.err)
			st, ok := status.FromError(err)
			if !ok {
				t.Fatalf("not a status: %v", err)
			}
			if st.Code() != tt.code {
				t.Errorf("code = %v, want %v", st.Code(), tt.code)
			}
			if got := ReasonOf(err); got != tt.reason {
				t.Errorf("reason = %q, want %q", got, tt.reason)
			}
			if strings.Contains(st.Message(), "users") || strings.Contains(st.Message(), "sessionRepo") {
				t.Errorf("message leaks cause: %q", st.Message())
			}
		})
	}
}

func TestToStatus_Passthrough(t *testing.T) {
	if ToStatus("m", nil) != nil {
		t.Error("nil should stay nil")
	}
	orig := status.Error(codes.Unimplemented, "nope")
	if got := ToStatus("m", orig); status.Code(got) != codes.Unimplemented {
		t.Errorf("status error not passed through: %v", got)
	}
	if got := ToStatus("m", context.DeadlineExceeded); status.Code(got) != codes.DeadlineExceeded {
		t.Errorf("deadline = %v", status.Code(got))
	}
}
