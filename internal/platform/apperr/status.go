package apperr

import (
	"context"
	"errors"
	"log"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain attached to every status produced by ToStatus.
const Domain = "member-service"

var codeByTag = map[string]codes.Code{
	TagInvalidCredentials: codes.Unauthenticated,
	TagInvalidToken:       codes.Unauthenticated,
	TagSessionNotFound:    codes.Unauthenticated,
	TagReplayDetected:     codes.Unauthenticated,
	TagVerificationFailed: codes.Unauthenticated,
	TagChallengeNotFound:  codes.NotFound,
	TagNoCredentials:      codes.NotFound,
	TagLimitExceeded:      codes.ResourceExhausted,
	TagAlreadyExists:      codes.AlreadyExists,
	TagInvalidArgument:    codes.InvalidArgument,
	TagPermissionDenied:   codes.PermissionDenied,
	TagStorage:            codes.Unavailable,
	TagInternal:           codes.Internal,
}

// Code returns the gRPC code for err's tag.
func Code(err error) codes.Code {
	return codeByTag[Tag(err)]
}

// ToStatus converts err into a gRPC status error carrying the generic message and an
// errdetails.ErrorInfo whose Reason is the stable tag. Errors that already are gRPC statuses
// pass through; context cancellation maps to Canceled / DeadlineExceeded. The cause is logged
// for untagged errors only and never sent to the client.
func ToStatus(method string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	tag := Tag(err)
	if tag == TagInternal || tag == TagStorage {
		log.Printf("%s: %v", method, err)
	}
	st := status.New(codeByTag[tag], Message(err))
	detailed, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: tag, Domain: Domain})
	if derr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// ReasonOf extracts the ErrorInfo reason from a status error, or "" when none is attached.
func ReasonOf(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}
