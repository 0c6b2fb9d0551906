package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error categorises Firestore failures for callers that should not inspect gRPC codes.
type Error struct {
	op   string
	code codes.Code
	err  error
}

func (e *Error) Error() string {
	if e.op != "" {
		return fmt.Sprintf("firestore: %s: %v", e.op, e.err)
	}
	return "firestore: " + e.err.Error()
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the gRPC status code reported by the backend.
func (e *Error) Code() codes.Code {
	return e.code
}

// IsNotFound reports whether the document does not exist.
func (e *Error) IsNotFound() bool {
	return e != nil && e.code == codes.NotFound
}

// IsUnavailable reports whether the backend is temporarily unreachable or refusing work.
func (e *Error) IsUnavailable() bool {
	if e == nil {
		return false
	}
	switch e.code {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return true
	}
	return false
}

// IsPermissionDenied reports whether the credentials lack access to the document.
func (e *Error) IsPermissionDenied() bool {
	return e != nil && (e.code == codes.PermissionDenied || e.code == codes.Unauthenticated)
}

// WrapError annotates Firestore errors with op. Context cancellation passes through unchanged.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch code := status.Code(err); code {
	case codes.Canceled:
		return context.Canceled
	default:
		var existing *Error
		if errors.As(err, &existing) {
			return existing
		}
		return &Error{op: op, code: code, err: err}
	}
}
