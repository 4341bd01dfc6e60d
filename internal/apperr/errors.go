// Package apperr holds the error taxonomy shared by every bounded context.
// Callers wrap these sentinels with fmt.Errorf("...: %w", err) and match them
// with errors.Is; the transport layer turns them into gRPC codes.
package apperr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrOutOfStock         = errors.New("insufficient stock")
	ErrInsufficientFunds  = errors.New("insufficient wallet balance")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected the request")
	ErrExpiredSession     = errors.New("payment session expired")
	ErrReviewRejected     = errors.New("order rejected in review")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
)

// Invalid wraps ErrInvalidInput with a human readable reason.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Reason is the machine readable reason string sent to API clients.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrOutOfStock):
		return "insufficient_stock"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInvalidInput):
		return "validation_error"
	case errors.Is(err, ErrGatewayUnavailable):
		return "gateway_unavailable"
	case errors.Is(err, ErrGatewayRejected):
		return "gateway_rejected"
	case errors.Is(err, ErrExpiredSession):
		return "expired_session"
	case errors.Is(err, ErrReviewRejected):
		return "review_rejected"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return "rate_limited"
	}
	return "internal"
}

// ToStatus maps an application error onto a gRPC status. Unknown errors
// become codes.Internal with a generic message so internals do not leak.
func ToStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if st, ok := status.FromError(err); ok {
		return st
	}

	var code codes.Code
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrEmptyCart), errors.Is(err, ErrGatewayRejected):
		code = codes.InvalidArgument
	case errors.Is(err, ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrOutOfStock):
		code = codes.FailedPrecondition
	case errors.Is(err, ErrExpiredSession), errors.Is(err, ErrReviewRejected):
		code = codes.OutOfRange
	case errors.Is(err, ErrConflict):
		code = codes.Aborted
	case errors.Is(err, ErrGatewayUnavailable):
		code = codes.Unavailable
	case errors.Is(err, ErrUnauthenticated):
		code = codes.Unauthenticated
	case errors.Is(err, ErrForbidden):
		code = codes.PermissionDenied
	default:
		return status.New(codes.Internal, "internal error")
	}
	return status.New(code, err.Error())
}
