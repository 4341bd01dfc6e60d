package httpx

import (
	"log/slog"
	"net/http"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// StatusFromGRPC converts a gRPC status error into an HTTP status, a stable
// code string and the message to return.
func StatusFromGRPC(err error) (int, string, string) {
	st, ok := status.FromError(err)
	if !ok {
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}

	switch st.Code() {
	case codes.InvalidArgument:
		return http.StatusBadRequest, "INVALID_ARGUMENT", st.Message()
	case codes.NotFound:
		return http.StatusNotFound, "NOT_FOUND", st.Message()
	case codes.FailedPrecondition:
		return http.StatusUnprocessableEntity, "FAILED_PRECONDITION", st.Message()
	case codes.Aborted, codes.AlreadyExists:
		return http.StatusConflict, "CONFLICT", st.Message()
	case codes.OutOfRange:
		return http.StatusGone, "GONE", st.Message()
	case codes.Unauthenticated:
		return http.StatusUnauthorized, "UNAUTHENTICATED", st.Message()
	case codes.PermissionDenied:
		return http.StatusForbidden, "PERMISSION_DENIED", st.Message()
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", st.Message()
	case codes.Unavailable, codes.DeadlineExceeded:
		return http.StatusServiceUnavailable, "UNAVAILABLE", st.Message()
	default:
		return http.StatusInternalServerError, "INTERNAL", "internal error"
	}
}

// WriteError renders err as the JSON error envelope. Server side failures are
// logged; client errors are not.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	httpStatus, code, msg := StatusFromGRPC(apperr.ToStatus(err).Err())
	if httpStatus >= http.StatusInternalServerError && log != nil {
		log.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("code", code),
			slog.Any("err", err))
	}
	WriteJSON(w, httpStatus, errorBody{Error: errorDetail{
		Code:    code,
		Reason:  apperr.Reason(err),
		Message: msg,
	}})
}
