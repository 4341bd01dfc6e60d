package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
)

// Identity is resolved by the upstream auth proxy and forwarded as headers.
const (
	HeaderUserID  = "X-User-ID"
	HeaderAdminID = "X-Admin-ID"
)

type ctxKey string

const (
	userKey  ctxKey = "user_id"
	adminKey ctxKey = "admin_id"
)

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id == "" {
			WriteError(w, r, nil, apperr.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, id)))
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderAdminID))
		if id == "" {
			WriteError(w, r, nil, apperr.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey, id)))
	})
}

func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey).(string)
	return id
}

func AdminID(ctx context.Context) string {
	id, _ := ctx.Value(adminKey).(string)
	return id
}
