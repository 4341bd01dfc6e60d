package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
)

const maxBodyBytes = 1 << 20

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON reads a bounded JSON body into v. An empty body is allowed when
// allowEmpty is set and leaves v untouched.
func DecodeJSON(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return apperr.Invalid("malformed request body: %v", err)
	}
	return nil
}
