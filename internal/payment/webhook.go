package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
)

const SignatureHeader = "X-Signature"

// Callback is the provider's notification that a redirect payment settled.
type Callback struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    string `json:"amount"`
}

func (c Callback) Paid() bool {
	switch strings.ToLower(c.Status) {
	case "paid", "succeeded", "completed", "confirmed":
		return true
	}
	return false
}

type WebhookVerifier interface {
	ParseCallback(body []byte, signature string) (Callback, error)
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignedCallback(secret string, body []byte, signature string) (Callback, error) {
	if secret == "" {
		return Callback{}, fmt.Errorf("%w: webhook secret not configured", apperr.ErrForbidden)
	}
	want := Sign(secret, body)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(signature)))) {
		return Callback{}, fmt.Errorf("%w: bad webhook signature", apperr.ErrUnauthenticated)
	}

	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return Callback{}, apperr.Invalid("malformed callback: %v", err)
	}
	if cb.Reference == "" {
		return Callback{}, apperr.Invalid("callback reference is required")
	}
	return cb, nil
}
