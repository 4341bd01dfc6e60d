package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
)

type ProviderConfig struct {
	BaseURL    string
	APIKey     string
	Secret     string
	SuccessURL string
	CancelURL  string
	SandboxURL string
}

// redirectRail is shared by the providers that send the buyer to a hosted
// page and report back with a signed callback.
type redirectRail struct {
	cfg    ProviderConfig
	client client
	now    func() time.Time
}

func newRedirectRail(cfg ProviderConfig, hc *http.Client) redirectRail {
	return redirectRail{cfg: cfg, client: newClient(cfg.APIKey, hc), now: time.Now}
}

func (r redirectRail) sandbox(c Charge) Initiation {
	q := url.Values{}
	q.Set("reference", c.Reference)
	q.Set("amount", c.Amount.StringFixed(2))
	q.Set("currency", c.Currency)
	return Initiation{
		Kind:        KindRedirect,
		RedirectURL: r.cfg.SandboxURL + "?" + q.Encode(),
		Reference:   c.Reference,
		ExpiresAt:   expiry(r.now(), c.TTL, time.Hour),
	}
}

func (r redirectRail) endpoint(path string) (string, error) {
	if r.cfg.BaseURL == "" {
		return "", fmt.Errorf("%w: provider url not configured", apperr.ErrGatewayUnavailable)
	}
	return strings.TrimRight(r.cfg.BaseURL, "/") + path, nil
}

func (r redirectRail) ParseCallback(body []byte, signature string) (Callback, error) {
	return parseSignedCallback(r.cfg.Secret, body, signature)
}

type HostedCard struct {
	redirectRail
}

func NewHostedCard(cfg ProviderConfig, hc *http.Client) *HostedCard {
	return &HostedCard{redirectRail: newRedirectRail(cfg, hc)}
}

func (h *HostedCard) Method() domain.PaymentMethod { return domain.MethodHostedCard }

type checkoutSessionRequest struct {
	Reference   string `json:"reference"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	SuccessURL  string `json:"success_url"`
	CancelURL   string `json:"cancel_url"`
	ExpiresAt   int64  `json:"expires_at"`
}

type checkoutSessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (h *HostedCard) Initiate(ctx context.Context, c Charge) (Initiation, error) {
	if c.Sandbox {
		return h.sandbox(c), nil
	}

	endpoint, err := h.endpoint("/v1/checkout/sessions")
	if err != nil {
		return Initiation{}, err
	}

	expiresAt := expiry(h.now(), c.TTL, time.Hour)
	var resp checkoutSessionResponse
	err = h.client.postJSON(ctx, endpoint, checkoutSessionRequest{
		Reference:   c.Reference,
		Amount:      c.Amount.StringFixed(2),
		Currency:    c.Currency,
		Description: c.Description,
		SuccessURL:  h.cfg.SuccessURL,
		CancelURL:   h.cfg.CancelURL,
		ExpiresAt:   expiresAt.Unix(),
	}, &resp)
	if err != nil {
		return Initiation{}, fmt.Errorf("create card checkout session: %w", err)
	}
	if resp.URL == "" {
		return Initiation{}, fmt.Errorf("%w: provider returned no checkout url", apperr.ErrGatewayUnavailable)
	}

	return Initiation{
		Kind:        KindRedirect,
		RedirectURL: resp.URL,
		Reference:   c.Reference,
		ExpiresAt:   expiresAt,
	}, nil
}
