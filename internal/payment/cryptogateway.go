package payment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
)

type CryptoGateway struct {
	redirectRail
}

func NewCryptoGateway(cfg ProviderConfig, hc *http.Client) *CryptoGateway {
	return &CryptoGateway{redirectRail: newRedirectRail(cfg, hc)}
}

func (g *CryptoGateway) Method() domain.PaymentMethod { return domain.MethodCryptoGateway }

type invoiceRequest struct {
	OrderID       string `json:"order_id"`
	PriceAmount   string `json:"price_amount"`
	PriceCurrency string `json:"price_currency"`
	Description   string `json:"order_description"`
	SuccessURL    string `json:"success_url"`
	CancelURL     string `json:"cancel_url"`
}

type invoiceResponse struct {
	ID         string `json:"id"`
	InvoiceURL string `json:"invoice_url"`
}

func (g *CryptoGateway) Initiate(ctx context.Context, c Charge) (Initiation, error) {
	if c.Sandbox {
		return g.sandbox(c), nil
	}

	endpoint, err := g.endpoint("/v1/invoice")
	if err != nil {
		return Initiation{}, err
	}

	var resp invoiceResponse
	err = g.client.postJSON(ctx, endpoint, invoiceRequest{
		OrderID:       c.Reference,
		PriceAmount:   c.Amount.StringFixed(2),
		PriceCurrency: c.Currency,
		Description:   c.Description,
		SuccessURL:    g.cfg.SuccessURL,
		CancelURL:     g.cfg.CancelURL,
	}, &resp)
	if err != nil {
		return Initiation{}, fmt.Errorf("create crypto invoice: %w", err)
	}
	if resp.InvoiceURL == "" {
		return Initiation{}, fmt.Errorf("%w: provider returned no invoice url", apperr.ErrGatewayUnavailable)
	}

	return Initiation{
		Kind:        KindRedirect,
		RedirectURL: resp.InvoiceURL,
		Reference:   c.Reference,
		ExpiresAt:   expiry(g.now(), c.TTL, time.Hour),
	}, nil
}
