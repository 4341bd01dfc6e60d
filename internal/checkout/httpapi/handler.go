// Package httpapi exposes checkout submission and fee quotes over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/app"
	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/transport/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Checkout interface {
	Submit(ctx context.Context, req app.SubmitRequest) (app.SubmitResult, error)
	Quote(ctx context.Context, buyerID string, items []domain.CartLine, method string) (domain.Quote, error)
}

type Handler struct {
	svc     Checkout
	limiter *httpx.UserRateLimiter
	log     *slog.Logger
}

// NewHandler wires the checkout routes. A nil limiter disables per-buyer
// rate limiting.
func NewHandler(svc Checkout, limiter *httpx.UserRateLimiter, log *slog.Logger) *Handler {
	return &Handler{svc: svc, limiter: limiter, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireUser)

		submit := http.Handler(http.HandlerFunc(h.submit))
		if h.limiter != nil {
			submit = h.limiter.Middleware(submit)
		}
		r.Method(http.MethodPost, "/api/checkout", submit)
		r.Get("/api/checkout/quote", h.quote)
	})
}

type itemRequest struct {
	ProductID      string            `json:"productId"`
	Quantity       int32             `json:"quantity"`
	RequiredFields map[string]string `json:"requiredFields,omitempty"`
}

type submitRequest struct {
	Items         []itemRequest `json:"items"`
	PaymentMethod string        `json:"paymentMethod"`
}

type feesResponse struct {
	Currency    string `json:"currency"`
	Subtotal    string `json:"subtotal"`
	PlatformFee string `json:"platformFee"`
	GatewayFee  string `json:"gatewayFee"`
	GrandTotal  string `json:"grandTotal"`
}

type paymentResponse struct {
	Kind        string     `json:"kind"`
	RedirectURL string     `json:"redirectUrl,omitempty"`
	QRImage     string     `json:"qrImage,omitempty"`
	QRPayload   string     `json:"qrPayload,omitempty"`
	Address     string     `json:"address,omitempty"`
	Coin        string     `json:"coin,omitempty"`
	Network     string     `json:"network,omitempty"`
	MemoCode    string     `json:"memoCode,omitempty"`
	Reference   string     `json:"reference,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

type orderSummary struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`
	ProductID   string `json:"productId"`
	Quantity    int32  `json:"quantity"`
	TotalAmount string `json:"totalAmount"`
	Status      string `json:"status"`
}

type submitResponse struct {
	OrderIDs  []string        `json:"orderIds"`
	Reference string          `json:"reference"`
	Orders    []orderSummary  `json:"orders"`
	Fees      feesResponse    `json:"fees"`
	Payment   paymentResponse `json:"payment"`
}

type quoteLine struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	LineTotal string `json:"lineTotal"`
}

type quoteResponse struct {
	PaymentMethod string       `json:"paymentMethod"`
	Lines         []quoteLine  `json:"lines"`
	Fees          feesResponse `json:"fees"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	res, err := h.svc.Submit(r.Context(), app.SubmitRequest{
		BuyerID: httpx.UserID(r.Context()),
		Items:   toLines(req.Items),
		Method:  req.PaymentMethod,
	})
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	orders := make([]orderSummary, 0, len(res.Orders))
	for _, o := range res.Orders {
		orders = append(orders, orderSummary{
			ID:          o.ID,
			OrderNumber: o.OrderNumber,
			ProductID:   o.ProductID,
			Quantity:    o.Quantity,
			TotalAmount: money(o.TotalAmount),
			Status:      string(o.Status),
		})
	}

	currency := ""
	if len(res.Orders) > 0 {
		currency = res.Orders[0].Currency
	}

	httpx.WriteJSON(w, http.StatusCreated, submitResponse{
		OrderIDs:  res.OrderIDs(),
		Reference: res.Reference,
		Orders:    orders,
		Fees:      toFees(res.Fees, currency),
		Payment:   toPayment(res),
	})
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Query().Get("paymentMethod")
	q, err := h.svc.Quote(r.Context(), httpx.UserID(r.Context()), nil, method)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	lines := make([]quoteLine, 0, len(q.Lines))
	for _, l := range q.Lines {
		lines = append(lines, quoteLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: money(l.UnitPrice),
			LineTotal: money(l.LineTotal),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, quoteResponse{
		PaymentMethod: string(q.Method),
		Lines:         lines,
		Fees:          toFees(q.Fees, q.Currency),
	})
}

func toLines(items []itemRequest) []domain.CartLine {
	if len(items) == 0 {
		return nil
	}
	out := make([]domain.CartLine, 0, len(items))
	for _, it := range items {
		out = append(out, domain.CartLine{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			RequiredFields: it.RequiredFields,
		})
	}
	return out
}

func toFees(f domain.FeeBreakdown, currency string) feesResponse {
	return feesResponse{
		Currency:    currency,
		Subtotal:    money(f.Subtotal),
		PlatformFee: money(f.PlatformFee),
		GatewayFee:  money(f.GatewayFee),
		GrandTotal:  money(f.GrandTotal),
	}
}

func toPayment(res app.SubmitResult) paymentResponse {
	p := res.Payment
	out := paymentResponse{
		Kind:        string(p.Kind),
		RedirectURL: p.RedirectURL,
		QRImage:     p.QRImage,
		QRPayload:   p.QRPayload,
		Address:     p.Address,
		Coin:        p.Coin,
		Network:     p.Network,
		MemoCode:    p.MemoCode,
		Reference:   p.Reference,
	}
	if !p.ExpiresAt.IsZero() {
		at := p.ExpiresAt.UTC()
		out.ExpiresAt = &at
	}
	return out
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
