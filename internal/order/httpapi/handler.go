// Package httpapi serves payment polling, provider callbacks and the admin
// review and sweep endpoints.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	checkoutdomain "github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/order/app"
	"github.com/dwikikusuma/marketplace-checkout/internal/order/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/payment"
	"github.com/dwikikusuma/marketplace-checkout/internal/transport/httpx"
	"github.com/go-chi/chi/v5"
)

const maxCallbackBytes = 64 << 10

type Orders interface {
	Status(ctx context.Context, buyerID string, orderIDs []string) (app.StatusResult, error)
	SandboxConfirm(ctx context.Context, buyerID string, orderIDs []string, reference string) (app.StatusResult, error)
	HandleCallback(ctx context.Context, method checkoutdomain.PaymentMethod, body []byte, signature string) (int, error)
	ListReviews(ctx context.Context, limit int, cursor string) ([]domain.Order, string, error)
	Decide(ctx context.Context, d domain.ReviewDecision) (domain.Order, error)
	ProcessDueDeliveries(ctx context.Context) (int, error)
	ExpireStale(ctx context.Context) (int, error)
}

type Handler struct {
	svc     Orders
	sandbox bool
	log     *slog.Logger
}

// NewHandler builds the order routes. The sandbox confirmation route only
// exists when sandbox is set.
func NewHandler(svc Orders, sandbox bool, log *slog.Logger) *Handler {
	return &Handler{svc: svc, sandbox: sandbox, log: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireUser)
		r.Post("/api/checkout/status", h.status)
		if h.sandbox {
			r.Post("/api/checkout/sandbox-confirm", h.sandboxConfirm)
		}
	})

	r.Post("/api/payments/callback/{method}", h.callback)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(httpx.RequireAdmin)
		r.Get("/reviews", h.listReviews)
		r.Patch("/reviews/{id}", h.decide)
		r.Post("/deliveries/process", h.processDeliveries)
		r.Post("/payments/expire", h.expirePayments)
	})
}

type statusRequest struct {
	OrderIDs  []string `json:"orderIds"`
	Reference string   `json:"reference,omitempty"`
}

type orderStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type statusResponse struct {
	Status    string        `json:"status"`
	Reference string        `json:"reference"`
	Orders    []orderStatus `json:"orders"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
}

type orderView struct {
	ID                   string     `json:"id"`
	OrderNumber          string     `json:"orderNumber"`
	BuyerID              string     `json:"buyerId"`
	SellerID             string     `json:"sellerId"`
	ProductID            string     `json:"productId"`
	ProductName          string     `json:"productName"`
	Quantity             int32      `json:"quantity"`
	TotalAmount          string     `json:"totalAmount"`
	Currency             string     `json:"currency"`
	PaymentMethod        string     `json:"paymentMethod"`
	PaymentReference     string     `json:"paymentReference"`
	Status               string     `json:"status"`
	IsHighValue          bool       `json:"isHighValue"`
	RequiresManualReview bool       `json:"requiresManualReview"`
	CancelReason         string     `json:"cancelReason,omitempty"`
	ReviewedBy           string     `json:"reviewedBy,omitempty"`
	ReviewedAt           *time.Time `json:"reviewedAt,omitempty"`
	PaidAt               *time.Time `json:"paidAt,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
}

type reviewListResponse struct {
	Orders     []orderView `json:"orders"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

type decideRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	res, err := h.svc.Status(r.Context(), httpx.UserID(r.Context()), req.OrderIDs)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toStatus(res))
}

func (h *Handler) sandboxConfirm(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	res, err := h.svc.SandboxConfirm(r.Context(), httpx.UserID(r.Context()), req.OrderIDs, req.Reference)
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toStatus(res))
}

func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	method, err := checkoutdomain.ParsePaymentMethod(chi.URLParam(r, "method"))
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		httpx.WriteError(w, r, h.log, apperr.Invalid("read callback body: %v", err))
		return
	}

	n, err := h.svc.HandleCallback(r.Context(), method, body, r.Header.Get(payment.SignatureHeader))
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"confirmed": n})
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.WriteError(w, r, h.log, apperr.Invalid("limit must be a positive number"))
			return
		}
		limit = n
	}

	orders, next, err := h.svc.ListReviews(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, toView(o))
	}
	httpx.WriteJSON(w, http.StatusOK, reviewListResponse{Orders: views, NextCursor: next})
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}

	o, err := h.svc.Decide(r.Context(), domain.ReviewDecision{
		OrderID: chi.URLParam(r, "id"),
		Action:  domain.ReviewAction(req.Action),
		Reason:  req.Reason,
		AdminID: httpx.AdminID(r.Context()),
	})
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toView(o))
}

func (h *Handler) processDeliveries(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ProcessDueDeliveries(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"processed": n})
}

func (h *Handler) expirePayments(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ExpireStale(r.Context())
	if err != nil {
		httpx.WriteError(w, r, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"expired": n})
}

func toStatus(res app.StatusResult) statusResponse {
	out := statusResponse{
		Status:    string(res.Status),
		Reference: res.Reference,
		Orders:    make([]orderStatus, 0, len(res.Orders)),
	}
	for _, o := range res.Orders {
		out.Orders = append(out.Orders, orderStatus{ID: o.ID, Status: string(o.Status)})
	}
	if res.ExpiresAt != nil {
		at := res.ExpiresAt.UTC()
		out.ExpiresAt = &at
	}
	return out
}

func toView(o domain.Order) orderView {
	return orderView{
		ID:                   o.ID,
		OrderNumber:          o.OrderNumber,
		BuyerID:              o.BuyerID,
		SellerID:             o.SellerID,
		ProductID:            o.ProductID,
		ProductName:          o.ProductName,
		Quantity:             o.Quantity,
		TotalAmount:          o.TotalAmount.StringFixed(2),
		Currency:             o.Currency,
		PaymentMethod:        string(o.PaymentMethod),
		PaymentReference:     o.PaymentReference,
		Status:               string(o.Status),
		IsHighValue:          o.IsHighValue,
		RequiresManualReview: o.RequiresManualReview,
		CancelReason:         o.CancelReason,
		ReviewedBy:           o.ReviewedBy,
		ReviewedAt:           o.ReviewedAt,
		PaidAt:               o.PaidAt,
		CreatedAt:            o.CreatedAt,
	}
}
