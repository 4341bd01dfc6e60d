package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	checkoutdomain "github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/order/app"
	"github.com/dwikikusuma/marketplace-checkout/internal/order/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/payment"
	"github.com/dwikikusuma/marketplace-checkout/internal/transport/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockOrders struct {
	statusFn   func(ctx context.Context, buyerID string, ids []string) (app.StatusResult, error)
	sandboxFn  func(ctx context.Context, buyerID string, ids []string, reference string) (app.StatusResult, error)
	callbackFn func(ctx context.Context, m checkoutdomain.PaymentMethod, body []byte, sig string) (int, error)
	listFn     func(ctx context.Context, limit int, cursor string) ([]domain.Order, string, error)
	decideFn   func(ctx context.Context, d domain.ReviewDecision) (domain.Order, error)
	deliverFn  func(ctx context.Context) (int, error)
	expireFn   func(ctx context.Context) (int, error)
}

func (m *mockOrders) Status(ctx context.Context, buyerID string, ids []string) (app.StatusResult, error) {
	return m.statusFn(ctx, buyerID, ids)
}

func (m *mockOrders) SandboxConfirm(ctx context.Context, buyerID string, ids []string, reference string) (app.StatusResult, error) {
	return m.sandboxFn(ctx, buyerID, ids, reference)
}

func (m *mockOrders) HandleCallback(ctx context.Context, method checkoutdomain.PaymentMethod, body []byte, sig string) (int, error) {
	return m.callbackFn(ctx, method, body, sig)
}

func (m *mockOrders) ListReviews(ctx context.Context, limit int, cursor string) ([]domain.Order, string, error) {
	return m.listFn(ctx, limit, cursor)
}

func (m *mockOrders) Decide(ctx context.Context, d domain.ReviewDecision) (domain.Order, error) {
	return m.decideFn(ctx, d)
}

func (m *mockOrders) ProcessDueDeliveries(ctx context.Context) (int, error) { return m.deliverFn(ctx) }

func (m *mockOrders) ExpireStale(ctx context.Context) (int, error) { return m.expireFn(ctx) }

func router(svc Orders, sandbox bool) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc, sandbox, nil).Routes(r)
	return r
}

type call struct {
	method, path, body string
	headers            map[string]string
}

func (c call) do(h http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func buyer(id string) map[string]string { return map[string]string{httpx.HeaderUserID: id} }
func admin(id string) map[string]string { return map[string]string{httpx.HeaderAdminID: id} }

func TestStatus(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC)
	svc := &mockOrders{statusFn: func(_ context.Context, buyerID string, ids []string) (app.StatusResult, error) {
		if buyerID != "b1" {
			return app.StatusResult{}, fmt.Errorf("%w: one or more orders do not exist", apperr.ErrNotFound)
		}
		assert.Equal(t, []string{"o1", "o2"}, ids)
		return app.StatusResult{
			Status:    app.PollExpired,
			Reference: "PAY-1",
			Orders: []app.OrderStatus{
				{ID: "o1", Status: domain.StatusCancelled},
				{ID: "o2", Status: domain.StatusCancelled},
			},
			ExpiresAt: &expires,
		}, nil
	}}
	h := router(svc, false)

	rec := call{http.MethodPost, "/api/checkout/status", `{"orderIds":["o1","o2"]}`, buyer("b1")}.do(h)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "expired", body.Status)
	assert.Len(t, body.Orders, 2)
	assert.Equal(t, "cancelled", body.Orders[0].Status)
	require.NotNil(t, body.ExpiresAt)

	rec = call{http.MethodPost, "/api/checkout/status", `{"orderIds":["o1"]}`, buyer("intruder")}.do(h)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = call{http.MethodPost, "/api/checkout/status", `{"orderIds":["o1"]}`, nil}.do(h)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSandboxConfirmRoute(t *testing.T) {
	svc := &mockOrders{sandboxFn: func(_ context.Context, _ string, _ []string, reference string) (app.StatusResult, error) {
		if reference == "PAY-old" {
			return app.StatusResult{}, apperr.ErrExpiredSession
		}
		return app.StatusResult{Status: app.PollCompleted, Reference: reference}, nil
	}}

	t.Run("not routed outside sandbox", func(t *testing.T) {
		rec := call{http.MethodPost, "/api/checkout/sandbox-confirm", `{"orderIds":["o1"],"reference":"PAY-1"}`, buyer("b1")}.do(router(svc, false))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("confirms in sandbox", func(t *testing.T) {
		rec := call{http.MethodPost, "/api/checkout/sandbox-confirm", `{"orderIds":["o1"],"reference":"PAY-1"}`, buyer("b1")}.do(router(svc, true))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"completed"`)
	})

	t.Run("expired session is gone", func(t *testing.T) {
		rec := call{http.MethodPost, "/api/checkout/sandbox-confirm", `{"orderIds":["o1"],"reference":"PAY-old"}`, buyer("b1")}.do(router(svc, true))
		assert.Equal(t, http.StatusGone, rec.Code)
		assert.Contains(t, rec.Body.String(), "expired_session")
	})
}

func TestCallback(t *testing.T) {
	svc := &mockOrders{callbackFn: func(_ context.Context, m checkoutdomain.PaymentMethod, body []byte, sig string) (int, error) {
		assert.Equal(t, checkoutdomain.MethodHostedCard, m)
		if sig != "good" {
			return 0, apperr.ErrUnauthenticated
		}
		assert.JSONEq(t, `{"reference":"PAY-1","status":"paid"}`, string(body))
		return 2, nil
	}}
	h := router(svc, false)
	body := `{"reference":"PAY-1","status":"paid"}`

	rec := call{http.MethodPost, "/api/payments/callback/hosted_card", body, map[string]string{payment.SignatureHeader: "good"}}.do(h)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"confirmed":2}`, rec.Body.String())

	rec = call{http.MethodPost, "/api/payments/callback/hosted_card", body, map[string]string{payment.SignatureHeader: "bad"}}.do(h)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call{http.MethodPost, "/api/payments/callback/paypal", body, nil}.do(h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviews(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	parked := domain.Order{
		ID: "o1", OrderNumber: "ORD-20260301-ABCDEF", BuyerID: "b1", ProductID: "big",
		TotalAmount: decimal.RequireFromString("600"), Currency: "USD",
		PaymentMethod: checkoutdomain.MethodBankQR, Status: domain.StatusUnderReview,
		IsHighValue: true, RequiresManualReview: true, CreatedAt: now,
	}

	svc := &mockOrders{
		listFn: func(_ context.Context, limit int, cursor string) ([]domain.Order, string, error) {
			assert.Equal(t, 10, limit)
			assert.Equal(t, "abc", cursor)
			return []domain.Order{parked}, "o1", nil
		},
		decideFn: func(_ context.Context, d domain.ReviewDecision) (domain.Order, error) {
			if err := d.Validate(); err != nil {
				return domain.Order{}, err
			}
			assert.Equal(t, "admin-1", d.AdminID)
			o := parked
			o.Status = domain.StatusCancelled
			o.CancelReason = d.Reason
			o.ReviewedBy = d.AdminID
			return o, nil
		},
	}
	h := router(svc, false)

	t.Run("list", func(t *testing.T) {
		rec := call{http.MethodGet, "/api/admin/reviews?limit=10&cursor=abc", "", admin("admin-1")}.do(h)
		require.Equal(t, http.StatusOK, rec.Code)

		var body reviewListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Orders, 1)
		assert.Equal(t, "600.00", body.Orders[0].TotalAmount)
		assert.True(t, body.Orders[0].RequiresManualReview)
		assert.Equal(t, "o1", body.NextCursor)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := call{http.MethodGet, "/api/admin/reviews?limit=ten", "", admin("admin-1")}.do(h)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("admins only", func(t *testing.T) {
		rec := call{http.MethodGet, "/api/admin/reviews", "", buyer("b1")}.do(h)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("reject needs a reason", func(t *testing.T) {
		rec := call{http.MethodPatch, "/api/admin/reviews/o1", `{"action":"reject"}`, admin("admin-1")}.do(h)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "validation_error")
	})

	t.Run("reject", func(t *testing.T) {
		rec := call{http.MethodPatch, "/api/admin/reviews/o1", `{"action":"reject","reason":"chargeback risk"}`, admin("admin-1")}.do(h)
		require.Equal(t, http.StatusOK, rec.Code)

		var body orderView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "cancelled", body.Status)
		assert.Equal(t, "chargeback risk", body.CancelReason)
		assert.Equal(t, "admin-1", body.ReviewedBy)
	})
}

func TestReviewConflict(t *testing.T) {
	svc := &mockOrders{decideFn: func(context.Context, domain.ReviewDecision) (domain.Order, error) {
		return domain.Order{}, apperr.ErrConflict
	}}
	rec := call{http.MethodPatch, "/api/admin/reviews/o1", `{"action":"approve"}`, admin("admin-1")}.do(router(svc, false))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSweeps(t *testing.T) {
	svc := &mockOrders{
		deliverFn: func(context.Context) (int, error) { return 3, nil },
		expireFn:  func(context.Context) (int, error) { return 2, nil },
	}
	h := router(svc, false)

	rec := call{http.MethodPost, "/api/admin/deliveries/process", "", admin("ops")}.do(h)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"processed":3}`, rec.Body.String())

	rec = call{http.MethodPost, "/api/admin/payments/expire", "", admin("ops")}.do(h)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"expired":2}`, rec.Body.String())

	rec = call{http.MethodPost, "/api/admin/payments/expire", "", nil}.do(h)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
