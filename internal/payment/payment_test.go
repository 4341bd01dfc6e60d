package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func charge(amount string) Charge {
	return Charge{
		Reference: "PAY-TEST",
		BuyerID:   "buyer-1",
		Amount:    decimal.RequireFromString(amount),
		Currency:  "USD",
	}
}

type staticWallet decimal.Decimal

func (w staticWallet) Balance(context.Context, string) (decimal.Decimal, error) {
	return decimal.Decimal(w), nil
}

func TestWallet(t *testing.T) {
	w := NewWallet(staticWallet(decimal.RequireFromString("20")))

	t.Run("enough balance completes immediately", func(t *testing.T) {
		init, err := w.Initiate(context.Background(), charge("20.00"))
		require.NoError(t, err)
		assert.Equal(t, KindCompleteImmediately, init.Kind)
	})

	t.Run("short balance is insufficient funds", func(t *testing.T) {
		_, err := w.Initiate(context.Background(), charge("20.01"))
		require.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	})
}

func TestBankQR(t *testing.T) {
	b := NewBankQR(BankQRConfig{BankCode: "BCA", Account: "123"}, nil)
	b.now = func() time.Time { return fixedNow }

	c := charge("54.06")
	c.TTL = 10 * time.Minute
	init, err := b.Initiate(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, KindQR, init.Kind)
	assert.Equal(t, "BCA|123|54.06|USD|PAY-TEST", init.QRPayload)
	assert.True(t, strings.HasPrefix(init.QRImage, "data:image/png;base64,"))
	assert.Equal(t, fixedNow.Add(10*time.Minute), init.ExpiresAt)
	assert.Equal(t, "PAY-TEST", init.Reference)
	assert.Empty(t, init.RedirectURL)

	ok, err := b.Verify(context.Background(), Session{Reference: "PAY-TEST"})
	require.NoError(t, err)
	assert.False(t, ok, "no statement api configured")
}

func TestBankQRVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		ref := r.URL.Query().Get("reference")
		amount := "54.06"
		if ref == "PAY-SHORT" {
			amount = "50.00"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"transactions": []map[string]string{{"reference": ref, "amount": amount, "currency": "USD"}},
		})
	}))
	defer srv.Close()

	b := NewBankQR(BankQRConfig{Account: "123", StatementURL: srv.URL, APIKey: "k"}, srv.Client())
	amount := decimal.RequireFromString("54.06")

	ok, err := b.Verify(context.Background(), Session{Reference: "PAY-OK", Amount: amount, Currency: "USD"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Verify(context.Background(), Session{Reference: "PAY-SHORT", Amount: amount, Currency: "USD"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExchangeTransfer(t *testing.T) {
	t.Run("deposit instructions", func(t *testing.T) {
		e := NewExchangeTransfer(ExchangeConfig{Coin: "USDT", Network: "TRC20", DepositAddress: "TXaddr"}, nil)
		e.now = func() time.Time { return fixedNow }

		init, err := e.Initiate(context.Background(), charge("10"))
		require.NoError(t, err)
		assert.Equal(t, KindDepositInstructions, init.Kind)
		assert.Equal(t, "TXaddr", init.Address)
		assert.Equal(t, "USDT", init.Coin)
		assert.Equal(t, "TRC20", init.Network)
		assert.Len(t, init.MemoCode, 8)
		assert.Equal(t, fixedNow.Add(30*time.Minute), init.ExpiresAt)
	})

	t.Run("missing address is unavailable", func(t *testing.T) {
		e := NewExchangeTransfer(ExchangeConfig{Coin: "USDT"}, nil)
		_, err := e.Initiate(context.Background(), charge("10"))
		require.ErrorIs(t, err, apperr.ErrGatewayUnavailable)
	})

	t.Run("verify sums credited deposits", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			memo := r.URL.Query().Get("memo")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"deposits": []map[string]string{
					{"memo": memo, "coin": "USDT", "amount": "6", "status": "credited"},
					{"memo": memo, "coin": "USDT", "amount": "4", "status": "success"},
					{"memo": memo, "coin": "USDT", "amount": "100", "status": "pending"},
				},
			})
		}))
		defer srv.Close()

		e := NewExchangeTransfer(ExchangeConfig{Coin: "USDT", DepositsURL: srv.URL}, srv.Client())
		ok, err := e.Verify(context.Background(), Session{MemoCode: "ABCD2345", Amount: decimal.NewFromInt(10)})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = e.Verify(context.Background(), Session{MemoCode: "ABCD2345", Amount: decimal.NewFromInt(11)})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestNewMemoCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		memo, err := NewMemoCode()
		require.NoError(t, err)
		require.Len(t, memo, memoLength)
		for _, r := range memo {
			assert.Contains(t, memoAlphabet, string(r))
		}
		seen[memo] = true
	}
	assert.Greater(t, len(seen), 45)
}

func TestHostedCard(t *testing.T) {
	t.Run("creates a checkout session", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
			var req checkoutSessionRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "PAY-TEST", req.Reference)
			assert.Equal(t, "54.06", req.Amount)
			_ = json.NewEncoder(w).Encode(checkoutSessionResponse{ID: "cs_1", URL: "https://pay.example/cs_1"})
		}))
		defer srv.Close()

		h := NewHostedCard(ProviderConfig{BaseURL: srv.URL}, srv.Client())
		init, err := h.Initiate(context.Background(), charge("54.06"))
		require.NoError(t, err)
		assert.Equal(t, KindRedirect, init.Kind)
		assert.Equal(t, "https://pay.example/cs_1", init.RedirectURL)
	})

	t.Run("provider outage is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		h := NewHostedCard(ProviderConfig{BaseURL: srv.URL}, srv.Client())
		_, err := h.Initiate(context.Background(), charge("1"))
		require.ErrorIs(t, err, apperr.ErrGatewayUnavailable)
	})

	t.Run("client error is a rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"currency not supported"}`, http.StatusBadRequest)
		}))
		defer srv.Close()

		h := NewHostedCard(ProviderConfig{BaseURL: srv.URL}, srv.Client())
		_, err := h.Initiate(context.Background(), charge("1"))
		require.ErrorIs(t, err, apperr.ErrGatewayRejected)
		assert.False(t, errors.Is(err, apperr.ErrGatewayUnavailable))
	})

	t.Run("deadline is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		h := NewHostedCard(ProviderConfig{BaseURL: srv.URL}, srv.Client())
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := h.Initiate(ctx, charge("1"))
		require.ErrorIs(t, err, apperr.ErrGatewayUnavailable)
	})

	t.Run("sandbox skips the provider", func(t *testing.T) {
		h := NewHostedCard(ProviderConfig{SandboxURL: "http://localhost:3000/sandbox/pay"}, nil)
		c := charge("5")
		c.Sandbox = true
		init, err := h.Initiate(context.Background(), c)
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:3000/sandbox/pay?amount=5.00&currency=USD&reference=PAY-TEST", init.RedirectURL)
	})
}

func TestCryptoGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req invoiceRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "PAY-TEST", req.OrderID)
		_ = json.NewEncoder(w).Encode(invoiceResponse{ID: "inv", InvoiceURL: "https://crypto.example/inv"})
	}))
	defer srv.Close()

	g := NewCryptoGateway(ProviderConfig{BaseURL: srv.URL}, srv.Client())
	init, err := g.Initiate(context.Background(), charge("12.5"))
	require.NoError(t, err)
	assert.Equal(t, KindRedirect, init.Kind)
	assert.Equal(t, "https://crypto.example/inv", init.RedirectURL)
}

func TestParseCallback(t *testing.T) {
	h := NewHostedCard(ProviderConfig{Secret: "whsec"}, nil)
	body := []byte(`{"reference":"PAY-1","status":"paid"}`)

	cb, err := h.ParseCallback(body, Sign("whsec", body))
	require.NoError(t, err)
	assert.Equal(t, "PAY-1", cb.Reference)
	assert.True(t, cb.Paid())

	_, err = h.ParseCallback(body, Sign("other", body))
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)

	unsigned := NewHostedCard(ProviderConfig{}, nil)
	_, err = unsigned.ParseCallback(body, "")
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(
		NewWallet(staticWallet(decimal.Zero)),
		NewBankQR(BankQRConfig{}, nil),
		NewHostedCard(ProviderConfig{}, nil),
	)

	a, err := reg.Lookup(domain.MethodBankQR)
	require.NoError(t, err)
	assert.Equal(t, domain.MethodBankQR, a.Method())

	_, err = reg.Lookup(domain.MethodCryptoGateway)
	require.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, ok := reg.Verifier(domain.MethodBankQR)
	assert.True(t, ok)
	_, ok = reg.Verifier(domain.MethodWallet)
	assert.False(t, ok)

	_, ok = reg.Webhook(domain.MethodHostedCard)
	assert.True(t, ok)
	_, ok = reg.Webhook(domain.MethodBankQR)
	assert.False(t, ok)
}
