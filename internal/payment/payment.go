// Package payment holds one adapter per payment rail. Exactly one adapter
// runs per checkout; the orchestrator never branches on the method itself.
package payment

import (
	"context"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/shopspring/decimal"
)

// Charge is what a rail is asked to collect.
type Charge struct {
	Reference   string
	BuyerID     string
	Amount      decimal.Decimal
	Currency    string
	Description string
	TTL         time.Duration
	Sandbox     bool
}

type Kind string

const (
	KindRedirect            Kind = "redirect"
	KindQR                  Kind = "qr"
	KindDepositInstructions Kind = "deposit_instructions"
	KindCompleteImmediately Kind = "complete_immediately"
)

// Initiation is a tagged union keyed by Kind. Only the fields belonging to
// the kind are set.
type Initiation struct {
	Kind Kind

	// redirect
	RedirectURL string

	// qr
	QRImage   string
	QRPayload string

	// deposit_instructions
	Address  string
	Coin     string
	Network  string
	MemoCode string

	// qr, deposit_instructions and redirect
	Reference string
	ExpiresAt time.Time
}

// Session is the persisted view of an initiated payment used to ask a rail
// whether it has been paid.
type Session struct {
	Reference string
	MemoCode  string
	Amount    decimal.Decimal
	Currency  string
	ExpiresAt time.Time
}

type Adapter interface {
	Method() domain.PaymentMethod
	Initiate(ctx context.Context, charge Charge) (Initiation, error)
}

// Verifier is implemented by rails that confirm by polling.
type Verifier interface {
	Verify(ctx context.Context, s Session) (bool, error)
}

type Registry struct {
	adapters map[domain.PaymentMethod]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[domain.PaymentMethod]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Method()] = a
	}
	return r
}

func (r *Registry) Lookup(m domain.PaymentMethod) (Adapter, error) {
	a, ok := r.adapters[m]
	if !ok {
		return nil, apperr.Invalid("payment method %s is not available", m)
	}
	return a, nil
}

func (r *Registry) Verifier(m domain.PaymentMethod) (Verifier, bool) {
	v, ok := r.adapters[m].(Verifier)
	return v, ok
}

func (r *Registry) Webhook(m domain.PaymentMethod) (WebhookVerifier, bool) {
	w, ok := r.adapters[m].(WebhookVerifier)
	return w, ok
}

func expiry(now time.Time, ttl, fallback time.Duration) time.Time {
	if ttl <= 0 {
		ttl = fallback
	}
	return now.Add(ttl)
}
