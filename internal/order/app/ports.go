package app

import (
	"context"
	"time"

	checkoutdomain "github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/notify"
	"github.com/dwikikusuma/marketplace-checkout/internal/order/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/payment"
	"github.com/dwikikusuma/marketplace-checkout/internal/settings"
)

// OrderRepo persists orders. Every mutating call is one transaction; the
// update callbacks run while the affected rows are locked.
type OrderRepo interface {
	CreateBatch(ctx context.Context, batch domain.Batch) error
	Get(ctx context.Context, id string) (domain.Order, error)
	ListByIDs(ctx context.Context, ids []string) ([]domain.Order, error)

	// UpdateBatch locks every order sharing the reference and applies the
	// changes returned by fn. It returns the changed orders.
	UpdateBatch(ctx context.Context, reference string, fn func(orders []domain.Order) ([]domain.Change, error)) ([]domain.Order, error)
	// Update locks one order. A nil change leaves it untouched.
	Update(ctx context.Context, id string, fn func(o domain.Order) (*domain.Change, error)) (domain.Order, error)

	ListByStatus(ctx context.Context, status domain.Status, limit int, cursor string) ([]domain.Order, string, error)
	ListDueDeliveries(ctx context.Context, now time.Time, limit int) ([]domain.Order, error)
	ListExpiredReferences(ctx context.Context, now time.Time, limit int) ([]string, error)
}

type SettingsSource interface {
	Snapshot(ctx context.Context) (settings.Snapshot, error)
}

type Gateways interface {
	Verifier(m checkoutdomain.PaymentMethod) (payment.Verifier, bool)
	Webhook(m checkoutdomain.PaymentMethod) (payment.WebhookVerifier, bool)
}

type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}
