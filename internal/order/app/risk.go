package app

import (
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/order/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/settings"
	"github.com/shopspring/decimal"
)

// Classify stamps the risk flags from the order total. A threshold of zero
// or less switches its rule off.
func Classify(o domain.Order, sellerFlagged bool, snap settings.Snapshot) domain.Order {
	o.IsHighValue = atOrAbove(o.TotalAmount, snap.HighValueThreshold)
	o.RequiresManualReview = atOrAbove(o.TotalAmount, snap.RequireManualReviewAbove) ||
		sellerFlagged ||
		snap.ReviewsMethod(o.PaymentMethod)
	return o
}

// Route picks the status a paid order moves to.
func Route(o domain.Order, now time.Time, snap settings.Snapshot) domain.Order {
	switch {
	case o.RequiresManualReview:
		o.Status = domain.StatusUnderReview
	case snap.DeliveryDelayMinutes > 0:
		at := now.Add(snap.DeliveryDelay())
		o.Status = domain.StatusAwaitingDelivery
		o.DeliveryScheduledAt = &at
	default:
		o.Status = domain.StatusCompleted
	}
	o.PaidAt = &now
	o.UpdatedAt = now
	return o
}

func atOrAbove(amount, threshold decimal.Decimal) bool {
	return threshold.IsPositive() && amount.GreaterThanOrEqual(threshold)
}
