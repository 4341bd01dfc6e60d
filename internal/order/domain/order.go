package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	checkoutdomain "github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending          Status = "pending"
	StatusUnderReview      Status = "under_review"
	StatusAwaitingDelivery Status = "awaiting_delivery"
	StatusCompleted        Status = "completed"
	StatusCancelled        Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:          {StatusUnderReview, StatusAwaitingDelivery, StatusCompleted, StatusCancelled},
	StatusUnderReview:      {StatusCompleted, StatusCancelled},
	StatusAwaitingDelivery: {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Paid reports whether the buyer's payment has been confirmed.
func (s Status) Paid() bool {
	return s == StatusUnderReview || s == StatusAwaitingDelivery || s == StatusCompleted
}

const CancelPaymentExpired = "payment_expired"

type Order struct {
	ID          string
	OrderNumber string
	BuyerID     string
	SellerID    string
	ProductID   string
	ProductName string
	Quantity    int32
	UnitPrice   decimal.Decimal
	FeeAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	Currency    string

	PaymentMethod    checkoutdomain.PaymentMethod
	PaymentReference string
	MemoCode         string
	ExpiresAt        *time.Time
	Sandbox          bool

	Status               Status
	IsHighValue          bool
	RequiresManualReview bool
	RequiredFields       map[string]string

	DeliveryScheduledAt *time.Time
	DeliveryPayload     string
	DeliveredAt         *time.Time

	CancelReason string
	ReviewedBy   string
	ReviewedAt   *time.Time
	PaidAt       *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TransitionTo moves the order to the next status, refusing moves the state
// machine does not allow.
func (o *Order) TransitionTo(to Status, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: order %s can not move from %s to %s", apperr.ErrConflict, o.ID, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

func (o Order) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}

// Batch is the set of orders created by one checkout. It is persisted in a
// single transaction together with stock reservation and the wallet debit.
type Batch struct {
	BuyerID     string
	Reference   string
	Orders      []Order
	WalletDebit decimal.Decimal
}

// Change is one order's new state plus the side effects to apply with it in
// the same transaction.
type Change struct {
	Order   Order
	Restock bool
	Refund  decimal.Decimal
	Release bool
}

type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

type ReviewDecision struct {
	OrderID   string
	Action    ReviewAction
	Reason    string
	AdminID   string
	DecidedAt time.Time
}

func (d ReviewDecision) Validate() error {
	if strings.TrimSpace(d.OrderID) == "" {
		return apperr.Invalid("order id is required")
	}
	if strings.TrimSpace(d.AdminID) == "" {
		return apperr.ErrForbidden
	}
	switch d.Action {
	case ReviewApprove:
	case ReviewReject:
		if strings.TrimSpace(d.Reason) == "" {
			return apperr.Invalid("a reason is required to reject an order")
		}
	default:
		return apperr.Invalid("unknown review action %q", d.Action)
	}
	return nil
}
