package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	checkoutdomain "github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/notify"
	"github.com/dwikikusuma/marketplace-checkout/internal/order/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/payment"
	"github.com/dwikikusuma/marketplace-checkout/internal/settings"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MaterializeRequest struct {
	BuyerID   string
	Reference string
	Method    checkoutdomain.PaymentMethod
	Currency  string
	Lines     []checkoutdomain.QuoteLine
	Fees      checkoutdomain.FeeBreakdown
	Snapshot  settings.Snapshot
}

// Materialize turns a priced cart into one pending order per line. Fees are
// spread over the lines in proportion to their value; the last line absorbs
// the rounding remainder so the order totals add up to the grand total.
func (s *Service) Materialize(req MaterializeRequest) ([]domain.Order, error) {
	if strings.TrimSpace(req.BuyerID) == "" {
		return nil, apperr.ErrUnauthenticated
	}
	if req.Reference == "" {
		return nil, apperr.Invalid("payment reference is required")
	}

	lines, err := mergeQuoteLines(req.Lines)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, apperr.ErrEmptyCart
	}

	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.LineTotal)
	}
	if !subtotal.Equal(req.Fees.Subtotal) {
		return nil, fmt.Errorf("line totals %s do not match quoted subtotal %s", subtotal, req.Fees.Subtotal)
	}

	shares := allocateFees(lines, req.Fees.PlatformFee.Add(req.Fees.GatewayFee), subtotal)
	now := s.now()

	orders := make([]domain.Order, 0, len(lines))
	for i, l := range lines {
		o := domain.Order{
			ID:               uuid.NewString(),
			OrderNumber:      orderNumber(now),
			BuyerID:          req.BuyerID,
			SellerID:         l.SellerID,
			ProductID:        l.ProductID,
			ProductName:      l.Name,
			Quantity:         l.Quantity,
			UnitPrice:        l.UnitPrice,
			FeeAmount:        shares[i],
			TotalAmount:      l.LineTotal.Add(shares[i]),
			Currency:         req.Currency,
			PaymentMethod:    req.Method,
			PaymentReference: req.Reference,
			Status:           domain.StatusPending,
			RequiredFields:   l.RequiredFields,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		orders = append(orders, Classify(o, l.SellerFlagged, req.Snapshot))
	}
	return orders, nil
}

// ApplyInitiation copies the payment session onto the batch. Rails that
// settle on the spot are routed straight away.
func ApplyInitiation(orders []domain.Order, init payment.Initiation, now time.Time, snap settings.Snapshot) []domain.Order {
	out := make([]domain.Order, len(orders))
	for i, o := range orders {
		o.MemoCode = init.MemoCode
		o.Sandbox = snap.Sandbox
		if !init.ExpiresAt.IsZero() {
			at := init.ExpiresAt
			o.ExpiresAt = &at
		}
		if init.Kind == payment.KindCompleteImmediately {
			o = Route(o, now, snap)
		}
		out[i] = o
	}
	return out
}

// Place persists the batch. Stock, the optional wallet debit and the order
// rows commit together or not at all.
func (s *Service) Place(ctx context.Context, orders []domain.Order, init payment.Initiation, walletDebit decimal.Decimal, snap settings.Snapshot) ([]domain.Order, error) {
	if len(orders) == 0 {
		return nil, apperr.ErrEmptyCart
	}
	orders = ApplyInitiation(orders, init, s.now(), snap)

	batch := domain.Batch{
		BuyerID:     orders[0].BuyerID,
		Reference:   orders[0].PaymentReference,
		Orders:      orders,
		WalletDebit: walletDebit,
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("create order batch: %w", err)
	}

	s.log.Info("orders placed",
		slog.String("reference", batch.Reference),
		slog.String("buyer_id", batch.BuyerID),
		slog.Int("orders", len(orders)),
		slog.String("method", string(orders[0].PaymentMethod)),
	)

	for _, o := range orders {
		if o.Status == domain.StatusPending {
			s.notify(ctx, o, notify.KindOrderPlaced, "Order "+o.OrderNumber+" is waiting for payment.")
		}
	}
	s.announce(ctx, paidOnly(orders))
	return orders, nil
}

func paidOnly(orders []domain.Order) []domain.Order {
	var out []domain.Order
	for _, o := range orders {
		if o.Status.Paid() {
			out = append(out, o)
		}
	}
	return out
}

func mergeQuoteLines(lines []checkoutdomain.QuoteLine) ([]checkoutdomain.QuoteLine, error) {
	out := make([]checkoutdomain.QuoteLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, apperr.Invalid("quantity for %s must be positive", l.ProductID)
		}
		i, seen := index[l.ProductID]
		if !seen {
			index[l.ProductID] = len(out)
			out = append(out, l)
			continue
		}
		if !checkoutdomain.SameFields(out[i].RequiredFields, l.RequiredFields) {
			return nil, apperr.Invalid("product %s appears twice with different required fields", l.ProductID)
		}
		qty, err := checkoutdomain.AddQuantity(l.ProductID, out[i].Quantity, l.Quantity)
		if err != nil {
			return nil, err
		}
		out[i].Quantity = qty
		out[i].LineTotal = out[i].LineTotal.Add(l.LineTotal)
	}
	return out, nil
}

func allocateFees(lines []checkoutdomain.QuoteLine, fee, subtotal decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(lines))
	allocated := decimal.Zero
	for i := range lines {
		if i == len(lines)-1 {
			shares[i] = fee.Sub(allocated)
			break
		}
		if subtotal.IsZero() {
			shares[i] = decimal.Zero
			continue
		}
		shares[i] = fee.Mul(lines[i].LineTotal).Div(subtotal).Round(2)
		allocated = allocated.Add(shares[i])
	}
	return shares
}

// orderNumber is unique per day with 48 random bits in the suffix.
func orderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	return "ORD-" + now.UTC().Format("20060102") + "-" + suffix
}
