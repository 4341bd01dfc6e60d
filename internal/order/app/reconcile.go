package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	checkoutdomain "github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/order/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/payment"
	"github.com/shopspring/decimal"
)

const maxPollOrders = 50

type PollStatus string

const (
	PollPending   PollStatus = "pending"
	PollCompleted PollStatus = "completed"
	PollExpired   PollStatus = "expired"
	PollCancelled PollStatus = "cancelled"
)

type OrderStatus struct {
	ID     string
	Status domain.Status
}

type StatusResult struct {
	Status    PollStatus
	Reference string
	Orders    []OrderStatus
	ExpiresAt *time.Time
}

// Status answers a buyer's poll. While the batch is pending it asks the rail
// whether the money arrived and, failing that, closes the batch once the
// session has expired. Polling a settled batch only reads.
func (s *Service) Status(ctx context.Context, buyerID string, orderIDs []string) (StatusResult, error) {
	orders, err := s.loadBatch(ctx, buyerID, orderIDs)
	if err != nil {
		return StatusResult{}, err
	}

	pending := pendingOnly(orders)
	if len(pending) == 0 {
		return summarize(orders), nil
	}

	reference := pending[0].PaymentReference
	method := pending[0].PaymentMethod

	// A transfer that landed just before the deadline still counts, so the
	// rail is asked before the batch is expired.
	if v, ok := s.gateways.Verifier(method); ok {
		paid, err := v.Verify(ctx, sessionOf(pending))
		switch {
		case err != nil:
			s.log.Warn("payment verification failed",
				slog.String("reference", reference),
				slog.String("method", string(method)),
				slog.Any("err", err),
			)
		case paid:
			if _, err := s.ConfirmBatch(ctx, reference, method); err != nil {
				return StatusResult{}, err
			}
		}
	}

	if anyExpired(pending, s.now()) {
		if _, err := s.ExpireBatch(ctx, reference); err != nil {
			return StatusResult{}, err
		}
	}

	orders, err = s.repo.ListByIDs(ctx, uniqueIDs(orderIDs))
	if err != nil {
		return StatusResult{}, fmt.Errorf("reload orders: %w", err)
	}
	return summarize(orders), nil
}

// ConfirmBatch marks every pending order of the reference as paid and routes
// it through the risk gate. Confirming twice is a no-op.
func (s *Service) ConfirmBatch(ctx context.Context, reference string, method checkoutdomain.PaymentMethod) (int, error) {
	return s.confirm(ctx, reference, method, nil)
}

var errUnderpaid = errors.New("paid amount below batch total")

// confirm settles the batch. When paid is set it must cover the total of the
// pending orders, otherwise nothing changes.
func (s *Service) confirm(ctx context.Context, reference string, method checkoutdomain.PaymentMethod, paid *decimal.Decimal) (int, error) {
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()

	changed, err := s.repo.UpdateBatch(ctx, reference, func(orders []domain.Order) ([]domain.Change, error) {
		var changes []domain.Change
		due := decimal.Zero
		for _, o := range orders {
			if o.Status != domain.StatusPending || o.PaymentMethod != method {
				continue
			}
			due = due.Add(o.TotalAmount)
			routed := Route(o, now, snap)
			changes = append(changes, domain.Change{
				Order:   routed,
				Release: routed.Status == domain.StatusCompleted,
			})
		}
		if paid != nil && len(changes) > 0 && paid.LessThan(due) {
			return nil, fmt.Errorf("%w: paid %s, due %s", errUnderpaid, paid.StringFixed(2), due.StringFixed(2))
		}
		return changes, nil
	})
	if err != nil {
		return 0, fmt.Errorf("confirm %s: %w", reference, err)
	}

	if len(changed) > 0 {
		s.log.Info("payment confirmed",
			slog.String("reference", reference),
			slog.String("method", string(method)),
			slog.Int("orders", len(changed)),
		)
		s.announce(ctx, changed)
	}
	return len(changed), nil
}

// ExpireBatch cancels the pending orders of the reference whose session has
// run out and puts their stock back.
func (s *Service) ExpireBatch(ctx context.Context, reference string) (int, error) {
	now := s.now()

	changed, err := s.repo.UpdateBatch(ctx, reference, func(orders []domain.Order) ([]domain.Change, error) {
		var changes []domain.Change
		for _, o := range orders {
			if o.Status != domain.StatusPending || !o.Expired(now) {
				continue
			}
			if err := o.TransitionTo(domain.StatusCancelled, now); err != nil {
				return nil, err
			}
			o.CancelReason = domain.CancelPaymentExpired
			changes = append(changes, domain.Change{Order: o, Restock: true})
		}
		return changes, nil
	})
	if err != nil {
		return 0, fmt.Errorf("expire %s: %w", reference, err)
	}

	if len(changed) > 0 {
		s.log.Info("payment session expired",
			slog.String("reference", reference),
			slog.Int("orders", len(changed)),
		)
		s.announce(ctx, changed)
	}
	return len(changed), nil
}

// ExpireStale sweeps every pending batch past its deadline.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	total := 0
	for {
		refs, err := s.repo.ListExpiredReferences(ctx, s.now(), sweepBatchSize)
		if err != nil {
			return total, fmt.Errorf("list expired sessions: %w", err)
		}

		progressed := 0
		for _, ref := range refs {
			n, err := s.ExpireBatch(ctx, ref)
			if err != nil {
				s.log.Error("expire batch failed", slog.String("reference", ref), slog.Any("err", err))
				continue
			}
			progressed += n
		}
		total += progressed

		if len(refs) < sweepBatchSize || progressed == 0 {
			return total, nil
		}
	}
}

// SandboxConfirm settles a sandbox batch without a real payment. Orders not
// created in sandbox mode are refused.
func (s *Service) SandboxConfirm(ctx context.Context, buyerID string, orderIDs []string, reference string) (StatusResult, error) {
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return StatusResult{}, err
	}
	if !snap.Sandbox {
		return StatusResult{}, fmt.Errorf("%w: sandbox payments are disabled", apperr.ErrForbidden)
	}

	orders, err := s.loadBatch(ctx, buyerID, orderIDs)
	if err != nil {
		return StatusResult{}, err
	}
	if reference != "" && orders[0].PaymentReference != reference {
		return StatusResult{}, apperr.Invalid("orders do not belong to reference %s", reference)
	}
	for _, o := range orders {
		if !o.Sandbox {
			return StatusResult{}, fmt.Errorf("%w: order %s is not a sandbox order", apperr.ErrForbidden, o.ID)
		}
	}

	pending := pendingOnly(orders)
	if anyExpired(pending, s.now()) {
		if _, err := s.ExpireBatch(ctx, pending[0].PaymentReference); err != nil {
			return StatusResult{}, err
		}
		return StatusResult{}, fmt.Errorf("%w: payment %s", apperr.ErrExpiredSession, pending[0].PaymentReference)
	}
	if len(pending) == 0 {
		switch summarize(orders).Status {
		case PollExpired:
			return StatusResult{}, fmt.Errorf("%w: payment %s", apperr.ErrExpiredSession, orders[0].PaymentReference)
		case PollCancelled:
			return StatusResult{}, fmt.Errorf("%w: payment %s", apperr.ErrReviewRejected, orders[0].PaymentReference)
		}
	}

	if len(pending) > 0 {
		if _, err := s.ConfirmBatch(ctx, pending[0].PaymentReference, pending[0].PaymentMethod); err != nil {
			return StatusResult{}, err
		}
	}

	orders, err = s.repo.ListByIDs(ctx, uniqueIDs(orderIDs))
	if err != nil {
		return StatusResult{}, fmt.Errorf("reload orders: %w", err)
	}
	return summarize(orders), nil
}

// HandleCallback applies a signed provider notification for a redirect rail.
func (s *Service) HandleCallback(ctx context.Context, method checkoutdomain.PaymentMethod, body []byte, signature string) (int, error) {
	wh, ok := s.gateways.Webhook(method)
	if !ok {
		return 0, fmt.Errorf("%w: no callbacks for %s", apperr.ErrNotFound, method)
	}

	cb, err := wh.ParseCallback(body, signature)
	if err != nil {
		return 0, err
	}
	if !cb.Paid() {
		s.log.Info("ignoring unpaid callback",
			slog.String("reference", cb.Reference),
			slog.String("status", cb.Status),
		)
		return 0, nil
	}

	paid, err := decimal.NewFromString(strings.TrimSpace(cb.Amount))
	if err != nil {
		return 0, apperr.Invalid("callback amount %q is not a number", cb.Amount)
	}
	n, err := s.confirm(ctx, cb.Reference, method, &paid)
	if errors.Is(err, errUnderpaid) {
		s.log.Warn("ignoring underpaid callback",
			slog.String("reference", cb.Reference),
			slog.String("method", string(method)),
			slog.Any("err", err),
		)
		return 0, nil
	}
	return n, err
}

func (s *Service) loadBatch(ctx context.Context, buyerID string, orderIDs []string) ([]domain.Order, error) {
	ids := uniqueIDs(orderIDs)
	if len(ids) == 0 {
		return nil, apperr.Invalid("at least one order id is required")
	}
	if len(ids) > maxPollOrders {
		return nil, apperr.Invalid("at most %d order ids per request", maxPollOrders)
	}

	orders, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	if len(orders) != len(ids) {
		return nil, fmt.Errorf("%w: one or more orders do not exist", apperr.ErrNotFound)
	}

	reference := orders[0].PaymentReference
	for _, o := range orders {
		if o.BuyerID != buyerID {
			return nil, fmt.Errorf("%w: one or more orders do not exist", apperr.ErrNotFound)
		}
		if o.PaymentReference != reference {
			return nil, apperr.Invalid("orders belong to different payments")
		}
	}
	return orders, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func pendingOnly(orders []domain.Order) []domain.Order {
	var out []domain.Order
	for _, o := range orders {
		if o.Status == domain.StatusPending {
			out = append(out, o)
		}
	}
	return out
}

func anyExpired(orders []domain.Order, now time.Time) bool {
	for _, o := range orders {
		if o.Expired(now) {
			return true
		}
	}
	return false
}

func sessionOf(orders []domain.Order) payment.Session {
	amount := decimal.Zero
	for _, o := range orders {
		amount = amount.Add(o.TotalAmount)
	}
	first := orders[0]
	s := payment.Session{
		Reference: first.PaymentReference,
		MemoCode:  first.MemoCode,
		Amount:    amount,
		Currency:  first.Currency,
	}
	if first.ExpiresAt != nil {
		s.ExpiresAt = *first.ExpiresAt
	}
	return s
}

func summarize(orders []domain.Order) StatusResult {
	res := StatusResult{Orders: make([]OrderStatus, 0, len(orders))}
	var pending, paid, expired int
	for _, o := range orders {
		res.Reference = o.PaymentReference
		res.Orders = append(res.Orders, OrderStatus{ID: o.ID, Status: o.Status})
		if res.ExpiresAt == nil && o.ExpiresAt != nil {
			at := *o.ExpiresAt
			res.ExpiresAt = &at
		}
		switch {
		case o.Status == domain.StatusPending:
			pending++
		case o.Status.Paid():
			paid++
		case o.CancelReason == domain.CancelPaymentExpired:
			expired++
		}
	}

	switch {
	case pending > 0:
		res.Status = PollPending
	case paid > 0:
		res.Status = PollCompleted
	case expired > 0:
		res.Status = PollExpired
	default:
		res.Status = PollCancelled
	}
	return res
}
