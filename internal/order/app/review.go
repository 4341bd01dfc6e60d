package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	checkoutdomain "github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/order/domain"
)

const (
	defaultReviewLimit = 20
	maxReviewLimit     = 100
)

func (s *Service) ListReviews(ctx context.Context, limit int, cursor string) ([]domain.Order, string, error) {
	if limit <= 0 {
		limit = defaultReviewLimit
	}
	if limit > maxReviewLimit {
		limit = maxReviewLimit
	}
	return s.repo.ListByStatus(ctx, domain.StatusUnderReview, limit, cursor)
}

// Decide resolves an order parked for review. Decisions are final.
func (s *Service) Decide(ctx context.Context, d domain.ReviewDecision) (domain.Order, error) {
	if err := d.Validate(); err != nil {
		return domain.Order{}, err
	}
	if d.DecidedAt.IsZero() {
		d.DecidedAt = s.now()
	}

	updated, err := s.repo.Update(ctx, d.OrderID, func(o domain.Order) (*domain.Change, error) {
		if o.Status != domain.StatusUnderReview {
			return nil, fmt.Errorf("%w: order %s is %s, not under review", apperr.ErrConflict, o.ID, o.Status)
		}

		at := d.DecidedAt
		o.ReviewedBy = d.AdminID
		o.ReviewedAt = &at

		change := domain.Change{}
		switch d.Action {
		case domain.ReviewApprove:
			if err := o.TransitionTo(domain.StatusCompleted, at); err != nil {
				return nil, err
			}
			change.Release = true
		case domain.ReviewReject:
			if err := o.TransitionTo(domain.StatusCancelled, at); err != nil {
				return nil, err
			}
			o.CancelReason = d.Reason
			change.Restock = true
			if o.PaymentMethod == checkoutdomain.MethodWallet {
				change.Refund = o.TotalAmount
			}
		}
		change.Order = o
		return &change, nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("review decided",
		slog.String("order_id", updated.ID),
		slog.String("action", string(d.Action)),
		slog.String("admin_id", d.AdminID),
	)
	s.announce(ctx, []domain.Order{updated})
	return updated, nil
}
