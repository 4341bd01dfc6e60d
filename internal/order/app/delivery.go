package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dwikikusuma/marketplace-checkout/internal/order/domain"
)

// ProcessDueDeliveries completes every scheduled delivery whose time has
// come. Running it again right away finds nothing to do.
func (s *Service) ProcessDueDeliveries(ctx context.Context) (int, error) {
	now := s.now()
	processed := 0

	for {
		due, err := s.repo.ListDueDeliveries(ctx, now, sweepBatchSize)
		if err != nil {
			return processed, fmt.Errorf("list due deliveries: %w", err)
		}

		progressed := 0
		for _, o := range due {
			delivered := false
			updated, err := s.repo.Update(ctx, o.ID, func(cur domain.Order) (*domain.Change, error) {
				if cur.Status != domain.StatusAwaitingDelivery || cur.DeliveryScheduledAt == nil || cur.DeliveryScheduledAt.After(now) {
					return nil, nil
				}
				if err := cur.TransitionTo(domain.StatusCompleted, now); err != nil {
					return nil, err
				}
				delivered = true
				return &domain.Change{Order: cur, Release: true}, nil
			})
			if err != nil {
				s.log.Error("deliver order failed", slog.String("order_id", o.ID), slog.Any("err", err))
				continue
			}
			if delivered {
				progressed++
				s.announce(ctx, []domain.Order{updated})
			}
		}
		processed += progressed

		if len(due) < sweepBatchSize || progressed == 0 {
			break
		}
	}

	if processed > 0 {
		s.log.Info("scheduled deliveries released", slog.Int("orders", processed))
	}
	return processed, nil
}
