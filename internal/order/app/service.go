package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/notify"
	"github.com/dwikikusuma/marketplace-checkout/internal/order/domain"
)

const sweepBatchSize = 200

type Service struct {
	repo     OrderRepo
	settings SettingsSource
	gateways Gateways
	notifier Notifier
	log      *slog.Logger

	now func() time.Time
}

func NewService(repo OrderRepo, settings SettingsSource, gateways Gateways, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		settings: settings,
		gateways: gateways,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) Get(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) notify(ctx context.Context, o domain.Order, kind notify.Kind, msg string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, notify.Notification{
		UserID:    o.BuyerID,
		Kind:      kind,
		OrderID:   o.ID,
		Reference: o.PaymentReference,
		Message:   msg,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.log.Warn("notify buyer failed",
			slog.String("order_id", o.ID),
			slog.String("kind", string(kind)),
			slog.Any("err", err),
		)
	}
}

// announce tells the buyer where each changed order ended up.
func (s *Service) announce(ctx context.Context, orders []domain.Order) {
	for _, o := range orders {
		switch o.Status {
		case domain.StatusCompleted:
			s.notify(ctx, o, notify.KindDelivered, "Your order "+o.OrderNumber+" has been delivered.")
		case domain.StatusAwaitingDelivery:
			s.notify(ctx, o, notify.KindPaymentReceived, "Payment received for "+o.OrderNumber+". Delivery is scheduled.")
		case domain.StatusUnderReview:
			s.notify(ctx, o, notify.KindUnderReview, "Payment received for "+o.OrderNumber+". The order is being reviewed.")
		case domain.StatusCancelled:
			if o.CancelReason == domain.CancelPaymentExpired {
				s.notify(ctx, o, notify.KindExpired, "The payment window for "+o.OrderNumber+" has closed.")
			} else {
				s.notify(ctx, o, notify.KindRejected, "Order "+o.OrderNumber+" was rejected: "+o.CancelReason)
			}
		}
	}
}
