package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/shopspring/decimal"
)

// Store returns the admin-editable overrides as raw key/value pairs.
type Store interface {
	LoadSettings(ctx context.Context) (map[string]string, error)
}

// Service overlays stored overrides on top of the process defaults.
type Service struct {
	store    Store
	defaults Snapshot
}

func NewService(store Store, defaults Snapshot) *Service {
	return &Service{store: store, defaults: defaults}
}

func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := s.defaults.clone()

	if s.store != nil {
		kv, err := s.store.LoadSettings(ctx)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load settings: %w", err)
		}
		for key, value := range kv {
			if err := apply(&snap, key, value); err != nil {
				return Snapshot{}, fmt.Errorf("setting %q: %w", key, err)
			}
		}
	}

	if err := snap.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("invalid settings: %w", err)
	}
	return snap, nil
}

// Recognised keys:
//
//	currency, service_fee_fixed, service_fee_percent,
//	gateway_fee.<method>.fixed, gateway_fee.<method>.percent,
//	high_value_threshold, require_manual_review_above,
//	review_methods (comma separated), delivery_delay_minutes,
//	session_ttl.<method> (Go duration).
//
// Sandbox mode is process configuration only. Unknown keys are ignored.
func apply(s *Snapshot, key, value string) error {
	value = strings.TrimSpace(value)

	switch {
	case key == "currency":
		s.Currency = strings.ToUpper(value)
	case key == "service_fee_fixed":
		return setDecimal(&s.ServiceFeeFixed, value)
	case key == "service_fee_percent":
		return setDecimal(&s.ServiceFeePercent, value)
	case key == "high_value_threshold":
		return setDecimal(&s.HighValueThreshold, value)
	case key == "require_manual_review_above":
		return setDecimal(&s.RequireManualReviewAbove, value)
	case key == "delivery_delay_minutes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		s.DeliveryDelayMinutes = n
	case key == "review_methods":
		s.ReviewMethods = s.ReviewMethods[:0]
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			m, err := domain.ParsePaymentMethod(part)
			if err != nil {
				return err
			}
			s.ReviewMethods = append(s.ReviewMethods, m)
		}
	case strings.HasPrefix(key, "gateway_fee."):
		parts := strings.Split(key, ".")
		if len(parts) != 3 {
			return fmt.Errorf("expected gateway_fee.<method>.<fixed|percent>")
		}
		m, err := domain.ParsePaymentMethod(parts[1])
		if err != nil {
			return err
		}
		fee := s.GatewayFees[m]
		switch parts[2] {
		case "fixed":
			err = setDecimal(&fee.Fixed, value)
		case "percent":
			err = setDecimal(&fee.Percent, value)
		default:
			err = fmt.Errorf("unknown gateway fee component %q", parts[2])
		}
		if err != nil {
			return err
		}
		s.GatewayFees[m] = fee
	case strings.HasPrefix(key, "session_ttl."):
		m, err := domain.ParsePaymentMethod(strings.TrimPrefix(key, "session_ttl."))
		if err != nil {
			return err
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		s.SessionTTLs[m] = d
	}
	return nil
}

func setDecimal(dst *decimal.Decimal, value string) error {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
