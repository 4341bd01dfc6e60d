package settings

import (
	"fmt"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type GatewayFee struct {
	Fixed   decimal.Decimal
	Percent decimal.Decimal
}

// Snapshot is the fee and risk configuration in force for one request. It is
// passed by value so a checkout computes display and charge totals from the
// same numbers.
type Snapshot struct {
	Currency string

	ServiceFeeFixed   decimal.Decimal
	ServiceFeePercent decimal.Decimal
	GatewayFees       map[domain.PaymentMethod]GatewayFee

	HighValueThreshold       decimal.Decimal
	RequireManualReviewAbove decimal.Decimal
	ReviewMethods            []domain.PaymentMethod
	DeliveryDelayMinutes     int

	SessionTTLs map[domain.PaymentMethod]time.Duration
	Sandbox     bool
}

var defaultTTLs = map[domain.PaymentMethod]time.Duration{
	domain.MethodBankQR:           10 * time.Minute,
	domain.MethodExchangeTransfer: 30 * time.Minute,
	domain.MethodHostedCard:       60 * time.Minute,
	domain.MethodCryptoGateway:    60 * time.Minute,
}

func (s Snapshot) GatewayFee(m domain.PaymentMethod) (GatewayFee, bool) {
	fee, ok := s.GatewayFees[m]
	return fee, ok
}

// SessionTTL is zero for wallet payments, which settle synchronously.
func (s Snapshot) SessionTTL(m domain.PaymentMethod) time.Duration {
	if m == domain.MethodWallet {
		return 0
	}
	if ttl, ok := s.SessionTTLs[m]; ok && ttl > 0 {
		return ttl
	}
	return defaultTTLs[m]
}

func (s Snapshot) ReviewsMethod(m domain.PaymentMethod) bool {
	for _, rm := range s.ReviewMethods {
		if rm == m {
			return true
		}
	}
	return false
}

func (s Snapshot) DeliveryDelay() time.Duration {
	return time.Duration(s.DeliveryDelayMinutes) * time.Minute
}

func (s Snapshot) Validate() error {
	if s.Currency == "" {
		return fmt.Errorf("currency is required")
	}
	check := func(name string, d decimal.Decimal) error {
		if d.IsNegative() {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
		return nil
	}
	if err := check("service_fee_fixed", s.ServiceFeeFixed); err != nil {
		return err
	}
	if err := check("service_fee_percent", s.ServiceFeePercent); err != nil {
		return err
	}
	if s.ServiceFeePercent.GreaterThan(hundred) {
		return fmt.Errorf("service_fee_percent must be at most 100, got %s", s.ServiceFeePercent)
	}
	for m, fee := range s.GatewayFees {
		if err := check(fmt.Sprintf("gateway_fee.%s.fixed", m), fee.Fixed); err != nil {
			return err
		}
		if err := check(fmt.Sprintf("gateway_fee.%s.percent", m), fee.Percent); err != nil {
			return err
		}
	}
	if err := check("high_value_threshold", s.HighValueThreshold); err != nil {
		return err
	}
	if err := check("require_manual_review_above", s.RequireManualReviewAbove); err != nil {
		return err
	}
	if s.DeliveryDelayMinutes < 0 {
		return fmt.Errorf("delivery_delay_minutes must not be negative, got %d", s.DeliveryDelayMinutes)
	}
	return nil
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.GatewayFees = make(map[domain.PaymentMethod]GatewayFee, len(s.GatewayFees))
	for k, v := range s.GatewayFees {
		out.GatewayFees[k] = v
	}
	out.SessionTTLs = make(map[domain.PaymentMethod]time.Duration, len(s.SessionTTLs))
	for k, v := range s.SessionTTLs {
		out.SessionTTLs[k] = v
	}
	out.ReviewMethods = append([]domain.PaymentMethod(nil), s.ReviewMethods...)
	return out
}
