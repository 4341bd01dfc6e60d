package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore map[string]string

func (m mapStore) LoadSettings(context.Context) (map[string]string, error) { return m, nil }

type failingStore struct{}

func (failingStore) LoadSettings(context.Context) (map[string]string, error) {
	return nil, errors.New("db down")
}

func defaults() Snapshot {
	return Snapshot{
		Currency:          "USD",
		ServiceFeeFixed:   decimal.RequireFromString("0.50"),
		ServiceFeePercent: decimal.NewFromInt(3),
	}
}

func TestSnapshotOverlay(t *testing.T) {
	svc := NewService(mapStore{
		"service_fee_percent":             "2.5",
		"gateway_fee.hosted_card.fixed":   "0.30",
		"gateway_fee.hosted_card.percent": "2.9",
		"require_manual_review_above":     "500",
		"review_methods":                  "crypto_gateway, exchange_transfer",
		"delivery_delay_minutes":          "15",
		"session_ttl.bank_qr":             "5m",
		"unrelated.banner_text":           "hello",
	}, defaults())

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2.5", snap.ServiceFeePercent.String())
	assert.Equal(t, "0.5", snap.ServiceFeeFixed.String())
	fee, ok := snap.GatewayFee(domain.MethodHostedCard)
	require.True(t, ok)
	assert.Equal(t, "0.3", fee.Fixed.String())
	assert.Equal(t, "2.9", fee.Percent.String())
	_, ok = snap.GatewayFee(domain.MethodWallet)
	assert.False(t, ok)
	assert.True(t, snap.ReviewsMethod(domain.MethodCryptoGateway))
	assert.False(t, snap.ReviewsMethod(domain.MethodWallet))
	assert.Equal(t, 15*time.Minute, snap.DeliveryDelay())
	assert.Equal(t, 5*time.Minute, snap.SessionTTL(domain.MethodBankQR))
	assert.Equal(t, 30*time.Minute, snap.SessionTTL(domain.MethodExchangeTransfer))
	assert.Zero(t, snap.SessionTTL(domain.MethodWallet))
}

func TestSnapshotDoesNotMutateDefaults(t *testing.T) {
	base := defaults()
	base.GatewayFees = map[domain.PaymentMethod]GatewayFee{}
	svc := NewService(mapStore{"gateway_fee.bank_qr.fixed": "1"}, base)

	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, base.GatewayFees)
}

func TestSnapshotRejectsNegativeFees(t *testing.T) {
	svc := NewService(mapStore{"service_fee_fixed": "-1"}, defaults())
	_, err := svc.Snapshot(context.Background())
	require.Error(t, err)
}

func TestSnapshotRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"service_fee_percent":     "three",
		"review_methods":          "paypal",
		"session_ttl.bank_qr":     "ten minutes",
		"gateway_fee.bank_qr.max": "1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			svc := NewService(mapStore{key: value}, defaults())
			_, err := svc.Snapshot(context.Background())
			require.Error(t, err)
		})
	}
}

func TestSnapshotStoreError(t *testing.T) {
	svc := NewService(failingStore{}, defaults())
	_, err := svc.Snapshot(context.Background())
	require.Error(t, err)
}
