package app

import (
	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/settings"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CalculateFees is pure: the same subtotal, method and snapshot always
// produce the same breakdown. Percentages apply to the pre-fee subtotal and
// each fee is rounded to cents on its own.
func CalculateFees(subtotal decimal.Decimal, method domain.PaymentMethod, snap settings.Snapshot) domain.FeeBreakdown {
	subtotal = subtotal.Round(2)

	platform := snap.ServiceFeeFixed.Add(subtotal.Mul(snap.ServiceFeePercent).Div(hundred)).Round(2)

	gateway := decimal.Zero
	if fee, ok := snap.GatewayFee(method); ok {
		gateway = fee.Fixed.Add(subtotal.Mul(fee.Percent).Div(hundred)).Round(2)
	}

	return domain.FeeBreakdown{
		Subtotal:    subtotal,
		PlatformFee: platform,
		GatewayFee:  gateway,
		GrandTotal:  subtotal.Add(platform).Add(gateway),
	}
}
