package domain

import (
	"math"
	"strings"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodWallet           PaymentMethod = "wallet"
	MethodHostedCard       PaymentMethod = "hosted_card"
	MethodBankQR           PaymentMethod = "bank_qr"
	MethodExchangeTransfer PaymentMethod = "exchange_transfer"
	MethodCryptoGateway    PaymentMethod = "crypto_gateway"
)

var Methods = []PaymentMethod{
	MethodWallet,
	MethodHostedCard,
	MethodBankQR,
	MethodExchangeTransfer,
	MethodCryptoGateway,
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", apperr.Invalid("unknown payment method %q", s)
	}
	return m, nil
}

func (m PaymentMethod) Valid() bool {
	for _, known := range Methods {
		if m == known {
			return true
		}
	}
	return false
}

// Polled reports whether confirmation is discovered by polling the rail
// rather than arriving synchronously or through a provider callback.
func (m PaymentMethod) Polled() bool {
	return m == MethodBankQR || m == MethodExchangeTransfer
}

type CartLine struct {
	ProductID      string
	Quantity       int32
	RequiredFields map[string]string
}

type QuoteLine struct {
	ProductID      string
	Name           string
	SellerID       string
	SellerFlagged  bool
	Quantity       int32
	UnitPrice      decimal.Decimal
	LineTotal      decimal.Decimal
	RequiredFields map[string]string
}

type FeeBreakdown struct {
	Subtotal    decimal.Decimal
	PlatformFee decimal.Decimal
	GatewayFee  decimal.Decimal
	GrandTotal  decimal.Decimal
}

type Quote struct {
	Currency string
	Method   PaymentMethod
	Lines    []QuoteLine
	Fees     FeeBreakdown
}

func SameFields(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// MergeLines folds repeated products into one line. Repeats must carry the
// same required fields.
func MergeLines(lines []CartLine) ([]CartLine, error) {
	out := make([]CartLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		l.ProductID = strings.TrimSpace(l.ProductID)
		if l.ProductID == "" {
			return nil, apperr.Invalid("product id is required")
		}
		if l.Quantity <= 0 {
			return nil, apperr.Invalid("quantity for %s must be positive, got %d", l.ProductID, l.Quantity)
		}
		i, seen := index[l.ProductID]
		if !seen {
			index[l.ProductID] = len(out)
			out = append(out, l)
			continue
		}
		if !SameFields(out[i].RequiredFields, l.RequiredFields) {
			return nil, apperr.Invalid("product %s appears twice with different required fields", l.ProductID)
		}
		qty, err := AddQuantity(out[i].ProductID, out[i].Quantity, l.Quantity)
		if err != nil {
			return nil, err
		}
		out[i].Quantity = qty
	}
	return out, nil
}

// AddQuantity sums two line quantities, refusing totals that do not fit an
// int32.
func AddQuantity(productID string, a, b int32) (int32, error) {
	sum := int64(a) + int64(b)
	if sum > math.MaxInt32 {
		return 0, apperr.Invalid("quantity for %s exceeds %d", productID, int32(math.MaxInt32))
	}
	return int32(sum), nil
}
