package payment

import (
	"context"
	"fmt"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/shopspring/decimal"
)

type WalletReader interface {
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
}

// Wallet only checks the balance. The debit itself is a compare-and-set
// inside the order creation transaction so two concurrent checkouts can not
// both spend the same funds.
type Wallet struct {
	wallets WalletReader
}

func NewWallet(wallets WalletReader) *Wallet {
	return &Wallet{wallets: wallets}
}

func (w *Wallet) Method() domain.PaymentMethod { return domain.MethodWallet }

func (w *Wallet) Initiate(ctx context.Context, c Charge) (Initiation, error) {
	balance, err := w.wallets.Balance(ctx, c.BuyerID)
	if err != nil {
		return Initiation{}, fmt.Errorf("read wallet balance: %w", err)
	}
	if balance.LessThan(c.Amount) {
		return Initiation{}, fmt.Errorf("%w: balance %s, need %s", apperr.ErrInsufficientFunds, balance.StringFixed(2), c.Amount.StringFixed(2))
	}
	return Initiation{Kind: KindCompleteImmediately}, nil
}
