package app

import (
	"context"
	"strings"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/shopspring/decimal"
)

type WalletRepo interface {
	// Balance is zero for a user who never funded a wallet.
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
}

type Service struct {
	repo WalletRepo
}

func NewService(repo WalletRepo) *Service {
	return &Service{repo: repo}
}

func (s *Service) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if strings.TrimSpace(userID) == "" {
		return decimal.Zero, apperr.ErrUnauthenticated
	}
	return s.repo.Balance(ctx, userID)
}
