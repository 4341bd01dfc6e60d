package app

import (
	"context"
	"errors"
	"strings"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/dwikikusuma/marketplace-checkout/internal/cart/domain"
)

type Service struct {
	repo CartRepo
}

func NewService(repo CartRepo) *Service {
	return &Service{
		repo: repo,
	}
}

// GetCart returns the user's active cart, or an empty one.
func (s *Service) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	cart, err := s.repo.Get(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return domain.Cart{UserID: userID, Status: domain.StatusActive}, nil
	}
	return cart, err
}

func (s *Service) GetOrCreate(ctx context.Context, userID string) (domain.Cart, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Cart{}, apperr.ErrUnauthenticated
	}
	return s.repo.GetOrCreate(ctx, userID)
}

func (s *Service) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	if item.Quantity <= 0 {
		return apperr.Invalid("quantity must be positive, got %d", item.Quantity)
	}
	cart, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	return s.repo.AddItem(ctx, cart.ID, item)
}

// ClearCart empties the user's active cart. A user without one is fine.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	cart, err := s.repo.Get(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.repo.ClearCart(ctx, cart.ID)
}
