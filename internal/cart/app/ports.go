package app

import (
	"context"

	"github.com/dwikikusuma/marketplace-checkout/internal/cart/domain"
)

type CartRepo interface {
	// Get returns apperr.ErrNotFound when the user has no active cart.
	Get(ctx context.Context, userID string) (domain.Cart, error)
	GetOrCreate(ctx context.Context, userID string) (domain.Cart, error)
	AddItem(ctx context.Context, cartID string, item domain.CartItem) error
	ClearCart(ctx context.Context, cartID string) error
}
