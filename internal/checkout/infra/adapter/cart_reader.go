package adapter

import (
	"context"

	cartapp "github.com/dwikikusuma/marketplace-checkout/internal/cart/app"
	"github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
)

type CartServiceReader struct {
	svc *cartapp.Service
}

func NewCartServiceReader(svc *cartapp.Service) *CartServiceReader {
	return &CartServiceReader{svc: svc}
}

func (r *CartServiceReader) GetCart(ctx context.Context, userID string) ([]domain.CartLine, error) {
	cart, err := r.svc.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make([]domain.CartLine, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, domain.CartLine{
			ProductID:      it.ProductID,
			Quantity:       it.Quantity,
			RequiredFields: it.RequiredFields,
		})
	}
	return items, nil
}

func (r *CartServiceReader) ClearCart(ctx context.Context, userID string) error {
	return r.svc.ClearCart(ctx, userID)
}
