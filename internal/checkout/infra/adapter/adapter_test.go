package adapter

import (
	"context"
	"testing"

	cartapp "github.com/dwikikusuma/marketplace-checkout/internal/cart/app"
	cartdomain "github.com/dwikikusuma/marketplace-checkout/internal/cart/domain"
	catalogapp "github.com/dwikikusuma/marketplace-checkout/internal/catalog/app"
	catalogdomain "github.com/dwikikusuma/marketplace-checkout/internal/catalog/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartServiceReader(t *testing.T) {
	store := memory.New()
	svc := cartapp.NewService(store.Carts())
	r := NewCartServiceReader(svc)
	ctx := context.Background()

	lines, err := r.GetCart(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	require.NoError(t, svc.AddItem(ctx, "b1", cartdomain.CartItem{
		ProductID:      "p1",
		Quantity:       2,
		RequiredFields: map[string]string{"player_id": "42"},
	}))

	lines, err = r.GetCart(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "p1", lines[0].ProductID)
	assert.Equal(t, int32(2), lines[0].Quantity)
	assert.Equal(t, "42", lines[0].RequiredFields["player_id"])

	require.NoError(t, r.ClearCart(ctx, "b1"))
	lines, err = r.GetCart(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCatalogServiceReader(t *testing.T) {
	store := memory.New()
	store.PutProduct(catalogdomain.Product{
		ID:                   "p1",
		SellerID:             "s1",
		Name:                 "Top-up 100",
		Price:                decimal.RequireFromString("4.99"),
		Currency:             "USD",
		Published:            true,
		Stock:                3,
		RequiredFields:       []string{"player_id"},
		SellerRequiresReview: true,
	})
	r := NewCatalogServiceReader(catalogapp.NewService(store.Products()))

	p, err := r.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "s1", p.SellerID)
	assert.True(t, p.SellerFlagged)
	assert.Equal(t, "4.99", p.Price.String())
	assert.Equal(t, []string{"player_id"}, p.RequiredFields)

	_, err = r.GetProduct(context.Background(), "missing")
	require.Error(t, err)
}
