package app

import (
	"context"
	"testing"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/dwikikusuma/marketplace-checkout/internal/cart/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	svc := NewService(memory.New().Carts())

	t.Run("missing cart reads as empty", func(t *testing.T) {
		cart, err := svc.GetCart(ctx, "b1")
		require.NoError(t, err)
		assert.Empty(t, cart.Items)
		assert.Equal(t, domain.StatusActive, cart.Status)
	})

	t.Run("clearing a missing cart is fine", func(t *testing.T) {
		require.NoError(t, svc.ClearCart(ctx, "nobody"))
	})

	t.Run("add and clear", func(t *testing.T) {
		require.NoError(t, svc.AddItem(ctx, "b1", domain.CartItem{ProductID: "p1", Quantity: 1}))
		require.NoError(t, svc.AddItem(ctx, "b1", domain.CartItem{ProductID: "p1", Quantity: 2}))

		cart, err := svc.GetCart(ctx, "b1")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, int32(3), cart.Items[0].Quantity)

		require.NoError(t, svc.ClearCart(ctx, "b1"))
		cart, err = svc.GetCart(ctx, "b1")
		require.NoError(t, err)
		assert.Empty(t, cart.Items)
	})

	t.Run("validation", func(t *testing.T) {
		err := svc.AddItem(ctx, "b1", domain.CartItem{ProductID: "p1", Quantity: 0})
		require.ErrorIs(t, err, apperr.ErrInvalidInput)

		_, err = svc.GetOrCreate(ctx, " ")
		require.ErrorIs(t, err, apperr.ErrUnauthenticated)
	})
}
