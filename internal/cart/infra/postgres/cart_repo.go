package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/dwikikusuma/marketplace-checkout/internal/cart/domain"
	"github.com/google/uuid"
)

type CartRepo struct {
	db *sql.DB
}

func NewCartRepo(db *sql.DB) *CartRepo {
	return &CartRepo{db: db}
}

func (r *CartRepo) Get(ctx context.Context, userID string) (domain.Cart, error) {
	var cart domain.Cart
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, status, created_at, updated_at FROM carts WHERE user_id = $1 AND status = 'active'`,
		userID,
	).Scan(&cart.ID, &cart.UserID, &cart.Status, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, apperr.ErrNotFound
	}
	if err != nil {
		return domain.Cart{}, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, quantity, required_fields FROM cart_items WHERE cart_id = $1 ORDER BY product_id`,
		cart.ID,
	)
	if err != nil {
		return domain.Cart{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item   domain.CartItem
			fields string
		)
		if err := rows.Scan(&item.ProductID, &item.Quantity, &fields); err != nil {
			return domain.Cart{}, err
		}
		if err := json.Unmarshal([]byte(fields), &item.RequiredFields); err != nil {
			return domain.Cart{}, fmt.Errorf("cart item %s required fields: %w", item.ProductID, err)
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, rows.Err()
}

func (r *CartRepo) GetOrCreate(ctx context.Context, userID string) (domain.Cart, error) {
	// 1) Try get
	cart, err := r.Get(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return domain.Cart{}, err
	}

	// 2) Not found => try create
	_, createErr := r.db.ExecContext(ctx,
		`INSERT INTO carts (id, user_id, status) VALUES ($1, $2, 'active')`,
		uuid.NewString(), userID,
	)
	if createErr == nil {
		return r.Get(ctx, userID)
	}

	// 3) If someone else created concurrently => re-get
	if isUniqueViolation(createErr) {
		return r.Get(ctx, userID)
	}

	return domain.Cart{}, createErr
}

func (r *CartRepo) AddItem(ctx context.Context, cartID string, item domain.CartItem) error {
	fields, err := json.Marshal(item.RequiredFields)
	if err != nil {
		return err
	}
	if item.RequiredFields == nil {
		fields = []byte("{}")
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO cart_items (cart_id, product_id, quantity, required_fields)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cart_id, product_id)
DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity,
              required_fields = EXCLUDED.required_fields`,
		cartID, item.ProductID, item.Quantity, string(fields),
	)
	return err
}

func (r *CartRepo) ClearCart(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
