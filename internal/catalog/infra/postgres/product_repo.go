package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	"github.com/dwikikusuma/marketplace-checkout/internal/catalog/domain"
)

type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

const getProduct = `
SELECT p.id, p.seller_id, p.name, p.description, p.price_amount, p.currency,
       p.published, p.stock, p.unlimited_stock, p.required_fields,
       COALESCE(s.requires_review, FALSE), p.created_at, p.updated_at
FROM products p
LEFT JOIN sellers s ON s.id = p.seller_id
WHERE p.id = $1`

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	var (
		p      domain.Product
		fields string
	)
	err := r.db.QueryRowContext(ctx, getProduct, id).Scan(
		&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.Currency,
		&p.Published, &p.Stock, &p.UnlimitedStock, &fields,
		&p.SellerRequiresReview, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return domain.Product{}, err
	}

	if err := json.Unmarshal([]byte(fields), &p.RequiredFields); err != nil {
		return domain.Product{}, fmt.Errorf("product %s required fields: %w", id, err)
	}
	return p, nil
}
