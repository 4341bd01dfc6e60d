package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string
	SellerID    string
	Name        string
	Description string
	Price       decimal.Decimal
	Currency    string

	Published      bool
	Stock          int32
	UnlimitedStock bool

	// RequiredFields names the buyer inputs the product needs, such as a
	// game account id.
	RequiredFields []string

	SellerRequiresReview bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Product) InStock(qty int32) bool {
	return p.UnlimitedStock || p.Stock >= qty
}
