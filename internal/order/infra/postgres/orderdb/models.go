package orderdb

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID                   string
	OrderNumber          string
	BuyerID              string
	SellerID             string
	ProductID            string
	ProductName          string
	Quantity             int32
	UnitPrice            decimal.Decimal
	FeeAmount            decimal.Decimal
	TotalAmount          decimal.Decimal
	Currency             string
	PaymentMethod        string
	PaymentReference     string
	MemoCode             string
	ExpiresAt            sql.NullTime
	Sandbox              bool
	Status               string
	IsHighValue          bool
	RequiresManualReview bool
	RequiredFields       string
	DeliveryScheduledAt  sql.NullTime
	DeliveryPayload      string
	DeliveredAt          sql.NullTime
	CancelReason         string
	ReviewedBy           string
	ReviewedAt           sql.NullTime
	PaidAt               sql.NullTime
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
