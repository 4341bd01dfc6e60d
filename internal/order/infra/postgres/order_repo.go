package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dwikikusuma/marketplace-checkout/internal/apperr"
	checkoutdomain "github.com/dwikikusuma/marketplace-checkout/internal/checkout/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/order/domain"
	"github.com/dwikikusuma/marketplace-checkout/internal/order/infra/postgres/orderdb"
)

type OrderRepo struct {
	*orderdb.Queries
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{
		Queries: orderdb.New(db),
		db:      db,
	}
}

func (r *OrderRepo) execTX(ctx context.Context, fn func(queries *orderdb.Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	q := orderdb.New(tx)
	err = fn(q)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %w; rollback err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

func (r *OrderRepo) CreateBatch(ctx context.Context, batch domain.Batch) error {
	return r.execTX(ctx, func(q *orderdb.Queries) error {
		for _, o := range batch.Orders {
			n, err := q.ReserveStock(ctx, o.ProductID, o.Quantity)
			if err != nil {
				return fmt.Errorf("reserve stock for %s: %w", o.ProductID, err)
			}
			if n == 0 {
				return fmt.Errorf("%w: product %s", apperr.ErrOutOfStock, o.ProductID)
			}
		}

		if batch.WalletDebit.IsPositive() {
			n, err := q.DebitWallet(ctx, batch.BuyerID, batch.WalletDebit)
			if err != nil {
				return fmt.Errorf("debit wallet: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("%w: wallet debit of %s refused", apperr.ErrInsufficientFunds, batch.WalletDebit.StringFixed(2))
			}
			err = q.InsertWalletTransaction(ctx, orderdb.InsertWalletTransactionParams{
				UserID:    batch.BuyerID,
				Amount:    batch.WalletDebit.Neg(),
				Kind:      "purchase",
				Reference: batch.Reference,
			})
			if err != nil {
				return fmt.Errorf("record wallet debit: %w", err)
			}
		}

		for i, o := range batch.Orders {
			if o.Status == domain.StatusCompleted {
				released, err := release(ctx, q, o, o.UpdatedAt)
				if err != nil {
					return err
				}
				o = released
			}
			row, err := toRow(o)
			if err != nil {
				return err
			}
			if err := q.InsertOrder(ctx, row); err != nil {
				return fmt.Errorf("failed to insert order %d: %w", i, err)
			}
		}
		return nil
	})
}

func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	row, err := r.Queries.GetOrder(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, err
	}
	return fromRow(row)
}

func (r *OrderRepo) ListByIDs(ctx context.Context, ids []string) ([]domain.Order, error) {
	rows, err := r.Queries.ListOrdersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

func (r *OrderRepo) UpdateBatch(ctx context.Context, reference string, fn func([]domain.Order) ([]domain.Change, error)) ([]domain.Order, error) {
	var changed []domain.Order

	err := r.execTX(ctx, func(q *orderdb.Queries) error {
		rows, err := q.LockOrdersByReference(ctx, reference)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("payment %s: %w", reference, apperr.ErrNotFound)
		}
		orders, err := fromRows(rows)
		if err != nil {
			return err
		}

		changes, err := fn(orders)
		if err != nil {
			return err
		}
		for _, ch := range changes {
			o, err := apply(ctx, q, ch)
			if err != nil {
				return err
			}
			changed = append(changed, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func (r *OrderRepo) Update(ctx context.Context, id string, fn func(domain.Order) (*domain.Change, error)) (domain.Order, error) {
	var out domain.Order

	err := r.execTX(ctx, func(q *orderdb.Queries) error {
		row, err := q.LockOrder(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
		}
		if err != nil {
			return err
		}
		o, err := fromRow(row)
		if err != nil {
			return err
		}

		ch, err := fn(o)
		if err != nil {
			return err
		}
		if ch == nil {
			out = o
			return nil
		}
		out, err = apply(ctx, q, *ch)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	return out, nil
}

func (r *OrderRepo) ListByStatus(ctx context.Context, status domain.Status, limit int, cursor string) ([]domain.Order, string, error) {
	rows, err := r.Queries.ListOrdersByStatus(ctx, orderdb.ListOrdersByStatusParams{
		Status: string(status),
		Cursor: strings.TrimSpace(cursor),
		Limit:  int32(limit),
	})
	if err != nil {
		return nil, "", err
	}
	out, err := fromRows(rows)
	if err != nil {
		return nil, "", err
	}

	var nextCursor string
	if len(out) == limit {
		nextCursor = out[len(out)-1].ID
	}
	return out, nextCursor, nil
}

func (r *OrderRepo) ListDueDeliveries(ctx context.Context, now time.Time, limit int) ([]domain.Order, error) {
	rows, err := r.Queries.ListDueDeliveries(ctx, now, int32(limit))
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

func (r *OrderRepo) ListExpiredReferences(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return r.Queries.ListExpiredReferences(ctx, now, int32(limit))
}

// apply writes one change and its side effects inside the caller's
// transaction.
func apply(ctx context.Context, q *orderdb.Queries, ch domain.Change) (domain.Order, error) {
	o := ch.Order

	if ch.Release {
		released, err := release(ctx, q, o, o.UpdatedAt)
		if err != nil {
			return domain.Order{}, err
		}
		o = released
	}
	if ch.Restock {
		if err := q.RestoreStock(ctx, o.ProductID, o.Quantity); err != nil {
			return domain.Order{}, fmt.Errorf("restock %s: %w", o.ProductID, err)
		}
	}
	if ch.Refund.IsPositive() {
		if err := q.CreditWallet(ctx, o.BuyerID, ch.Refund); err != nil {
			return domain.Order{}, fmt.Errorf("refund order %s: %w", o.ID, err)
		}
		err := q.InsertWalletTransaction(ctx, orderdb.InsertWalletTransactionParams{
			UserID:    o.BuyerID,
			Amount:    ch.Refund,
			Kind:      "refund",
			Reference: o.ID,
		})
		if err != nil {
			return domain.Order{}, fmt.Errorf("record refund: %w", err)
		}
	}

	err := q.UpdateOrder(ctx, orderdb.UpdateOrderParams{
		ID:                  o.ID,
		Status:              string(o.Status),
		DeliveryScheduledAt: nullTime(o.DeliveryScheduledAt),
		DeliveryPayload:     o.DeliveryPayload,
		DeliveredAt:         nullTime(o.DeliveredAt),
		CancelReason:        o.CancelReason,
		ReviewedBy:          o.ReviewedBy,
		ReviewedAt:          nullTime(o.ReviewedAt),
		PaidAt:              nullTime(o.PaidAt),
		UpdatedAt:           o.UpdatedAt,
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order %s: %w", o.ID, err)
	}
	return o, nil
}

// release hands stocked digital codes to a completed order. Products without
// stocked codes are fulfilled by the seller and get an empty payload.
func release(ctx context.Context, q *orderdb.Queries, o domain.Order, now time.Time) (domain.Order, error) {
	if o.DeliveredAt != nil {
		return o, nil
	}
	codes, err := q.ClaimCodes(ctx, o.ProductID, o.ID, o.Quantity)
	if err != nil {
		return domain.Order{}, fmt.Errorf("claim codes for order %s: %w", o.ID, err)
	}
	o.DeliveryPayload = strings.Join(codes, "\n")
	o.DeliveredAt = &now
	return o, nil
}

func toRow(o domain.Order) (orderdb.Order, error) {
	fields := []byte("{}")
	if len(o.RequiredFields) > 0 {
		var err error
		if fields, err = json.Marshal(o.RequiredFields); err != nil {
			return orderdb.Order{}, err
		}
	}
	return orderdb.Order{
		ID:                   o.ID,
		OrderNumber:          o.OrderNumber,
		BuyerID:              o.BuyerID,
		SellerID:             o.SellerID,
		ProductID:            o.ProductID,
		ProductName:          o.ProductName,
		Quantity:             o.Quantity,
		UnitPrice:            o.UnitPrice,
		FeeAmount:            o.FeeAmount,
		TotalAmount:          o.TotalAmount,
		Currency:             o.Currency,
		PaymentMethod:        string(o.PaymentMethod),
		PaymentReference:     o.PaymentReference,
		MemoCode:             o.MemoCode,
		ExpiresAt:            nullTime(o.ExpiresAt),
		Sandbox:              o.Sandbox,
		Status:               string(o.Status),
		IsHighValue:          o.IsHighValue,
		RequiresManualReview: o.RequiresManualReview,
		RequiredFields:       string(fields),
		DeliveryScheduledAt:  nullTime(o.DeliveryScheduledAt),
		DeliveryPayload:      o.DeliveryPayload,
		DeliveredAt:          nullTime(o.DeliveredAt),
		CancelReason:         o.CancelReason,
		ReviewedBy:           o.ReviewedBy,
		ReviewedAt:           nullTime(o.ReviewedAt),
		PaidAt:               nullTime(o.PaidAt),
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}, nil
}

func fromRow(row orderdb.Order) (domain.Order, error) {
	var fields map[string]string
	if err := json.Unmarshal([]byte(row.RequiredFields), &fields); err != nil {
		return domain.Order{}, fmt.Errorf("order %s required fields: %w", row.ID, err)
	}
	return domain.Order{
		ID:                   row.ID,
		OrderNumber:          row.OrderNumber,
		BuyerID:              row.BuyerID,
		SellerID:             row.SellerID,
		ProductID:            row.ProductID,
		ProductName:          row.ProductName,
		Quantity:             row.Quantity,
		UnitPrice:            row.UnitPrice,
		FeeAmount:            row.FeeAmount,
		TotalAmount:          row.TotalAmount,
		Currency:             row.Currency,
		PaymentMethod:        checkoutdomain.PaymentMethod(row.PaymentMethod),
		PaymentReference:     row.PaymentReference,
		MemoCode:             row.MemoCode,
		ExpiresAt:            timePtr(row.ExpiresAt),
		Sandbox:              row.Sandbox,
		Status:               domain.Status(row.Status),
		IsHighValue:          row.IsHighValue,
		RequiresManualReview: row.RequiresManualReview,
		RequiredFields:       fields,
		DeliveryScheduledAt:  timePtr(row.DeliveryScheduledAt),
		DeliveryPayload:      row.DeliveryPayload,
		DeliveredAt:          timePtr(row.DeliveredAt),
		CancelReason:         row.CancelReason,
		ReviewedBy:           row.ReviewedBy,
		ReviewedAt:           timePtr(row.ReviewedAt),
		PaidAt:               timePtr(row.PaidAt),
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}, nil
}

func fromRows(rows []orderdb.Order) ([]domain.Order, error) {
	out := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		o, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
