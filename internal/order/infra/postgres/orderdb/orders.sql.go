package orderdb

import (
	"context"
	"database/sql"
	"time"
)

const orderColumns = `id, order_number, buyer_id, seller_id, product_id, product_name, quantity,
unit_price, fee_amount, total_amount, currency, payment_method, payment_reference, memo_code,
expires_at, sandbox, status, is_high_value, requires_manual_review, required_fields,
delivery_scheduled_at, delivery_payload, delivered_at, cancel_reason, reviewed_by, reviewed_at,
paid_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row scanner) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.BuyerID,
		&i.SellerID,
		&i.ProductID,
		&i.ProductName,
		&i.Quantity,
		&i.UnitPrice,
		&i.FeeAmount,
		&i.TotalAmount,
		&i.Currency,
		&i.PaymentMethod,
		&i.PaymentReference,
		&i.MemoCode,
		&i.ExpiresAt,
		&i.Sandbox,
		&i.Status,
		&i.IsHighValue,
		&i.RequiresManualReview,
		&i.RequiredFields,
		&i.DeliveryScheduledAt,
		&i.DeliveryPayload,
		&i.DeliveredAt,
		&i.CancelReason,
		&i.ReviewedBy,
		&i.ReviewedAt,
		&i.PaidAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) listOrders(ctx context.Context, query string, args ...interface{}) ([]Order, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertOrder = `-- name: InsertOrder :exec
INSERT INTO orders (` + orderColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
        $21, $22, $23, $24, $25, $26, $27, $28, $29)`

func (q *Queries) InsertOrder(ctx context.Context, arg Order) error {
	_, err := q.db.ExecContext(ctx, insertOrder,
		arg.ID,
		arg.OrderNumber,
		arg.BuyerID,
		arg.SellerID,
		arg.ProductID,
		arg.ProductName,
		arg.Quantity,
		arg.UnitPrice,
		arg.FeeAmount,
		arg.TotalAmount,
		arg.Currency,
		arg.PaymentMethod,
		arg.PaymentReference,
		arg.MemoCode,
		arg.ExpiresAt,
		arg.Sandbox,
		arg.Status,
		arg.IsHighValue,
		arg.RequiresManualReview,
		arg.RequiredFields,
		arg.DeliveryScheduledAt,
		arg.DeliveryPayload,
		arg.DeliveredAt,
		arg.CancelReason,
		arg.ReviewedBy,
		arg.ReviewedAt,
		arg.PaidAt,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id string) (Order, error) {
	return scanOrder(q.db.QueryRowContext(ctx, getOrder, id))
}

const lockOrder = `-- name: LockOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

func (q *Queries) LockOrder(ctx context.Context, id string) (Order, error) {
	return scanOrder(q.db.QueryRowContext(ctx, lockOrder, id))
}

const listOrdersByIDs = `-- name: ListOrdersByIDs :many
SELECT ` + orderColumns + ` FROM orders WHERE id = ANY($1) ORDER BY created_at, id`

func (q *Queries) ListOrdersByIDs(ctx context.Context, ids []string) ([]Order, error) {
	return q.listOrders(ctx, listOrdersByIDs, ids)
}

const lockOrdersByReference = `-- name: LockOrdersByReference :many
SELECT ` + orderColumns + ` FROM orders WHERE payment_reference = $1 ORDER BY id FOR UPDATE`

func (q *Queries) LockOrdersByReference(ctx context.Context, reference string) ([]Order, error) {
	return q.listOrders(ctx, lockOrdersByReference, reference)
}

const listOrdersByStatus = `-- name: ListOrdersByStatus :many
SELECT ` + orderColumns + ` FROM orders
WHERE status = $1
  AND ($2::text = '' OR (created_at, id) > (SELECT o.created_at, o.id FROM orders o WHERE o.id = $2::text))
ORDER BY created_at, id
LIMIT $3`

type ListOrdersByStatusParams struct {
	Status string
	Cursor string
	Limit  int32
}

func (q *Queries) ListOrdersByStatus(ctx context.Context, arg ListOrdersByStatusParams) ([]Order, error) {
	return q.listOrders(ctx, listOrdersByStatus, arg.Status, arg.Cursor, arg.Limit)
}

const listDueDeliveries = `-- name: ListDueDeliveries :many
SELECT ` + orderColumns + ` FROM orders
WHERE status = 'awaiting_delivery' AND delivery_scheduled_at <= $1
ORDER BY delivery_scheduled_at, id
LIMIT $2`

func (q *Queries) ListDueDeliveries(ctx context.Context, now time.Time, limit int32) ([]Order, error) {
	return q.listOrders(ctx, listDueDeliveries, now, limit)
}

const listExpiredReferences = `-- name: ListExpiredReferences :many
SELECT payment_reference FROM orders
WHERE status = 'pending' AND expires_at <= $1
GROUP BY payment_reference
ORDER BY MIN(expires_at)
LIMIT $2`

func (q *Queries) ListExpiredReferences(ctx context.Context, now time.Time, limit int32) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listExpiredReferences, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		items = append(items, ref)
	}
	return items, rows.Err()
}

const updateOrder = `-- name: UpdateOrder :exec
UPDATE orders SET
    status = $2,
    delivery_scheduled_at = $3,
    delivery_payload = $4,
    delivered_at = $5,
    cancel_reason = $6,
    reviewed_by = $7,
    reviewed_at = $8,
    paid_at = $9,
    updated_at = $10
WHERE id = $1`

type UpdateOrderParams struct {
	ID                  string
	Status              string
	DeliveryScheduledAt sql.NullTime
	DeliveryPayload     string
	DeliveredAt         sql.NullTime
	CancelReason        string
	ReviewedBy          string
	ReviewedAt          sql.NullTime
	PaidAt              sql.NullTime
	UpdatedAt           time.Time
}

func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) error {
	_, err := q.db.ExecContext(ctx, updateOrder,
		arg.ID,
		arg.Status,
		arg.DeliveryScheduledAt,
		arg.DeliveryPayload,
		arg.DeliveredAt,
		arg.CancelReason,
		arg.ReviewedBy,
		arg.ReviewedAt,
		arg.PaidAt,
		arg.UpdatedAt,
	)
	return err
}

const reserveStock = `-- name: ReserveStock :execrows
UPDATE products SET stock = CASE WHEN unlimited_stock THEN stock ELSE stock - $2 END, updated_at = now()
WHERE id = $1 AND published AND (unlimited_stock OR stock >= $2)`

func (q *Queries) ReserveStock(ctx context.Context, productID string, quantity int32) (int64, error) {
	result, err := q.db.ExecContext(ctx, reserveStock, productID, quantity)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const restoreStock = `-- name: RestoreStock :exec
UPDATE products SET stock = stock + $2, updated_at = now()
WHERE id = $1 AND NOT unlimited_stock`

func (q *Queries) RestoreStock(ctx context.Context, productID string, quantity int32) error {
	_, err := q.db.ExecContext(ctx, restoreStock, productID, quantity)
	return err
}

const claimCodes = `-- name: ClaimCodes :many
WITH claimed AS (
    UPDATE product_codes SET order_id = $2, claimed_at = now()
    WHERE id IN (
        SELECT id FROM product_codes
        WHERE product_id = $1 AND order_id IS NULL
        ORDER BY id
        LIMIT $3
        FOR UPDATE SKIP LOCKED
    )
    RETURNING id, code
)
SELECT code FROM claimed ORDER BY id`

func (q *Queries) ClaimCodes(ctx context.Context, productID, orderID string, n int32) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, claimCodes, productID, orderID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
