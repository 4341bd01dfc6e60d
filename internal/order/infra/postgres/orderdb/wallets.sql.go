package orderdb

import (
	"context"

	"github.com/shopspring/decimal"
)

const debitWallet = `-- name: DebitWallet :execrows
UPDATE wallets SET balance = balance - $1, updated_at = now()
WHERE user_id = $2 AND balance >= $1`

func (q *Queries) DebitWallet(ctx context.Context, userID string, amount decimal.Decimal) (int64, error) {
	result, err := q.db.ExecContext(ctx, debitWallet, amount, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const creditWallet = `-- name: CreditWallet :exec
INSERT INTO wallets (user_id, balance) VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE SET balance = wallets.balance + EXCLUDED.balance, updated_at = now()`

func (q *Queries) CreditWallet(ctx context.Context, userID string, amount decimal.Decimal) error {
	_, err := q.db.ExecContext(ctx, creditWallet, userID, amount)
	return err
}

const insertWalletTransaction = `-- name: InsertWalletTransaction :exec
INSERT INTO wallet_transactions (user_id, amount, kind, reference) VALUES ($1, $2, $3, $4)`

type InsertWalletTransactionParams struct {
	UserID    string
	Amount    decimal.Decimal
	Kind      string
	Reference string
}

func (q *Queries) InsertWalletTransaction(ctx context.Context, arg InsertWalletTransactionParams) error {
	_, err := q.db.ExecContext(ctx, insertWalletTransaction, arg.UserID, arg.Amount, arg.Kind, arg.Reference)
	return err
}
