package database

import (
	"context"

	"github.com/shopspring/decimal"
)

const createTransaction = `
INSERT INTO transactions (
	balance_id, message_id, batch_ref, transaction_type,
	amount, balance_before, balance_after, description
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id
`

type CreateTransactionParams struct {
	BalanceID       int64
	MessageID       *int64
	BatchRef        *string
	TransactionType string
	Amount          decimal.Decimal
	BalanceBefore   decimal.Decimal
	BalanceAfter    decimal.Decimal
	Description     *string
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	row := q.db.QueryRow(ctx, createTransaction,
		arg.BalanceID, arg.MessageID, arg.BatchRef, arg.TransactionType,
		arg.Amount, arg.BalanceBefore, arg.BalanceAfter, arg.Description)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const findDebitTransactionForMessage = `
SELECT id, balance_id, message_id, batch_ref, transaction_type,
	amount, balance_before, balance_after, description, created_at
FROM transactions
WHERE message_id = $1 AND transaction_type = 'debit'
ORDER BY created_at DESC
LIMIT 1
`

func (q *Queries) FindDebitTransactionForMessage(ctx context.Context, messageID int64) (Transaction, error) {
	row := q.db.QueryRow(ctx, findDebitTransactionForMessage, messageID)
	var t Transaction
	err := row.Scan(
		&t.ID, &t.BalanceID, &t.MessageID, &t.BatchRef, &t.TransactionType,
		&t.Amount, &t.BalanceBefore, &t.BalanceAfter, &t.Description, &t.CreatedAt,
	)
	return t, err
}
