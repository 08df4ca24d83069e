package database

import (
	"context"

	"github.com/shopspring/decimal"
)

const getBalanceForUpdate = `
SELECT id, client_id, balance_type, amount, updated_at
FROM balances
WHERE client_id = $1 AND balance_type = $2
FOR UPDATE
`

type GetBalanceForUpdateParams struct {
	ClientID    int64
	BalanceType string
}

// GetBalanceForUpdate locks the wallet row until the surrounding
// transaction ends, serializing concurrent billing units per owner+type.
func (q *Queries) GetBalanceForUpdate(ctx context.Context, arg GetBalanceForUpdateParams) (Balance, error) {
	row := q.db.QueryRow(ctx, getBalanceForUpdate, arg.ClientID, arg.BalanceType)
	var b Balance
	err := row.Scan(&b.ID, &b.ClientID, &b.BalanceType, &b.Amount, &b.UpdatedAt)
	return b, err
}

const getBalanceForUpdateByID = `
SELECT id, client_id, balance_type, amount, updated_at
FROM balances
WHERE id = $1
FOR UPDATE
`

func (q *Queries) GetBalanceForUpdateByID(ctx context.Context, id int64) (Balance, error) {
	row := q.db.QueryRow(ctx, getBalanceForUpdateByID, id)
	var b Balance
	err := row.Scan(&b.ID, &b.ClientID, &b.BalanceType, &b.Amount, &b.UpdatedAt)
	return b, err
}

const updateBalanceAmount = `
UPDATE balances
SET amount = $2, updated_at = now()
WHERE id = $1
`

type UpdateBalanceAmountParams struct {
	ID     int64
	Amount decimal.Decimal
}

func (q *Queries) UpdateBalanceAmount(ctx context.Context, arg UpdateBalanceAmountParams) error {
	_, err := q.db.Exec(ctx, updateBalanceAmount, arg.ID, arg.Amount)
	return err
}
