package database

import "context"

const listTariffs = `
SELECT id, prefix, operator, unit_price, provider_cost
FROM tariffs
ORDER BY length(prefix) DESC, prefix
`

func (q *Queries) ListTariffs(ctx context.Context) ([]Tariff, error) {
	rows, err := q.db.Query(ctx, listTariffs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tariffs []Tariff
	for rows.Next() {
		var t Tariff
		if err := rows.Scan(&t.ID, &t.Prefix, &t.Operator, &t.UnitPrice, &t.ProviderCost); err != nil {
			return nil, err
		}
		tariffs = append(tariffs, t)
	}
	return tariffs, rows.Err()
}

const getTariffByPrefix = `
SELECT id, prefix, operator, unit_price, provider_cost
FROM tariffs
WHERE prefix = $1
ORDER BY length(prefix) DESC
LIMIT 1
`

func (q *Queries) GetTariffByPrefix(ctx context.Context, prefix string) (Tariff, error) {
	row := q.db.QueryRow(ctx, getTariffByPrefix, prefix)
	var t Tariff
	err := row.Scan(&t.ID, &t.Prefix, &t.Operator, &t.UnitPrice, &t.ProviderCost)
	return t, err
}
