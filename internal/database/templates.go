package database

import "context"

const getActiveTemplateByContent = `
SELECT id, client_id, content, status, is_active, usage_count, last_used_at
FROM templates
WHERE client_id = $1 AND content = $2 AND status = 'approved' AND is_active
LIMIT 1
`

type GetActiveTemplateByContentParams struct {
	ClientID int64
	Content  string
}

// GetActiveTemplateByContent matches on exact body equality; an inactive or
// unapproved template does not match.
func (q *Queries) GetActiveTemplateByContent(ctx context.Context, arg GetActiveTemplateByContentParams) (Template, error) {
	row := q.db.QueryRow(ctx, getActiveTemplateByContent, arg.ClientID, arg.Content)
	var t Template
	err := row.Scan(&t.ID, &t.ClientID, &t.Content, &t.Status, &t.IsActive, &t.UsageCount, &t.LastUsedAt)
	return t, err
}

const incrementTemplateUsage = `
UPDATE templates
SET usage_count = usage_count + 1, last_used_at = now()
WHERE id = $1
`

func (q *Queries) IncrementTemplateUsage(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, incrementTemplateUsage, id)
	return err
}
