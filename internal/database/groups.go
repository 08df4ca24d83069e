package database

import "context"

const getGroup = `
SELECT id, client_id, name
FROM groups
WHERE id = $1 AND client_id = $2
LIMIT 1
`

type GetGroupParams struct {
	ID       int64
	ClientID int64
}

func (q *Queries) GetGroup(ctx context.Context, arg GetGroupParams) (Group, error) {
	row := q.db.QueryRow(ctx, getGroup, arg.ID, arg.ClientID)
	var g Group
	err := row.Scan(&g.ID, &g.ClientID, &g.Name)
	return g, err
}

const listActiveGroupContacts = `
SELECT id, group_id, phone, validation_status
FROM contacts
WHERE group_id = $1 AND validation_status = 'active'
ORDER BY id
`

func (q *Queries) ListActiveGroupContacts(ctx context.Context, groupID int64) ([]Contact, error) {
	rows, err := q.db.Query(ctx, listActiveGroupContacts, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.GroupID, &c.Phone, &c.ValidationStatus); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}
