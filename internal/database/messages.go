package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const createMessage = `
INSERT INTO messages (
	client_id, phone, body, status, operator, parts, balance_type, cost
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id
`

type CreateMessageParams struct {
	ClientID    int64
	Phone       string
	Body        string
	Status      string
	Operator    string
	Parts       int32
	BalanceType string
	Cost        decimal.Decimal
}

func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (int64, error) {
	row := q.db.QueryRow(ctx, createMessage,
		arg.ClientID, arg.Phone, arg.Body, arg.Status, arg.Operator,
		arg.Parts, arg.BalanceType, arg.Cost)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const getMessageByProviderID = `
SELECT id, client_id, phone, body, status, operator, parts, balance_type, cost,
	provider_message_id, error_code, delivery_report,
	pending_since, response_received_at, staging_removed_at,
	created_at, updated_at
FROM messages
WHERE provider_message_id = $1
LIMIT 1
`

func (q *Queries) GetMessageByProviderID(ctx context.Context, providerMessageID string) (Message, error) {
	row := q.db.QueryRow(ctx, getMessageByProviderID, providerMessageID)
	var m Message
	err := row.Scan(
		&m.ID, &m.ClientID, &m.Phone, &m.Body, &m.Status, &m.Operator,
		&m.Parts, &m.BalanceType, &m.Cost,
		&m.ProviderMessageID, &m.ErrorCode, &m.DeliveryReport,
		&m.PendingSince, &m.ResponseReceivedAt, &m.StagingRemovedAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

const markMessageSent = `
UPDATE messages
SET status = 'sent', provider_message_id = $2, updated_at = now()
WHERE id = $1
`

type MarkMessageSentParams struct {
	ID                int64
	ProviderMessageID string
}

// MarkMessageSent records the provider-assigned correlation id immediately
// on a successful submit so later pushes can be joined back.
func (q *Queries) MarkMessageSent(ctx context.Context, arg MarkMessageSentParams) error {
	_, err := q.db.Exec(ctx, markMessageSent, arg.ID, arg.ProviderMessageID)
	return err
}

const markMessageSendFailed = `
UPDATE messages
SET status = 'failed', error_code = $2, updated_at = now()
WHERE id = $1
`

type MarkMessageSendFailedParams struct {
	ID        int64
	ErrorCode string
}

func (q *Queries) MarkMessageSendFailed(ctx context.Context, arg MarkMessageSendFailedParams) error {
	_, err := q.db.Exec(ctx, markMessageSendFailed, arg.ID, arg.ErrorCode)
	return err
}

const resetMessageForResend = `
UPDATE messages
SET status = 'pending', provider_message_id = NULL, error_code = NULL,
	delivery_report = NULL, pending_since = NULL, response_received_at = NULL,
	staging_removed_at = NULL, updated_at = now()
WHERE id = $1
`

// ResetMessageForResend is the one sanctioned backward status transition.
func (q *Queries) ResetMessageForResend(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, resetMessageForResend, id)
	return err
}

const setMessagePendingSince = `
UPDATE messages
SET pending_since = $2, updated_at = now()
WHERE provider_message_id = $1 AND pending_since IS NULL
`

// SetMessagePendingSince stamps pending_since only when it has never been
// set, so provider retransmits do not move it.
func (q *Queries) SetMessagePendingSince(ctx context.Context, arg SetMessagePendingSinceParams) error {
	_, err := q.db.Exec(ctx, setMessagePendingSince, arg.ProviderMessageID, arg.PendingSince)
	return err
}

const finalizeMessageDelivery = `
UPDATE messages
SET status = $2, delivery_report = $3, response_received_at = $4, updated_at = now()
WHERE provider_message_id = $1
`

type FinalizeMessageDeliveryParams struct {
	ProviderMessageID  string
	Status             string
	DeliveryReport     []byte
	ResponseReceivedAt time.Time
}

func (q *Queries) FinalizeMessageDelivery(ctx context.Context, arg FinalizeMessageDeliveryParams) error {
	_, err := q.db.Exec(ctx, finalizeMessageDelivery,
		arg.ProviderMessageID, arg.Status, arg.DeliveryReport, arg.ResponseReceivedAt)
	return err
}

const setMessageStagingRemoved = `
UPDATE messages
SET staging_removed_at = $2, updated_at = now()
WHERE provider_message_id = $1
`

func (q *Queries) SetMessageStagingRemoved(ctx context.Context, arg SetMessageStagingRemovedParams) error {
	_, err := q.db.Exec(ctx, setMessageStagingRemoved, arg.ProviderMessageID, arg.StagingRemovedAt)
	return err
}
