package database

import (
	"context"
	"time"
)

// Querier lists every query against persisted state. Components depend on
// this interface so tests can substitute fakes.
type Querier interface {
	// Templates
	GetActiveTemplateByContent(ctx context.Context, arg GetActiveTemplateByContentParams) (Template, error)
	IncrementTemplateUsage(ctx context.Context, id int64) error

	// Tariffs
	ListTariffs(ctx context.Context) ([]Tariff, error)
	GetTariffByPrefix(ctx context.Context, prefix string) (Tariff, error)

	// Balances
	GetBalanceForUpdate(ctx context.Context, arg GetBalanceForUpdateParams) (Balance, error)
	GetBalanceForUpdateByID(ctx context.Context, id int64) (Balance, error)
	UpdateBalanceAmount(ctx context.Context, arg UpdateBalanceAmountParams) error

	// Messages
	CreateMessage(ctx context.Context, arg CreateMessageParams) (int64, error)
	GetMessageByProviderID(ctx context.Context, providerMessageID string) (Message, error)
	MarkMessageSent(ctx context.Context, arg MarkMessageSentParams) error
	MarkMessageSendFailed(ctx context.Context, arg MarkMessageSendFailedParams) error
	ResetMessageForResend(ctx context.Context, id int64) error
	SetMessagePendingSince(ctx context.Context, arg SetMessagePendingSinceParams) error
	FinalizeMessageDelivery(ctx context.Context, arg FinalizeMessageDeliveryParams) error
	SetMessageStagingRemoved(ctx context.Context, arg SetMessageStagingRemovedParams) error

	// Transactions
	CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error)
	FindDebitTransactionForMessage(ctx context.Context, messageID int64) (Transaction, error)

	// Groups
	GetGroup(ctx context.Context, arg GetGroupParams) (Group, error)
	ListActiveGroupContacts(ctx context.Context, groupID int64) ([]Contact, error)
}

var _ Querier = (*Queries)(nil)

// Shared param types used by more than one file live with the interface.

type SetMessagePendingSinceParams struct {
	ProviderMessageID string
	PendingSince      time.Time
}

type SetMessageStagingRemovedParams struct {
	ProviderMessageID string
	StagingRemovedAt  time.Time
}
