package database

import (
	"time"

	"github.com/shopspring/decimal"
)

// Message is an outbound SMS record. Cost is fixed at creation and never
// recomputed; delivery fields are mutated only by the reconciliation engine.
type Message struct {
	ID                 int64
	ClientID           int64
	Phone              string
	Body               string
	Status             string
	Operator           string
	Parts              int32
	BalanceType        string
	Cost               decimal.Decimal
	ProviderMessageID  *string
	ErrorCode          *string
	DeliveryReport     []byte
	PendingSince       *time.Time
	ResponseReceivedAt *time.Time
	StagingRemovedAt   *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Tariff maps a national-number prefix to an operator and billable rate.
type Tariff struct {
	ID           int64
	Prefix       string
	Operator     string
	UnitPrice    decimal.Decimal
	ProviderCost decimal.Decimal
}

// Balance is one wallet, per owner and balance type.
type Balance struct {
	ID          int64
	ClientID    int64
	BalanceType string
	Amount      decimal.Decimal
	UpdatedAt   time.Time
}

// Transaction is an immutable ledger row. Amount is signed: negative for
// debits, positive for reversals.
type Transaction struct {
	ID              int64
	BalanceID       int64
	MessageID       *int64
	BatchRef        *string
	TransactionType string
	Amount          decimal.Decimal
	BalanceBefore   decimal.Decimal
	BalanceAfter    decimal.Decimal
	Description     *string
	CreatedAt       time.Time
}

// Template is a pre-approved message body.
type Template struct {
	ID         int64
	ClientID   int64
	Content    string
	Status     string
	IsActive   bool
	UsageCount int64
	LastUsedAt *time.Time
}

// Group is a named contact list owned by a client.
type Group struct {
	ID       int64
	ClientID int64
	Name     string
}

// Contact is a group member with a validation status.
type Contact struct {
	ID               int64
	GroupID          int64
	Phone            string
	ValidationStatus string
}
