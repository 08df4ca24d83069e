package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/database"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/logging"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/apperrors"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/codes"
)

// TxRunner runs a function inside one database transaction.
// *database.Store satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(q database.Querier) error) error
}

// Ledger executes billing units: balance deduction, message persistence,
// template usage and transaction recording as one all-or-nothing unit.
type Ledger struct {
	store TxRunner
}

func NewLedger(store TxRunner) *Ledger {
	return &Ledger{store: store}
}

// NewMessage describes one message to persist inside a billing unit. Cost
// is fixed here and never recomputed afterwards.
type NewMessage struct {
	Phone    string
	Body     string
	Operator string
	Parts    int32
	Cost     decimal.Decimal
}

// ChargeRequest is one billing unit, single message or bulk batch.
type ChargeRequest struct {
	ClientID    int64
	BalanceType string
	TemplateID  int64
	TotalCost   decimal.Decimal
	BatchRef    *string // set for bulk batches
	Messages    []NewMessage
}

// ChargeResult reports what the committed unit produced.
type ChargeResult struct {
	MessageIDs    []int64
	TransactionID int64
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
}

// Charge runs one atomic billing unit: FOR UPDATE balance read, deduction,
// message inserts, template usage increment, exactly one transaction row.
// Validation failures surface before any write; any error rolls back all of it.
func (l *Ledger) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	logCtx := logging.ContextWithClientID(ctx, req.ClientID)
	logCtx = logging.ContextWithBalanceType(logCtx, req.BalanceType)

	if len(req.Messages) == 0 {
		return nil, apperrors.Validationf(apperrors.CodeEmptyGroup, "billing unit has no messages")
	}
	// Zero-cost units are valid (free tariffs): messages are created and a
	// zero-amount debit is recorded, but the balance never moves.
	if req.TotalCost.IsNegative() {
		return nil, apperrors.Internalf(nil, "billing unit total cost must not be negative, got %s", req.TotalCost)
	}

	result := &ChargeResult{}
	err := l.store.WithTx(logCtx, func(q database.Querier) error {
		balance, err := q.GetBalanceForUpdate(logCtx, database.GetBalanceForUpdateParams{
			ClientID:    req.ClientID,
			BalanceType: req.BalanceType,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFoundf(apperrors.CodeBalanceNotFound,
					"no %s balance for client %d", req.BalanceType, req.ClientID)
			}
			return apperrors.Internalf(err, "fetching balance")
		}

		if balance.Amount.LessThan(req.TotalCost) {
			return apperrors.InsufficientBalance(req.TotalCost, balance.Amount)
		}

		result.BalanceBefore = balance.Amount
		result.BalanceAfter = balance.Amount.Sub(req.TotalCost)
		if result.BalanceAfter.IsNegative() {
			result.BalanceAfter = decimal.Zero
		}

		if err := q.UpdateBalanceAmount(logCtx, database.UpdateBalanceAmountParams{
			ID:     balance.ID,
			Amount: result.BalanceAfter,
		}); err != nil {
			return apperrors.Internalf(err, "updating balance")
		}

		result.MessageIDs = result.MessageIDs[:0]
		for _, m := range req.Messages {
			id, err := q.CreateMessage(logCtx, database.CreateMessageParams{
				ClientID:    req.ClientID,
				Phone:       m.Phone,
				Body:        m.Body,
				Status:      codes.MsgStatusPending,
				Operator:    m.Operator,
				Parts:       m.Parts,
				BalanceType: req.BalanceType,
				Cost:        m.Cost,
			})
			if err != nil {
				return apperrors.Internalf(err, "creating message for %s", m.Phone)
			}
			result.MessageIDs = append(result.MessageIDs, id)
		}

		if err := q.IncrementTemplateUsage(logCtx, req.TemplateID); err != nil {
			return apperrors.Internalf(err, "incrementing template usage")
		}

		// Exactly one transaction row per unit, batch or not.
		var msgID *int64
		if req.BatchRef == nil && len(result.MessageIDs) == 1 {
			msgID = &result.MessageIDs[0]
		}
		desc := fmt.Sprintf("SMS charge (%d message(s))", len(req.Messages))
		txID, err := q.CreateTransaction(logCtx, database.CreateTransactionParams{
			BalanceID:       balance.ID,
			MessageID:       msgID,
			BatchRef:        req.BatchRef,
			TransactionType: codes.TxTypeDebit,
			Amount:          req.TotalCost.Neg(),
			BalanceBefore:   result.BalanceBefore,
			BalanceAfter:    result.BalanceAfter,
			Description:     &desc,
		})
		if err != nil {
			return apperrors.Internalf(err, "creating ledger transaction")
		}
		result.TransactionID = txID
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(logCtx, "Billing unit committed",
		slog.Int("messages", len(result.MessageIDs)),
		slog.String("total_cost", req.TotalCost.String()),
		slog.String("balance_after", result.BalanceAfter.String()),
	)
	return result, nil
}
