package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/database"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/logging"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/apperrors"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/codes"
)

// Refund credits back the debit linked to a message after the gateway
// definitively rejected its submit. The original debit row stays untouched;
// the credit is recorded as its own reversal transaction. Timeouts are
// deliberately not refunded here: the submit outcome is ambiguous.
func (l *Ledger) Refund(ctx context.Context, messageID int64, reason string) error {
	logCtx := logging.ContextWithMessageID(ctx, messageID)
	slog.InfoContext(logCtx, "Refunding message debit", slog.String("reason", reason))

	return l.store.WithTx(logCtx, func(q database.Querier) error {
		debit, err := q.FindDebitTransactionForMessage(logCtx, messageID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFoundf(apperrors.CodeDebitNotFound,
					"no debit transaction for message %d", messageID)
			}
			return apperrors.Internalf(err, "finding debit transaction")
		}

		amount := debit.Amount.Neg() // stored signed, so the credit is its negation
		if amount.IsNegative() {
			return apperrors.Internalf(nil,
				"debit amount %s for transaction %d is not refundable", debit.Amount, debit.ID)
		}
		if amount.IsZero() {
			// Zero-cost debit: nothing to credit back.
			slog.InfoContext(logCtx, "Skipping refund of zero-amount debit")
			return nil
		}

		balance, err := q.GetBalanceForUpdateByID(logCtx, debit.BalanceID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFoundf(apperrors.CodeBalanceNotFound,
					"balance %d not found for refund", debit.BalanceID)
			}
			return apperrors.Internalf(err, "fetching balance for refund")
		}

		before := balance.Amount
		after := before.Add(amount)

		if err := q.UpdateBalanceAmount(logCtx, database.UpdateBalanceAmountParams{
			ID:     balance.ID,
			Amount: after,
		}); err != nil {
			return apperrors.Internalf(err, "crediting balance")
		}

		desc := fmt.Sprintf("Reversal: %s", reason)
		if _, err := q.CreateTransaction(logCtx, database.CreateTransactionParams{
			BalanceID:       balance.ID,
			MessageID:       &messageID,
			TransactionType: codes.TxTypeReversal,
			Amount:          amount,
			BalanceBefore:   before,
			BalanceAfter:    after,
			Description:     &desc,
		}); err != nil {
			return apperrors.Internalf(err, "creating reversal transaction")
		}
		return nil
	})
}
