package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/billing"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/database"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/gateway"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/logging"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/notification"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/tariff"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/apperrors"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/codes"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/segmenter"
)

// Ledger is the billing unit executor. *billing.Ledger satisfies it.
type Ledger interface {
	Charge(ctx context.Context, req billing.ChargeRequest) (*billing.ChargeResult, error)
	Refund(ctx context.Context, messageID int64, reason string) error
}

// Submitter is the outbound gateway surface. *gateway.SessionManager
// satisfies it.
type Submitter interface {
	Submit(ctx context.Context, req gateway.SubmitRequest) (string, error)
}

// Resolver maps raw phones to tariffs. *tariff.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, rawPhone string) (*tariff.Resolution, error)
}

// Handler validates a send request, computes cost and drives the atomic
// billing unit, then submits the billed messages on the gateway session.
type Handler struct {
	q                   database.Querier
	resolver            Resolver
	ledger              Ledger
	gateway             Submitter
	segmenter           segmenter.Segmenter
	notifier            notification.Notifier
	lowBalanceThreshold decimal.Decimal
}

func NewHandler(
	q database.Querier,
	resolver Resolver,
	ledger Ledger,
	gw Submitter,
	seg segmenter.Segmenter,
	notifier notification.Notifier,
	lowBalanceThreshold decimal.Decimal,
) *Handler {
	return &Handler{
		q:                   q,
		resolver:            resolver,
		ledger:              ledger,
		gateway:             gw,
		segmenter:           seg,
		notifier:            notifier,
		lowBalanceThreshold: lowBalanceThreshold,
	}
}

// HandleContact processes a per-contact job. Validation happens strictly
// before the billing unit starts; once the unit commits, transport failures
// are recorded on the message itself, not returned to the caller.
func (h *Handler) HandleContact(ctx context.Context, job ContactJob) error {
	logCtx := logging.ContextWithClientID(ctx, job.ClientID)
	logCtx = logging.ContextWithJobID(logCtx, job.JobID)

	template, err := h.lookupTemplate(logCtx, job.ClientID, job.MessageBody)
	if err != nil {
		return err
	}

	res, err := h.resolver.Resolve(logCtx, job.Phone)
	if err != nil {
		return err
	}

	parts, _ := h.segmenter.CountParts(job.MessageBody)
	cost := res.Tariff.UnitPrice.Mul(decimal.NewFromInt(int64(parts)))

	chargeRes, err := h.ledger.Charge(logCtx, billing.ChargeRequest{
		ClientID:    job.ClientID,
		BalanceType: job.BalanceType,
		TemplateID:  template.ID,
		TotalCost:   cost,
		Messages: []billing.NewMessage{{
			Phone:    res.E164,
			Body:     job.MessageBody,
			Operator: res.Tariff.Operator,
			Parts:    int32(parts),
			Cost:     cost,
		}},
	})
	if err != nil {
		return err
	}

	h.submitBilled(logCtx, chargeRes.MessageIDs[0], res.E164, job.MessageBody)
	h.checkLowBalance(logCtx, job.ClientID, job.BalanceType, chargeRes.BalanceAfter)
	return nil
}

// HandleGroup processes a per-group job. Members failing validation or
// tariff resolution are silently excluded; the surviving set is billed as
// one bulk unit with a single aggregated transaction.
func (h *Handler) HandleGroup(ctx context.Context, job GroupJob) error {
	logCtx := logging.ContextWithClientID(ctx, job.ClientID)
	logCtx = logging.ContextWithGroupID(logCtx, job.GroupID)
	logCtx = logging.ContextWithJobID(logCtx, job.JobID)

	template, err := h.lookupTemplate(logCtx, job.ClientID, job.MessageBody)
	if err != nil {
		return err
	}

	if _, err := h.q.GetGroup(logCtx, database.GetGroupParams{ID: job.GroupID, ClientID: job.ClientID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFoundf(apperrors.CodeGroupNotFound,
				"group %d not found for client %d", job.GroupID, job.ClientID)
		}
		return apperrors.Internalf(err, "fetching group")
	}

	contacts, err := h.q.ListActiveGroupContacts(logCtx, job.GroupID)
	if err != nil {
		return apperrors.Internalf(err, "listing group contacts")
	}

	parts, _ := h.segmenter.CountParts(job.MessageBody)

	var messages []billing.NewMessage
	total := decimal.Zero
	for _, contact := range contacts {
		res, err := h.resolver.Resolve(logCtx, contact.Phone)
		if err != nil {
			// Members without a resolvable tariff are excluded, not fatal.
			slog.DebugContext(logCtx, "Excluding group member",
				slog.String("phone", contact.Phone), slog.Any("reason", err))
			continue
		}
		cost := res.Tariff.UnitPrice.Mul(decimal.NewFromInt(int64(parts)))
		messages = append(messages, billing.NewMessage{
			Phone:    res.E164,
			Body:     job.MessageBody,
			Operator: res.Tariff.Operator,
			Parts:    int32(parts),
			Cost:     cost,
		})
		total = total.Add(cost)
	}

	if len(messages) == 0 {
		return apperrors.Validationf(apperrors.CodeEmptyGroup,
			"group %d has no members with valid numbers and tariffs", job.GroupID)
	}

	batchRef := uuid.NewString()
	chargeRes, err := h.ledger.Charge(logCtx, billing.ChargeRequest{
		ClientID:    job.ClientID,
		BalanceType: job.BalanceType,
		TemplateID:  template.ID,
		TotalCost:   total,
		BatchRef:    &batchRef,
		Messages:    messages,
	})
	if err != nil {
		return err
	}

	slog.InfoContext(logCtx, "Group batch billed",
		slog.Int("members", len(contacts)),
		slog.Int("billed", len(messages)),
		slog.String("batch_ref", batchRef),
	)

	for i, id := range chargeRes.MessageIDs {
		h.submitBilled(logCtx, id, messages[i].Phone, job.MessageBody)
	}
	h.checkLowBalance(logCtx, job.ClientID, job.BalanceType, chargeRes.BalanceAfter)
	return nil
}

// lookupTemplate enforces the template precondition: an approved, active
// template whose content exactly equals the requested body.
func (h *Handler) lookupTemplate(ctx context.Context, clientID int64, body string) (database.Template, error) {
	template, err := h.q.GetActiveTemplateByContent(ctx, database.GetActiveTemplateByContentParams{
		ClientID: clientID,
		Content:  body,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Template{}, apperrors.NotFoundf(apperrors.CodeTemplateNotFound,
				"no approved active template matches the message body")
		}
		return database.Template{}, apperrors.Internalf(err, "template lookup")
	}
	return template, nil
}

// submitBilled sends one already-billed message on the gateway session and
// records the outcome on the message row. A definitive gateway rejection
// refunds the debit; a timeout does not, since the submit outcome is
// ambiguous, and is never recorded as sent.
func (h *Handler) submitBilled(ctx context.Context, messageID int64, phone, body string) {
	logCtx := logging.ContextWithMessageID(ctx, messageID)

	providerMsgID, err := h.gateway.Submit(logCtx, gateway.SubmitRequest{
		MessageID: messageID,
		Phone:     phone,
		Body:      body,
	})
	if err == nil {
		if dbErr := h.q.MarkMessageSent(logCtx, database.MarkMessageSentParams{
			ID:                messageID,
			ProviderMessageID: providerMsgID,
		}); dbErr != nil {
			slog.ErrorContext(logCtx, "CRITICAL: gateway accepted message but recording failed",
				slog.String("provider_msg_id", providerMsgID), slog.Any("error", dbErr))
		}
		return
	}

	errCode := codes.ErrorCodeSystemError
	refund := false
	switch apperrors.CodeOf(err) {
	case apperrors.CodeSubmitTimeout:
		errCode = codes.ErrorCodeGatewayTimeout
	case apperrors.CodeSubmitRejected:
		errCode = apperrors.CodeOf(err)
		refund = true
	case codes.ErrorCodeGatewayWindowFull:
		// Never reached the gateway, so the debit is safe to reverse.
		errCode = codes.ErrorCodeGatewayWindowFull
		refund = true
	case apperrors.CodeBindFailed:
		errCode = codes.ErrorCodeGatewayNotBound
	}

	slog.WarnContext(logCtx, "Gateway submit failed", slog.Any("error", err), slog.String("error_code", errCode))
	if dbErr := h.q.MarkMessageSendFailed(logCtx, database.MarkMessageSendFailedParams{
		ID:        messageID,
		ErrorCode: errCode,
	}); dbErr != nil {
		slog.ErrorContext(logCtx, "Failed to mark message send failure", slog.Any("error", dbErr))
	}

	if refund {
		if rErr := h.ledger.Refund(logCtx, messageID, fmt.Sprintf("gateway rejected submit: %v", err)); rErr != nil {
			slog.ErrorContext(logCtx, "Failed to refund rejected message", slog.Any("error", rErr))
		}
	}
}

// ResetForResend clears a message's delivery state back to pending, the one
// sanctioned backward status transition. The caller re-enqueues the actual
// send as a fresh job.
func (h *Handler) ResetForResend(ctx context.Context, messageID int64) error {
	logCtx := logging.ContextWithMessageID(ctx, messageID)
	if err := h.q.ResetMessageForResend(logCtx, messageID); err != nil {
		return apperrors.Internalf(err, "resetting message for resend")
	}
	slog.InfoContext(logCtx, "Message reset for resend")
	return nil
}

// checkLowBalance alerts once a charge drops the wallet under the
// configured threshold.
func (h *Handler) checkLowBalance(ctx context.Context, clientID int64, balanceType string, after decimal.Decimal) {
	if h.notifier == nil || after.GreaterThanOrEqual(h.lowBalanceThreshold) {
		return
	}
	subject := fmt.Sprintf("Low balance alert - %s wallet", balanceType)
	body := fmt.Sprintf("Client %d %s balance dropped to %s (threshold %s). Please top up.",
		clientID, balanceType, after, h.lowBalanceThreshold)
	if err := h.notifier.Send(ctx, fmt.Sprintf("client:%d", clientID), subject, body); err != nil {
		slog.WarnContext(ctx, "Failed to send low balance notification", slog.Any("error", err))
	}
}
