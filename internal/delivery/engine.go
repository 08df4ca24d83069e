package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/database"
	"github.com/abdulaziz119/UzSMSPanel-sub000/internal/logging"
	"github.com/abdulaziz119/UzSMSPanel-sub000/pkg/codes"
)

// Outcome discriminates what a push turned out to be.
type Outcome int

const (
	OutcomeUnparseable Outcome = iota
	OutcomePartial
	OutcomeFinalized
)

func (o Outcome) String() string {
	switch o {
	case OutcomePartial:
		return "partial"
	case OutcomeFinalized:
		return "finalized"
	default:
		return "unparseable"
	}
}

// Stager is the ephemeral keyed store for in-flight reconciliation state.
// *staging.Store satisfies it.
type Stager interface {
	Stage(ctx context.Context, providerMsgID, raw string, stagedAt time.Time) error
	Remove(ctx context.Context, providerMsgID string) (bool, error)
}

// Engine is the per-correlation-id delivery state machine:
// Unknown → PartialReceived → Finalized. It is the only component that
// mutates a message after creation.
type Engine struct {
	q     database.Querier
	stage Stager
	now   func() time.Time
}

func NewEngine(q database.Querier, stage Stager) *Engine {
	return &Engine{q: q, stage: stage, now: time.Now}
}

// HandlePush is the single entry point for raw delivery pushes off the
// gateway session. It never returns an error: a push that cannot be
// processed is logged and dropped so the session loop stays alive.
func (e *Engine) HandlePush(ctx context.Context, raw string) Outcome {
	report, err := ParseReport(raw)
	if err != nil {
		slog.WarnContext(ctx, "Dropping unparseable delivery push", slog.Any("error", err))
		return OutcomeUnparseable
	}

	logCtx := logging.ContextWithProviderMsgID(ctx, report.ID)

	if !report.IsFinal() {
		e.handlePartial(logCtx, report.ID, raw)
		return OutcomePartial
	}

	e.handleFinal(logCtx, report)
	return OutcomeFinalized
}

// handlePartial stages an id-only push. pending_since is stamped only on
// first sight; restaging just refreshes the entry and its TTL. A partial for
// a correlation id we have no message row for yet is still staged: the push
// may simply have outrun the submit acknowledgment write.
func (e *Engine) handlePartial(ctx context.Context, providerMsgID, raw string) {
	now := e.now().UTC()

	if _, err := e.q.GetMessageByProviderID(ctx, providerMsgID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.WarnContext(ctx, "Partial delivery push for unknown correlation id")
		} else {
			slog.ErrorContext(ctx, "Failed to look up message for partial push", slog.Any("error", err))
		}
	}

	if err := e.q.SetMessagePendingSince(ctx, database.SetMessagePendingSinceParams{
		ProviderMessageID: providerMsgID,
		PendingSince:      now,
	}); err != nil {
		slog.ErrorContext(ctx, "Failed to stamp pending_since", slog.Any("error", err))
	}

	if err := e.stage.Stage(ctx, providerMsgID, raw, now); err != nil {
		slog.ErrorContext(ctx, "Failed to stage partial delivery push", slog.Any("error", err))
		return
	}
	slog.DebugContext(ctx, "Partial delivery push staged")
}

// handleFinal persists the report permanently and clears staging.
// Re-delivered full reports overwrite status and report but keep the
// timestamp of the first receipt.
func (e *Engine) handleFinal(ctx context.Context, report Report) {
	now := e.now().UTC()

	msg, err := e.q.GetMessageByProviderID(ctx, report.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.WarnContext(ctx, "Dropping final report for unknown correlation id")
		} else {
			slog.ErrorContext(ctx, "Failed to look up message for final report", slog.Any("error", err))
		}
		return
	}

	receivedAt := now
	if msg.ResponseReceivedAt != nil {
		receivedAt = *msg.ResponseReceivedAt
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode delivery report", slog.Any("error", err))
		return
	}

	if err := e.q.FinalizeMessageDelivery(ctx, database.FinalizeMessageDeliveryParams{
		ProviderMessageID:  report.ID,
		Status:             codes.MessageStatusForReport(report.FinalStatus),
		DeliveryReport:     reportJSON,
		ResponseReceivedAt: receivedAt,
	}); err != nil {
		slog.ErrorContext(ctx, "Failed to persist final delivery report", slog.Any("error", err))
		return
	}

	removed, err := e.stage.Remove(ctx, report.ID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to remove staged entry", slog.Any("error", err))
		return
	}
	if removed {
		if err := e.q.SetMessageStagingRemoved(ctx, database.SetMessageStagingRemovedParams{
			ProviderMessageID: report.ID,
			StagingRemovedAt:  now,
		}); err != nil {
			slog.ErrorContext(ctx, "Failed to record staging removal time", slog.Any("error", err))
		}
	}

	slog.InfoContext(ctx, "Delivery report finalized",
		slog.String("final_status", report.FinalStatus),
		slog.Bool("had_staged_entry", removed),
	)
}
