package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	ClientIDKey      contextKey = "client_id"
	MessageIDKey     contextKey = "msg_id"
	ProviderMsgIDKey contextKey = "provider_msg_id"
	GroupIDKey       contextKey = "group_id"
	JobIDKey         contextKey = "job_id"
	PhoneKey         contextKey = "phone"
	BalanceTypeKey   contextKey = "balance_type"
	WorkerIDKey      contextKey = "worker_id"
	SeqNumberKey     contextKey = "seq_num"
)

// ContextHandler wraps another slog.Handler and adds attributes from context.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler creates a handler that extracts values from context.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

// Handle adds context attributes before calling the wrapped handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if clientID, ok := ctx.Value(ClientIDKey).(int64); ok {
		r.AddAttrs(slog.Int64("client_id", clientID))
	}
	if msgID, ok := ctx.Value(MessageIDKey).(int64); ok {
		r.AddAttrs(slog.Int64("msg_id", msgID))
	}
	if providerMsgID, ok := ctx.Value(ProviderMsgIDKey).(string); ok {
		r.AddAttrs(slog.String("provider_msg_id", providerMsgID))
	}
	if groupID, ok := ctx.Value(GroupIDKey).(int64); ok {
		r.AddAttrs(slog.Int64("group_id", groupID))
	}
	if jobID, ok := ctx.Value(JobIDKey).(string); ok {
		r.AddAttrs(slog.String("job_id", jobID))
	}
	if phone, ok := ctx.Value(PhoneKey).(string); ok {
		r.AddAttrs(slog.String("phone", phone))
	}
	if balanceType, ok := ctx.Value(BalanceTypeKey).(string); ok {
		r.AddAttrs(slog.String("balance_type", balanceType))
	}
	if workerID, ok := ctx.Value(WorkerIDKey).(string); ok {
		r.AddAttrs(slog.String("worker_id", workerID))
	}
	if seq, ok := ctx.Value(SeqNumberKey).(int32); ok {
		r.AddAttrs(slog.Int("seq_num", int(seq)))
	}

	return h.Handler.Handle(ctx, r)
}

func ContextWithClientID(ctx context.Context, clientID int64) context.Context {
	return context.WithValue(ctx, ClientIDKey, clientID)
}

func ContextWithMessageID(ctx context.Context, msgID int64) context.Context {
	return context.WithValue(ctx, MessageIDKey, msgID)
}

func ContextWithProviderMsgID(ctx context.Context, providerMsgID string) context.Context {
	return context.WithValue(ctx, ProviderMsgIDKey, providerMsgID)
}

func ContextWithGroupID(ctx context.Context, groupID int64) context.Context {
	return context.WithValue(ctx, GroupIDKey, groupID)
}

func ContextWithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

func ContextWithPhone(ctx context.Context, phone string) context.Context {
	return context.WithValue(ctx, PhoneKey, phone)
}

func ContextWithBalanceType(ctx context.Context, balanceType string) context.Context {
	return context.WithValue(ctx, BalanceTypeKey, balanceType)
}

func ContextWithWorkerID(ctx context.Context, workerID string) context.Context {
	return context.WithValue(ctx, WorkerIDKey, workerID)
}

func ContextWithSeqNumber(ctx context.Context, seq int32) context.Context {
	return context.WithValue(ctx, SeqNumberKey, seq)
}
