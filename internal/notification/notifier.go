package notification

import (
	"context"
	"log/slog"
)

// Notifier delivers out-of-band alerts such as low-balance warnings.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogNotifier writes notifications to the structured log. Swap in an
// email or webhook implementation for real delivery.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	slog.InfoContext(ctx, "NOTIFICATION",
		slog.String("recipient", recipient),
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

var _ Notifier = (*LogNotifier)(nil)
