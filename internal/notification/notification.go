package notification

import (
	"context"
	"log/slog"
)

const (
	// KindAccountLocked is sent when repeated failures lock an account.
	KindAccountLocked = "account_locked"
)

// Message describes a security notification for an account holder.
type Message struct {
	Kind          string
	AccountNumber string
	Body          string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger until a real
// delivery channel (SMS, email) is configured.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification",
		slog.String("kind", message.Kind),
		slog.String("account_number", message.AccountNumber),
		slog.String("body", message.Body),
	)
	return nil
}
