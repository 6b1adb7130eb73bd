// Package notification delivers user-facing messages such as OTP emails.
package notification

import (
	"context"
	"log/slog"

	"github.com/polo-core/polo_core/internal/logging"
)

const (
	// KindOTPChallenge carries a one-time login code.
	KindOTPChallenge = "otp_challenge"
	// KindPaymentSent confirms a submitted payment to the sender.
	KindPaymentSent = "payment_sent"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Subject     string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger in place of
// an email provider. Bodies are only logged when revealBody is set, which
// is meant for local development.
type LoggerNotifier struct {
	logger     *slog.Logger
	revealBody bool
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger, revealBody bool) *LoggerNotifier {
	return &LoggerNotifier{logger: logger, revealBody: revealBody}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("kind", message.Kind),
		logging.Key("destination", message.Destination),
		slog.String("subject", message.Subject),
	}
	if n.revealBody {
		attrs = append(attrs, slog.String("body", message.Body))
	}
	n.logger.Info("notification", attrs...)
	return nil
}
