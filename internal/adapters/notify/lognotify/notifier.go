// Package lognotify emits notifications to the structured log. It is the
// default sink for deployments with no delivery channel configured.
package lognotify

import (
	"context"
	"log/slog"

	"github.com/failsift/failsift/internal/core/ports"
	"github.com/failsift/failsift/internal/logging"
)

// Notifier logs every notification at info level.
type Notifier struct {
	logger *slog.Logger
}

// New creates a log notifier. A nil logger uses the process default.
func New(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = logging.New("notify")
	}
	return &Notifier{logger: logger}
}

// Send logs the notification. It never fails.
func (n *Notifier) Send(ctx context.Context, subject, body string) error {
	n.logger.Info("notification",
		slog.String("subject", subject),
		slog.String("body", body),
	)
	return nil
}

// Ensure Notifier implements the interface.
var _ ports.Notifier = (*Notifier)(nil)
