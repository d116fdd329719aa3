// Package notify provides progress notifier implementations. The log
// notifier is the default transport; a push channel can replace it
// without touching the services.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/veckopay/verification/internal/application/port"
)

// LogNotifier emits progress snapshots to the structured log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed progress notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("progress")}
}

// Notify logs the snapshot
func (n *LogNotifier) Notify(_ context.Context, p port.Progress) {
	n.logger.Info("Verification progress",
		zap.String("session_id", p.SessionID),
		zap.String("batch_id", p.BatchID),
		zap.Int("verified", p.Verified),
		zap.Int("total", p.Total),
		zap.Int("completion", p.Completion),
		zap.String("status", p.Status.String()),
	)
}
