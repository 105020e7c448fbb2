// Package notify delivers operator-facing notifications about sync
// failures. The default sink writes to the structured log; deployments
// can plug in their own transport.
package notify

import (
	"context"

	"github.com/edubridge/campusconnect/internal/platform/logger"
)

type Notifier interface {
	Notify(ctx context.Context, subject, message string) error
}

type logNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(baseLog *logger.Logger) Notifier {
	return &logNotifier{log: baseLog.With("service", "Notifier")}
}

func (n *logNotifier) Notify(_ context.Context, subject, message string) error {
	n.log.Warn("Admin notification", "subject", subject, "message", message)
	return nil
}
