package notify

import (
	"context"
	"log/slog"
)

// LogDelivery writes notifications to the log. Permission is always granted.
type LogDelivery struct {
	logger *slog.Logger
}

func NewLogDelivery(logger *slog.Logger) *LogDelivery {
	return &LogDelivery{logger: logger}
}

func (l *LogDelivery) RequestPermission(ctx context.Context) (bool, error) {
	return true, nil
}

func (l *LogDelivery) Deliver(ctx context.Context, title, body string) error {
	l.logger.InfoContext(ctx, "Notification", "title", title, "body", body)
	return nil
}
