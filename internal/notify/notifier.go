package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"kimchi/internal/model"
)

const (
	Title = "Kimchi premium update"

	deliverTimeout = 5 * time.Second
)

// Delivery is the platform collaborator that shows notifications.
type Delivery interface {
	RequestPermission(ctx context.Context) (bool, error)
	Deliver(ctx context.Context, title, body string) error
}

type permission int32

const (
	permissionUnknown permission = iota
	permissionGranted
	permissionDenied
)

// Notifier turns computed premiums into immediate notifications.
// Without a granted permission every call is a no-op.
type Notifier struct {
	logger   *slog.Logger
	delivery Delivery

	once  sync.Once
	state atomic.Int32
}

// NewNotifier creates a Notifier; call RequestPermission before expecting deliveries.
func NewNotifier(logger *slog.Logger, delivery Delivery) *Notifier {
	return &Notifier{logger: logger, delivery: delivery}
}

// RequestPermission asks the platform once. Errors count as a denial.
func (n *Notifier) RequestPermission(ctx context.Context) bool {
	n.once.Do(func() {
		granted, err := n.delivery.RequestPermission(ctx)
		switch {
		case err != nil:
			n.logger.Warn("Notification permission request failed", "error", err)
			n.state.Store(int32(permissionDenied))
		case !granted:
			n.logger.Warn("Notification permission denied; notifications disabled")
			n.state.Store(int32(permissionDenied))
		default:
			n.state.Store(int32(permissionGranted))
		}
	})
	return n.Enabled()
}

// Enabled reports whether permission was granted.
func (n *Notifier) Enabled() bool {
	return permission(n.state.Load()) == permissionGranted
}

// Message builds the notification body for a premium.
func Message(p model.PremiumResult) string {
	return fmt.Sprintf("The current kimchi premium is %s%%.", p.Display)
}

// Notify delivers the premium right away. It does nothing without permission.
func (n *Notifier) Notify(ctx context.Context, p model.PremiumResult) error {
	if !n.Enabled() {
		return nil
	}
	if err := n.delivery.Deliver(ctx, Title, Message(p)); err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	return nil
}

// Listener adapts the notifier to engine snapshots: every fresh result is notified.
func (n *Notifier) Listener() func(model.CycleState) {
	return func(s model.CycleState) {
		if !s.Fresh() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
		defer cancel()
		if err := n.Notify(ctx, *s.Premium); err != nil {
			n.logger.Error("Failed to send notification", "generation", s.Generation, "error", err)
		}
	}
}
