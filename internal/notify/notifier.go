package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notifier stores a notification and pushes it to the recipient.
type Notifier struct {
	store *Store
	pub   Publisher
	log   *zap.SugaredLogger
}

// NewNotifier creates a Notifier that publishes through pub.
func NewNotifier(store *Store, pub Publisher, log *zap.SugaredLogger) *Notifier {
	return &Notifier{store: store, pub: pub, log: log}
}

// Store returns the underlying notification store.
func (n *Notifier) Store() *Store { return n.store }

// Notify creates and publishes a notification. Failures are logged, not
// returned.
func (n *Notifier) Notify(ctx context.Context, in Input) *Notification {
	created, err := n.store.Create(ctx, in)
	if err != nil {
		n.log.Errorw("create notification", "user", in.UserID, "kind", in.Kind, "error", err)
		return nil
	}
	if err := n.pub.Publish(ctx, created); err != nil {
		n.log.Warnw("publish notification", "user", in.UserID, "id", created.ID, "error", err)
	}
	return created
}
