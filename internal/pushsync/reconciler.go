// Package pushsync consumes peer-originated sync events and keeps the local
// list snapshot fresh. Events are treated purely as invalidation signals:
// the reconciler refetches canonical state instead of applying the event's
// payload, so at-least-once, unordered delivery cannot corrupt anything.
package pushsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Destaw-dev/listali-sub002/internal/model"
)

// Refresher is the named invalidate-and-refetch operation, usually a
// reconcile.Store.
type Refresher interface {
	ListID() string
	Refresh(ctx context.Context) error
}

// Notifier surfaces a human-readable notification; the reconciler only
// decides whether and with what parameters to call it.
type Notifier interface {
	Notify(kind, messageKey string, params map[string]any)
}

// Reconciler reacts to sync events for the list the current view displays.
type Reconciler struct {
	userID    int64
	refresher Refresher
	notifier  Notifier
	logger    *slog.Logger
}

// NewReconciler creates a reconciler for the current user.
func NewReconciler(userID int64, refresher Refresher, notifier Notifier, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		userID:    userID,
		refresher: refresher,
		notifier:  notifier,
		logger:    logger,
	}
}

// Handle processes one event. Events for other lists are dropped. Events the
// current user caused refresh silently: the acting client already showed the
// change optimistically, so a toast would be noise.
func (r *Reconciler) Handle(ctx context.Context, ev model.Event) error {
	if ev.ListID != r.refresher.ListID() {
		r.logger.Debug("event for other list dropped", "type", ev.Type, "list_id", ev.ListID)
		return nil
	}

	kind, messageKey, ok := describe(ev)
	if !ok {
		r.logger.Debug("unknown event type ignored", "type", ev.Type)
		return nil
	}

	// Invalidate and refetch. A stale event (item already gone, mutation
	// already reflected) reconciles itself here; absence is not an error.
	if err := r.refresher.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh on %s event: %w", ev.Type, err)
	}

	if ev.ActorID == r.userID {
		return nil
	}

	if r.notifier != nil {
		r.notifier.Notify(kind, messageKey, params(ev))
	}
	return nil
}

func describe(ev model.Event) (kind, messageKey string, ok bool) {
	switch ev.Type {
	case model.EventPurchase:
		return model.NotifKindItemPurchased, "list.item_purchased", true
	case model.EventUnpurchase:
		return model.NotifKindItemUnpurchased, "list.item_unpurchased", true
	case model.EventBatchPurchase:
		return model.NotifKindBatchPurchased, "list.batch_purchased", true
	case model.EventBatchUnpurchase:
		return model.NotifKindBatchPurchased, "list.batch_unpurchased", true
	case model.EventListUpdated:
		return model.NotifKindListUpdated, "list.updated", true
	default:
		return "", "", false
	}
}

// params builds the display parameters from the event payload. This is the
// only use the payload gets: quantities shown to the user, never applied to
// state.
func params(ev model.Event) map[string]any {
	p := map[string]any{
		"actor": ev.ActorName,
	}
	if ev.ItemName != "" {
		p["item"] = ev.ItemName
	}
	if ev.Quantity > 0 {
		p["quantity"] = ev.Quantity
	}
	if len(ev.ItemIDs) > 0 {
		p["count"] = len(ev.ItemIDs)
	}
	return p
}
