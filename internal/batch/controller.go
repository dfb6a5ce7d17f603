// Package batch orchestrates "purchase all" and its bounded-time undo over
// either the server-backed or the offline store.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Destaw-dev/listali-sub002/internal/model"
	"github.com/Destaw-dev/listali-sub002/internal/quantity"
)

// UndoWindow is how long the undo action stays available after a batch.
const UndoWindow = 10 * time.Second

// State of the per-list-view batch session.
type State string

const (
	StateIdle       State = "idle"
	StateConfirming State = "confirming"
	StateApplying   State = "applying"
	StateUndoable   State = "undoable"
)

var (
	ErrNoUnpurchasedItems = errors.New("no unpurchased items")
	ErrWrongState         = errors.New("operation not valid in current state")
	ErrUndoExpired        = errors.New("undo window has expired")
)

// Target is the list the controller operates on. Both reconcile.Store (via a
// thin adapter) and guest.ListTarget satisfy it.
type Target interface {
	Items() []model.Item
	BatchPurchase(ctx context.Context, itemIDs []string) error
	Restore(ctx context.Context, entries []model.UndoEntry) error
}

// Controller drives idle → confirming → applying → undoable for one list
// view. One snapshot is owned per invocation; the undo consumes it at most
// once, and expiry discards it silently.
type Controller struct {
	mu     sync.Mutex
	target Target
	logger *slog.Logger
	window time.Duration

	state    State
	snapshot []model.UndoEntry
	affected int
	timer    *time.Timer

	// afterFunc is swapped in tests to fire expiry deterministically.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// NewController creates an idle controller with the default undo window.
func NewController(target Target, logger *slog.Logger) *Controller {
	return &Controller{
		target:    target,
		logger:    logger,
		window:    UndoWindow,
		state:     StateIdle,
		afterFunc: time.AfterFunc,
	}
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AffectedCount is the number of items the last batch changed, shown next to
// the undo action.
func (c *Controller) AffectedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.affected
}

// Begin moves idle → confirming when at least one item is unpurchased.
// With nothing to purchase it stays idle and reports ErrNoUnpurchasedItems.
func (c *Controller) Begin() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return 0, ErrWrongState
	}
	n := len(c.purchasable())
	if n == 0 {
		return 0, ErrNoUnpurchasedItems
	}
	c.state = StateConfirming
	return n, nil
}

// Cancel abandons the confirmation step.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConfirming {
		c.state = StateIdle
	}
}

// Confirm snapshots every not-fully-purchased item's state, purchases all of
// them, and opens the undo window. Already-purchased items are excluded from
// the snapshot: undo must not touch them.
func (c *Controller) Confirm(ctx context.Context) (int, error) {
	c.mu.Lock()
	if c.state != StateConfirming {
		c.mu.Unlock()
		return 0, ErrWrongState
	}
	targets := c.purchasable()
	if len(targets) == 0 {
		c.state = StateIdle
		c.mu.Unlock()
		return 0, ErrNoUnpurchasedItems
	}

	snapshot := make([]model.UndoEntry, 0, len(targets))
	ids := make([]string, 0, len(targets))
	for _, it := range targets {
		snapshot = append(snapshot, model.UndoEntry{
			ItemID:            it.ID,
			PurchasedQuantity: it.PurchasedQuantity,
			Status:            it.Status,
			PurchasedAt:       it.PurchasedAt,
		})
		ids = append(ids, it.ID)
	}
	c.state = StateApplying
	c.mu.Unlock()

	err := c.target.BatchPurchase(ctx, ids)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateIdle
		return 0, err
	}

	c.snapshot = snapshot
	c.affected = len(snapshot)
	c.state = StateUndoable
	c.timer = c.afterFunc(c.window, c.expire)
	return len(snapshot), nil
}

// Undo restores every snapshotted item to its exact pre-batch state: an
// item that was partially purchased before the batch returns to that partial
// state, not to zero. The snapshot is consumed whether or not it succeeds.
//
// If a collaborator mutated a snapshotted item inside the window, undo
// overwrites that concurrent change with the stale snapshot. This is
// accepted best-effort behavior; peers converge again on the next refetch.
func (c *Controller) Undo(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUndoable || c.snapshot == nil {
		c.mu.Unlock()
		return ErrUndoExpired
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	entries := c.snapshot
	c.snapshot = nil
	c.affected = 0
	c.state = StateIdle
	c.mu.Unlock()

	return c.target.Restore(ctx, entries)
}

// expire silently makes the batch permanent.
func (c *Controller) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateUndoable {
		return
	}
	c.snapshot = nil
	c.affected = 0
	c.timer = nil
	c.state = StateIdle
	c.logger.Debug("undo window expired")
}

// purchasable returns items that still have quantity to buy and are not in a
// terminal status. Caller holds c.mu.
func (c *Controller) purchasable() []model.Item {
	var out []model.Item
	for _, it := range c.target.Items() {
		if quantity.Terminal(it.Status) || it.FullyPurchased() {
			continue
		}
		out = append(out, it)
	}
	return out
}
