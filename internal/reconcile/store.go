// Package reconcile keeps a client-held snapshot of one shopping list
// consistent with the authoritative server while hiding network latency.
// Mutations are applied optimistically, then reconciled against the server's
// canonical item on success or rolled back on failure.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Destaw-dev/listali-sub002/internal/model"
	"github.com/Destaw-dev/listali-sub002/internal/quantity"
)

// Transport executes mutations against the server. Implementations fail with
// a plain error on network or server trouble; the store translates it.
type Transport interface {
	FetchList(ctx context.Context, listID string) (*model.ShoppingList, []model.Item, error)
	PurchaseItem(ctx context.Context, itemID string, amount float64) (*model.Item, error)
	UnpurchaseItem(ctx context.Context, itemID string, amount float64) (*model.Item, error)
	BatchPurchase(ctx context.Context, listID string, itemIDs []string) error
	RestoreItems(ctx context.Context, listID string, entries []model.UndoEntry) error
}

type pendingMutation struct {
	version         uint64
	prevPurchased   float64
	prevStatus      quantity.Status
	prevPurchasedAt *time.Time
}

// Store holds the client snapshot of a single list.
type Store struct {
	mu        sync.Mutex
	transport Transport
	logger    *slog.Logger
	now       func() time.Time

	listID  string
	loaded  bool
	list    model.ShoppingList
	items   []model.Item
	version map[string]uint64
	pending map[string]pendingMutation
}

// NewStore creates a store for listID. Call Refresh before mutating.
func NewStore(listID string, transport Transport, logger *slog.Logger) *Store {
	return &Store{
		transport: transport,
		logger:    logger,
		now:       time.Now,
		listID:    listID,
		version:   make(map[string]uint64),
		pending:   make(map[string]pendingMutation),
	}
}

// ListID returns the id of the list this store tracks.
func (s *Store) ListID() string { return s.listID }

// Refresh replaces the snapshot with the server's canonical state. This is
// the named full-refetch operation: push events funnel into it instead of
// patching quantities, so unordered delivery cannot corrupt state. Items
// with an in-flight optimistic mutation keep their local values.
func (s *Store) Refresh(ctx context.Context) error {
	list, items, err := s.transport.FetchList(ctx, s.listID)
	if err != nil {
		return &TransportError{Op: "fetch list", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, it := range items {
		if _, ok := s.pending[it.ID]; !ok {
			continue
		}
		// Keep the optimistic copy until its own mutation resolves.
		if local, idx := s.find(it.ID); idx >= 0 {
			items[i] = *local
		}
	}

	s.list = *list
	s.items = items
	s.loaded = true
	s.recomputeAggregates()
	return nil
}

// List returns the list header with recomputed aggregate counts.
func (s *Store) List() model.ShoppingList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list
}

// Items returns a copy of the item snapshot.
func (s *Store) Items() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Item, len(s.items))
	copy(out, s.items)
	return out
}

// Item returns a copy of one item from the snapshot.
func (s *Store) Item(itemID string) (*model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, idx := s.find(itemID)
	if idx < 0 {
		return nil, false
	}
	cp := *it
	return &cp, true
}

// Purchase optimistically records amount as bought, then confirms with the
// server. An amount of zero uses the default policy: the remainder for a
// partially purchased item, the full quantity otherwise. A negative amount
// is rejected before any state change.
func (s *Store) Purchase(ctx context.Context, itemID string, amount float64) (*model.Item, error) {
	return s.mutate(ctx, itemID, amount, false)
}

// Unpurchase optimistically returns amount to the unbought pool. An amount
// of zero means the whole purchased quantity.
func (s *Store) Unpurchase(ctx context.Context, itemID string, amount float64) (*model.Item, error) {
	return s.mutate(ctx, itemID, amount, true)
}

func (s *Store) mutate(ctx context.Context, itemID string, amount float64, unpurchase bool) (*model.Item, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return nil, ErrNotLoaded
	}
	item, idx := s.find(itemID)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrItemNotFound
	}
	if quantity.Terminal(item.Status) {
		s.mu.Unlock()
		return nil, ErrItemTerminal
	}
	if _, ok := s.pending[itemID]; ok {
		s.mu.Unlock()
		return nil, ErrMutationPending
	}
	if amount < 0 {
		s.mu.Unlock()
		return nil, quantity.ErrInvalidAmount
	}

	var next float64
	var status quantity.Status
	if unpurchase {
		next, status = quantity.ApplyUnpurchase(item.TotalQuantity, item.PurchasedQuantity, amount)
	} else {
		if amount == 0 {
			amount = quantity.DefaultPurchaseAmount(item.TotalQuantity, item.PurchasedQuantity)
		}
		var err error
		next, status, err = quantity.ApplyPurchase(item.TotalQuantity, item.PurchasedQuantity, amount)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}

	s.version[itemID]++
	s.pending[itemID] = pendingMutation{
		version:         s.version[itemID],
		prevPurchased:   item.PurchasedQuantity,
		prevStatus:      item.Status,
		prevPurchasedAt: item.PurchasedAt,
	}
	s.applyLocal(item, next, status)
	s.mu.Unlock()

	op := "purchase"
	call := s.transport.PurchaseItem
	if unpurchase {
		op = "unpurchase"
		call = s.transport.UnpurchaseItem
	}
	canonical, err := call(ctx, itemID, amount)

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pending[itemID]
	delete(s.pending, itemID)

	if err != nil {
		s.rollback(itemID, p)
		s.recomputeAggregates()
		s.logger.Warn("mutation rolled back", "op", op, "item_id", itemID, "error", err)
		return nil, &TransportError{Op: op, Err: err}
	}

	s.adopt(itemID, p.version, canonical)
	s.recomputeAggregates()

	it, idx := s.find(itemID)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

// BatchPurchase sets every given item to fully purchased, optimistically,
// then confirms the whole batch with the server in one call. On failure all
// items roll back together; the batch is never left half-applied.
func (s *Store) BatchPurchase(ctx context.Context, itemIDs []string) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	for _, id := range itemIDs {
		if _, idx := s.find(id); idx < 0 {
			s.mu.Unlock()
			return ErrItemNotFound
		}
		if _, ok := s.pending[id]; ok {
			s.mu.Unlock()
			return ErrMutationPending
		}
	}

	for _, id := range itemIDs {
		item, _ := s.find(id)
		if quantity.Terminal(item.Status) || item.FullyPurchased() {
			continue
		}
		s.version[id]++
		s.pending[id] = pendingMutation{
			version:         s.version[id],
			prevPurchased:   item.PurchasedQuantity,
			prevStatus:      item.Status,
			prevPurchasedAt: item.PurchasedAt,
		}
		s.applyLocal(item, item.TotalQuantity, quantity.StatusPurchased)
	}
	s.recomputeAggregates()
	s.mu.Unlock()

	err := s.transport.BatchPurchase(ctx, s.listID, itemIDs)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range itemIDs {
		p, ok := s.pending[id]
		if !ok {
			continue
		}
		delete(s.pending, id)
		if err != nil {
			s.rollback(id, p)
		}
	}
	s.recomputeAggregates()
	if err != nil {
		s.logger.Warn("batch purchase rolled back", "list_id", s.listID, "error", err)
		return &TransportError{Op: "batch purchase", Err: err}
	}
	return nil
}

// Restore puts every entry's item back to its recorded pre-batch state.
// Used by batch undo; the same optimistic/rollback discipline applies.
func (s *Store) Restore(ctx context.Context, entries []model.UndoEntry) error {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return ErrNotLoaded
	}
	for _, e := range entries {
		if _, ok := s.pending[e.ItemID]; ok {
			s.mu.Unlock()
			return ErrMutationPending
		}
	}

	restored := make([]string, 0, len(entries))
	for _, e := range entries {
		item, idx := s.find(e.ItemID)
		if idx < 0 {
			// Peer deleted the item during the undo window; skip it.
			continue
		}
		s.version[e.ItemID]++
		s.pending[e.ItemID] = pendingMutation{
			version:         s.version[e.ItemID],
			prevPurchased:   item.PurchasedQuantity,
			prevStatus:      item.Status,
			prevPurchasedAt: item.PurchasedAt,
		}
		item.PurchasedQuantity = e.PurchasedQuantity
		item.Status = e.Status
		item.PurchasedAt = e.PurchasedAt
		restored = append(restored, e.ItemID)
	}
	s.recomputeAggregates()
	s.mu.Unlock()

	err := s.transport.RestoreItems(ctx, s.listID, entries)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range restored {
		p, ok := s.pending[id]
		if !ok {
			continue
		}
		delete(s.pending, id)
		if err != nil {
			s.rollback(id, p)
		}
	}
	s.recomputeAggregates()
	if err != nil {
		s.logger.Warn("restore rolled back", "list_id", s.listID, "error", err)
		return &TransportError{Op: "restore items", Err: err}
	}
	return nil
}

// PendingCount reports in-flight mutations, for tests and diagnostics.
func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// --- internals (callers hold s.mu) ---

func (s *Store) find(itemID string) (*model.Item, int) {
	for i := range s.items {
		if s.items[i].ID == itemID {
			return &s.items[i], i
		}
	}
	return nil, -1
}

// applyLocal patches purchased quantity and status, maintaining the
// purchasedAt transition: set on leaving fully-unpurchased, cleared at zero.
func (s *Store) applyLocal(item *model.Item, purchased float64, status quantity.Status) {
	if item.PurchasedQuantity <= 0 && purchased > 0 {
		now := s.now()
		item.PurchasedAt = &now
	}
	if purchased <= 0 {
		item.PurchasedAt = nil
	}
	item.PurchasedQuantity = purchased
	item.Status = status
}

func (s *Store) rollback(itemID string, p pendingMutation) {
	item, idx := s.find(itemID)
	if idx < 0 {
		return
	}
	if s.version[itemID] != p.version {
		// A newer mutation owns this item now; leave it alone.
		return
	}
	item.PurchasedQuantity = p.prevPurchased
	item.Status = p.prevStatus
	item.PurchasedAt = p.prevPurchasedAt
}

// adopt overwrites the fields the server is authoritative for, unless a
// newer local mutation has already moved the item past this response.
func (s *Store) adopt(itemID string, version uint64, canonical *model.Item) {
	if canonical == nil {
		return
	}
	item, idx := s.find(itemID)
	if idx < 0 {
		return
	}
	if s.version[itemID] != version {
		s.logger.Debug("stale reconcile skipped", "item_id", itemID)
		return
	}
	item.TotalQuantity = canonical.TotalQuantity
	item.PurchasedQuantity = canonical.PurchasedQuantity
	item.Status = canonical.Status
	item.PurchasedAt = canonical.PurchasedAt
	item.PurchasedBy = canonical.PurchasedBy
	item.UpdatedAt = canonical.UpdatedAt
}

// recomputeAggregates derives list counts purely from the item collection.
// Counters are never incremented in place, so they cannot drift.
func (s *Store) recomputeAggregates() {
	s.list.ItemsCount = len(s.items)
	completed := 0
	for i := range s.items {
		if s.items[i].Status == quantity.StatusPurchased {
			completed++
		}
	}
	s.list.CompletedItemsCount = completed
}
