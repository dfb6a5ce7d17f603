// Package guest implements the offline shopping-list store. Lists live
// entirely on the device: the local mutation is the authoritative state, so
// there is no rollback path, but the purchase-quantity semantics are the
// same ones the server-backed store enforces.
package guest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Destaw-dev/listali-sub002/internal/dedup"
	"github.com/Destaw-dev/listali-sub002/internal/model"
	"github.com/Destaw-dev/listali-sub002/internal/quantity"
)

var (
	ErrListNotFound = errors.New("guest list not found")
	ErrItemNotFound = errors.New("guest item not found")
	ErrItemTerminal = errors.New("item is cancelled or not available")

	// Resource-policy invariants of the offline store, not of the quantity
	// machine: hard caps reject the mutation before any state change.
	ErrListLimit = errors.New("guest list limit reached")
	ErrItemLimit = errors.New("guest item limit reached")
)

// Limits holds the resource caps for a guest device.
type Limits struct {
	MaxLists        int
	MaxItemsPerList int
	// WarnFraction of a cap (or of storage capacity) at which a soft
	// warning is surfaced, e.g. 0.8.
	WarnFraction float64
}

// DefaultLimits returns the shipped caps.
func DefaultLimits() Limits {
	return Limits{MaxLists: 25, MaxItemsPerList: 200, WarnFraction: 0.8}
}

// Notifier surfaces soft warnings to the UI layer. The store only decides
// whether and with what parameters to call it.
type Notifier interface {
	Notify(kind, messageKey string, params map[string]any)
}

// ItemInput is the user-entered data for a new guest item.
type ItemInput struct {
	Name       string
	Unit       string
	Brand      string
	Notes      string
	CategoryID string
	Priority   model.Priority
	ProductRef string
	Quantity   float64
}

type collection struct {
	Lists []model.GuestList `json:"lists"`
}

// Store manages the device's guest lists, persisting every mutation
// synchronously with the in-memory update.
type Store struct {
	storage  Storage
	notifier Notifier
	logger   *slog.Logger
	limits   Limits
	now      func() time.Time
	newID    func() string

	lists         []model.GuestList
	storageWarned bool
}

// NewStore loads the persisted guest collection.
func NewStore(storage Storage, notifier Notifier, limits Limits, logger *slog.Logger) (*Store, error) {
	s := &Store{
		storage:  storage,
		notifier: notifier,
		logger:   logger,
		limits:   limits,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
	data, err := s.storage.Read()
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		var c collection
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("decode guest collection: %w", err)
		}
		s.lists = c.Lists
	}
	return s, nil
}

// Lists returns a deep copy of all guest lists.
func (s *Store) Lists() []model.GuestList {
	return cloneLists(s.lists)
}

// List returns a deep copy of one list.
func (s *Store) List(listID string) (*model.GuestList, bool) {
	l, _ := findList(s.lists, listID)
	if l == nil {
		return nil, false
	}
	cp := cloneLists([]model.GuestList{*l})[0]
	return &cp, true
}

// CreateList adds an empty list, enforcing the device list cap.
func (s *Store) CreateList(name string) (*model.GuestList, error) {
	if s.limits.MaxLists > 0 && len(s.lists) >= s.limits.MaxLists {
		return nil, ErrListLimit
	}

	next := cloneLists(s.lists)
	now := s.now()
	list := model.GuestList{
		ID:        s.newID(),
		Name:      name,
		Items:     []model.GuestItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	next = append(next, list)
	if err := s.commit(next); err != nil {
		return nil, err
	}

	s.warnIfNear("guest.list_limit_warning", len(s.lists), s.limits.MaxLists)
	cp := list
	return &cp, nil
}

// DeleteList removes a list and its items.
func (s *Store) DeleteList(listID string) error {
	next := cloneLists(s.lists)
	idx := -1
	for i := range next {
		if next[i].ID == listID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrListNotFound
	}
	next = append(next[:idx], next[idx+1:]...)
	return s.commit(next)
}

// AddItem inserts a new item unless it duplicates an existing one. On a
// duplicate it returns the match with no mutation; the caller decides via
// ResolveDuplicate. Silent auto-merge is disallowed.
func (s *Store) AddItem(listID string, in ItemInput) (*model.GuestItem, *dedup.Match, error) {
	list, _ := findList(s.lists, listID)
	if list == nil {
		return nil, nil, ErrListNotFound
	}
	if in.Quantity <= 0 {
		return nil, nil, quantity.ErrInvalidAmount
	}

	if m := dedup.FindMatch(candidate(in), entries(list.Items)); m != nil {
		return nil, m, nil
	}
	it, err := s.insertItem(listID, in)
	return it, nil, err
}

// ResolveDuplicate applies the caller's decision for a match previously
// returned by AddItem.
func (s *Store) ResolveDuplicate(listID string, in ItemInput, m *dedup.Match, res dedup.Resolution) (*model.GuestItem, error) {
	switch res {
	case dedup.Cancel:
		return nil, nil
	case dedup.KeepBoth:
		return s.insertItem(listID, in)
	case dedup.Merge:
		next := cloneLists(s.lists)
		list, _ := findList(next, listID)
		if list == nil {
			return nil, ErrListNotFound
		}
		item := findItem(list, m.ExistingID)
		if item == nil {
			return nil, ErrItemNotFound
		}
		item.TotalQuantity = m.MergedQuantity
		// A fully purchased item may drop back to partial when its
		// requested total grows.
		item.Status = quantity.DeriveStatus(item.TotalQuantity, item.PurchasedQuantity)
		list.UpdatedAt = s.now()
		if err := s.commit(next); err != nil {
			return nil, err
		}
		cp := *item
		return &cp, nil
	default:
		return nil, fmt.Errorf("unknown resolution %q", res)
	}
}

func (s *Store) insertItem(listID string, in ItemInput) (*model.GuestItem, error) {
	list, _ := findList(s.lists, listID)
	if list == nil {
		return nil, ErrListNotFound
	}
	if s.limits.MaxItemsPerList > 0 && len(list.Items) >= s.limits.MaxItemsPerList {
		return nil, ErrItemLimit
	}
	if in.Quantity <= 0 {
		return nil, quantity.ErrInvalidAmount
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}

	next := cloneLists(s.lists)
	nl, _ := findList(next, listID)
	item := model.GuestItem{
		ID:            s.newID(),
		Name:          in.Name,
		Unit:          in.Unit,
		Brand:         in.Brand,
		Notes:         in.Notes,
		CategoryID:    in.CategoryID,
		Priority:      in.Priority,
		ProductRef:    in.ProductRef,
		TotalQuantity: in.Quantity,
		Status:        quantity.StatusPending,
		CreatedAt:     s.now(),
	}
	nl.Items = append(nl.Items, item)
	nl.UpdatedAt = s.now()
	if err := s.commit(next); err != nil {
		return nil, err
	}

	s.warnIfNear("guest.item_limit_warning", len(nl.Items), s.limits.MaxItemsPerList)
	cp := item
	return &cp, nil
}

// DeleteItem removes one item from a list.
func (s *Store) DeleteItem(listID, itemID string) error {
	next := cloneLists(s.lists)
	list, _ := findList(next, listID)
	if list == nil {
		return ErrListNotFound
	}
	for i := range list.Items {
		if list.Items[i].ID == itemID {
			list.Items = append(list.Items[:i], list.Items[i+1:]...)
			list.UpdatedAt = s.now()
			return s.commit(next)
		}
	}
	return ErrItemNotFound
}

// Purchase records amount as bought. Zero amount uses the default policy:
// remainder for a partial item, full quantity otherwise. The mutation is
// durable when the call returns.
func (s *Store) Purchase(listID, itemID string, amount float64) (*model.GuestItem, error) {
	if amount < 0 {
		return nil, quantity.ErrInvalidAmount
	}
	return s.mutateItem(listID, itemID, func(item *model.GuestItem) error {
		if amount == 0 {
			amount = quantity.DefaultPurchaseAmount(item.TotalQuantity, item.PurchasedQuantity)
		}
		next, status, err := quantity.ApplyPurchase(item.TotalQuantity, item.PurchasedQuantity, amount)
		if err != nil {
			return err
		}
		s.applyQuantity(item, next, status)
		return nil
	})
}

// Unpurchase returns amount to the unbought pool; zero means all of it.
func (s *Store) Unpurchase(listID, itemID string, amount float64) (*model.GuestItem, error) {
	if amount < 0 {
		return nil, quantity.ErrInvalidAmount
	}
	return s.mutateItem(listID, itemID, func(item *model.GuestItem) error {
		next, status := quantity.ApplyUnpurchase(item.TotalQuantity, item.PurchasedQuantity, amount)
		s.applyQuantity(item, next, status)
		return nil
	})
}

// CancelItem marks an item cancelled: a terminal override outside the
// quantity machine. One terminal override may replace another.
func (s *Store) CancelItem(listID, itemID string) (*model.GuestItem, error) {
	return s.setTerminal(listID, itemID, quantity.StatusCancelled)
}

// MarkUnavailable marks an item not available in the store.
func (s *Store) MarkUnavailable(listID, itemID string) (*model.GuestItem, error) {
	return s.setTerminal(listID, itemID, quantity.StatusNotAvailable)
}

// setTerminal applies a terminal override. Unlike quantity mutations it does
// not refuse an already-terminal item, so cancelled and not_available can
// replace each other.
func (s *Store) setTerminal(listID, itemID string, status quantity.Status) (*model.GuestItem, error) {
	next := cloneLists(s.lists)
	list, _ := findList(next, listID)
	if list == nil {
		return nil, ErrListNotFound
	}
	item := findItem(list, itemID)
	if item == nil {
		return nil, ErrItemNotFound
	}
	item.Status = status
	list.UpdatedAt = s.now()
	if err := s.commit(next); err != nil {
		return nil, err
	}
	cp := *item
	return &cp, nil
}

func (s *Store) mutateItem(listID, itemID string, fn func(*model.GuestItem) error) (*model.GuestItem, error) {
	next := cloneLists(s.lists)
	list, _ := findList(next, listID)
	if list == nil {
		return nil, ErrListNotFound
	}
	item := findItem(list, itemID)
	if item == nil {
		return nil, ErrItemNotFound
	}
	if quantity.Terminal(item.Status) {
		return nil, ErrItemTerminal
	}
	if err := fn(item); err != nil {
		return nil, err
	}
	list.UpdatedAt = s.now()
	if err := s.commit(next); err != nil {
		return nil, err
	}
	cp := *item
	return &cp, nil
}

func (s *Store) applyQuantity(item *model.GuestItem, purchased float64, status quantity.Status) {
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

// commit persists next and only then makes it the in-memory state, so a
// quota rejection leaves the store exactly as it was.
func (s *Store) commit(next []model.GuestList) error {
	data, err := json.Marshal(collection{Lists: next})
	if err != nil {
		return fmt.Errorf("encode guest collection: %w", err)
	}
	if err := s.storage.Write(data); err != nil {
		return err
	}
	s.lists = next

	if capacity := s.storage.Capacity(); capacity > 0 && s.limits.WarnFraction > 0 {
		if float64(len(data)) >= s.limits.WarnFraction*float64(capacity) {
			if !s.storageWarned && s.notifier != nil {
				s.notifier.Notify("warning", "guest.storage_warning", map[string]any{
					"used_bytes": len(data),
					"capacity":   capacity,
				})
			}
			s.storageWarned = true
		} else {
			s.storageWarned = false
		}
	}
	return nil
}

func (s *Store) warnIfNear(messageKey string, count, max int) {
	if max <= 0 || s.limits.WarnFraction <= 0 || s.notifier == nil {
		return
	}
	if count < max && float64(count) >= s.limits.WarnFraction*float64(max) {
		s.notifier.Notify("warning", messageKey, map[string]any{
			"count": count,
			"max":   max,
		})
	}
}

// --- batch target adapter ---

// ListTarget adapts one guest list to the batch controller's view. Offline
// there is no server round trip: the context is accepted for interface
// parity and the mutation is immediate.
type ListTarget struct {
	store  *Store
	listID string
}

// BatchTarget returns the batch-controller adapter for listID.
func (s *Store) BatchTarget(listID string) *ListTarget {
	return &ListTarget{store: s, listID: listID}
}

func (t *ListTarget) Items() []model.Item {
	list, ok := t.store.List(t.listID)
	if !ok {
		return nil
	}
	out := make([]model.Item, 0, len(list.Items))
	for _, gi := range list.Items {
		out = append(out, model.Item{
			ID:                gi.ID,
			ListID:            t.listID,
			Name:              gi.Name,
			Unit:              gi.Unit,
			CategoryID:        gi.CategoryID,
			Priority:          gi.Priority,
			TotalQuantity:     gi.TotalQuantity,
			PurchasedQuantity: gi.PurchasedQuantity,
			Status:            gi.Status,
			PurchasedAt:       gi.PurchasedAt,
		})
	}
	return out
}

func (t *ListTarget) BatchPurchase(_ context.Context, itemIDs []string) error {
	s := t.store
	next := cloneLists(s.lists)
	list, _ := findList(next, t.listID)
	if list == nil {
		return ErrListNotFound
	}
	for _, id := range itemIDs {
		item := findItem(list, id)
		if item == nil {
			return ErrItemNotFound
		}
		if quantity.Terminal(item.Status) || item.FullyPurchased() {
			continue
		}
		s.applyQuantity(item, item.TotalQuantity, quantity.StatusPurchased)
	}
	list.UpdatedAt = s.now()
	return s.commit(next)
}

func (t *ListTarget) Restore(_ context.Context, entries []model.UndoEntry) error {
	s := t.store
	next := cloneLists(s.lists)
	list, _ := findList(next, t.listID)
	if list == nil {
		return ErrListNotFound
	}
	for _, e := range entries {
		item := findItem(list, e.ItemID)
		if item == nil {
			continue
		}
		item.PurchasedQuantity = e.PurchasedQuantity
		item.Status = e.Status
		item.PurchasedAt = e.PurchasedAt
	}
	list.UpdatedAt = s.now()
	return s.commit(next)
}

// --- helpers ---

func findList(lists []model.GuestList, id string) (*model.GuestList, int) {
	for i := range lists {
		if lists[i].ID == id {
			return &lists[i], i
		}
	}
	return nil, -1
}

func findItem(list *model.GuestList, id string) *model.GuestItem {
	for i := range list.Items {
		if list.Items[i].ID == id {
			return &list.Items[i]
		}
	}
	return nil
}

func cloneLists(in []model.GuestList) []model.GuestList {
	out := make([]model.GuestList, len(in))
	for i, l := range in {
		items := make([]model.GuestItem, len(l.Items))
		copy(items, l.Items)
		l.Items = items
		out[i] = l
	}
	return out
}

func candidate(in ItemInput) dedup.Candidate {
	return dedup.Candidate{
		Name:       in.Name,
		Unit:       in.Unit,
		CategoryID: in.CategoryID,
		ProductRef: in.ProductRef,
		Quantity:   in.Quantity,
	}
}

func entries(items []model.GuestItem) []dedup.Entry {
	out := make([]dedup.Entry, 0, len(items))
	for _, it := range items {
		out = append(out, dedup.Entry{
			ID:         it.ID,
			Name:       it.Name,
			Unit:       it.Unit,
			CategoryID: it.CategoryID,
			ProductRef: it.ProductRef,
			Quantity:   it.TotalQuantity,
			Status:     it.Status,
		})
	}
	return out
}
