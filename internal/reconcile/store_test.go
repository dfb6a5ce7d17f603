package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Destaw-dev/listali-sub002/internal/model"
	"github.com/Destaw-dev/listali-sub002/internal/quantity"
)

// fakeTransport is a scriptable Transport. Each call applies the quantity
// machine to its own canonical copy, like the real server would.
type fakeTransport struct {
	list  model.ShoppingList
	items map[string]*model.Item

	failNext  error
	purchases int
	fetches   int
	batches   int
	restores  int
}

func newFakeTransport(items ...model.Item) *fakeTransport {
	ft := &fakeTransport{
		list:  model.ShoppingList{ID: "list-1", Name: "Groceries"},
		items: make(map[string]*model.Item),
	}
	for i := range items {
		it := items[i]
		it.ListID = "list-1"
		ft.items[it.ID] = &it
	}
	return ft
}

func (ft *fakeTransport) takeFailure() error {
	err := ft.failNext
	ft.failNext = nil
	return err
}

func (ft *fakeTransport) FetchList(_ context.Context, listID string) (*model.ShoppingList, []model.Item, error) {
	ft.fetches++
	if err := ft.takeFailure(); err != nil {
		return nil, nil, err
	}
	list := ft.list
	var items []model.Item
	for _, it := range ft.items {
		items = append(items, *it)
	}
	return &list, items, nil
}

func (ft *fakeTransport) PurchaseItem(_ context.Context, itemID string, amount float64) (*model.Item, error) {
	ft.purchases++
	if err := ft.takeFailure(); err != nil {
		return nil, err
	}
	it := ft.items[itemID]
	next, status, err := quantity.ApplyPurchase(it.TotalQuantity, it.PurchasedQuantity, amount)
	if err != nil {
		return nil, err
	}
	if it.PurchasedQuantity <= 0 && next > 0 {
		now := time.Now()
		it.PurchasedAt = &now
	}
	it.PurchasedQuantity = next
	it.Status = status
	cp := *it
	return &cp, nil
}

func (ft *fakeTransport) UnpurchaseItem(_ context.Context, itemID string, amount float64) (*model.Item, error) {
	if err := ft.takeFailure(); err != nil {
		return nil, err
	}
	it := ft.items[itemID]
	next, status := quantity.ApplyUnpurchase(it.TotalQuantity, it.PurchasedQuantity, amount)
	it.PurchasedQuantity = next
	it.Status = status
	if next <= 0 {
		it.PurchasedAt = nil
	}
	cp := *it
	return &cp, nil
}

func (ft *fakeTransport) BatchPurchase(_ context.Context, _ string, itemIDs []string) error {
	ft.batches++
	if err := ft.takeFailure(); err != nil {
		return err
	}
	for _, id := range itemIDs {
		it := ft.items[id]
		it.PurchasedQuantity = it.TotalQuantity
		it.Status = quantity.StatusPurchased
	}
	return nil
}

func (ft *fakeTransport) RestoreItems(_ context.Context, _ string, entries []model.UndoEntry) error {
	ft.restores++
	if err := ft.takeFailure(); err != nil {
		return err
	}
	for _, e := range entries {
		it := ft.items[e.ItemID]
		it.PurchasedQuantity = e.PurchasedQuantity
		it.Status = e.Status
		it.PurchasedAt = e.PurchasedAt
	}
	return nil
}

func setupStore(t *testing.T, items ...model.Item) (*Store, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport(items...)
	s := NewStore("list-1", ft, slog.Default())
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	return s, ft
}

func item(id string, total, purchased float64) model.Item {
	return model.Item{
		ID:                id,
		Name:              "item " + id,
		TotalQuantity:     total,
		PurchasedQuantity: purchased,
		Status:            quantity.DeriveStatus(total, purchased),
	}
}

func TestPurchaseDefaultAmountFinishesPartial(t *testing.T) {
	s, _ := setupStore(t, item("a", 5, 2))

	got, err := s.Purchase(context.Background(), "a", 0)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if got.PurchasedQuantity != 5 {
		t.Errorf("purchased = %v, want 5", got.PurchasedQuantity)
	}
	if got.Status != quantity.StatusPurchased {
		t.Errorf("status = %q, want purchased", got.Status)
	}
}

func TestPurchaseSetsPurchasedAt(t *testing.T) {
	s, _ := setupStore(t, item("a", 2, 0))

	got, err := s.Purchase(context.Background(), "a", 1)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if got.PurchasedAt == nil {
		t.Error("purchased_at should be set after first purchase")
	}

	got, err = s.Unpurchase(context.Background(), "a", 0)
	if err != nil {
		t.Fatalf("unpurchase: %v", err)
	}
	if got.PurchasedAt != nil {
		t.Error("purchased_at should be cleared at zero")
	}
}

func TestPurchaseRollsBackOnTransportFailure(t *testing.T) {
	s, ft := setupStore(t, item("a", 3, 1))
	ft.failNext = errors.New("connection reset")

	_, err := s.Purchase(context.Background(), "a", 1)
	if !IsTransport(err) {
		t.Fatalf("err = %v, want TransportError", err)
	}

	got, ok := s.Item("a")
	if !ok {
		t.Fatal("item missing after rollback")
	}
	if got.PurchasedQuantity != 1 {
		t.Errorf("purchased = %v, want pre-call 1", got.PurchasedQuantity)
	}
	if got.Status != quantity.StatusPartiallyPurchased {
		t.Errorf("status = %q, want pre-call partial", got.Status)
	}
	if s.PendingCount() != 0 {
		t.Errorf("pending = %d, want 0", s.PendingCount())
	}
}

func TestPurchaseRejectsNegativeAmount(t *testing.T) {
	s, ft := setupStore(t, item("a", 3, 0))

	_, err := s.Purchase(context.Background(), "a", -1)
	if !errors.Is(err, quantity.ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if ft.purchases != 0 {
		t.Errorf("transport called %d times, want 0", ft.purchases)
	}
}

func TestPurchaseRejectsTerminalItem(t *testing.T) {
	cancelled := item("a", 3, 0)
	cancelled.Status = quantity.StatusCancelled
	s, ft := setupStore(t, cancelled)

	_, err := s.Purchase(context.Background(), "a", 1)
	if !errors.Is(err, ErrItemTerminal) {
		t.Fatalf("err = %v, want ErrItemTerminal", err)
	}
	if ft.purchases != 0 {
		t.Errorf("transport called %d times, want 0", ft.purchases)
	}
}

func TestPurchaseUnknownItem(t *testing.T) {
	s, _ := setupStore(t, item("a", 3, 0))

	_, err := s.Purchase(context.Background(), "zzz", 1)
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
}

// blockingTransport parks PurchaseItem until released, so a test can observe
// the optimistic window.
type blockingTransport struct {
	*fakeTransport
	entered chan struct{}
	release chan struct{}
}

func (bt *blockingTransport) PurchaseItem(ctx context.Context, itemID string, amount float64) (*model.Item, error) {
	close(bt.entered)
	<-bt.release
	return bt.fakeTransport.PurchaseItem(ctx, itemID, amount)
}

func TestSecondMutationOnPendingItemRejected(t *testing.T) {
	ft := newFakeTransport(item("a", 3, 0))
	bt := &blockingTransport{
		fakeTransport: ft,
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	s := NewStore("list-1", bt, slog.Default())
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Purchase(context.Background(), "a", 1)
		done <- err
	}()
	<-bt.entered

	// Optimistic state is visible while the call is in flight.
	got, _ := s.Item("a")
	if got.PurchasedQuantity != 1 {
		t.Errorf("optimistic purchased = %v, want 1", got.PurchasedQuantity)
	}

	if _, err := s.Purchase(context.Background(), "a", 1); !errors.Is(err, ErrMutationPending) {
		t.Errorf("overlapping mutation err = %v, want ErrMutationPending", err)
	}

	close(bt.release)
	if err := <-done; err != nil {
		t.Fatalf("first purchase: %v", err)
	}
}

func TestRefreshKeepsPendingOptimisticItem(t *testing.T) {
	ft := newFakeTransport(item("a", 3, 0), item("b", 2, 0))
	bt := &blockingTransport{
		fakeTransport: ft,
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	s := NewStore("list-1", bt, slog.Default())
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Purchase(context.Background(), "a", 3)
		done <- err
	}()
	<-bt.entered

	// A peer-triggered refetch lands mid-flight. The pending item keeps its
	// optimistic values; the rest adopt the canonical state.
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	got, _ := s.Item("a")
	if got.PurchasedQuantity != 3 {
		t.Errorf("pending item purchased = %v, want optimistic 3", got.PurchasedQuantity)
	}

	close(bt.release)
	if err := <-done; err != nil {
		t.Fatalf("purchase: %v", err)
	}
}

func TestAggregatesRecomputedFromItems(t *testing.T) {
	s, _ := setupStore(t, item("a", 2, 0), item("b", 1, 1), item("c", 4, 1))

	list := s.List()
	if list.ItemsCount != 3 {
		t.Errorf("items count = %d, want 3", list.ItemsCount)
	}
	if list.CompletedItemsCount != 1 {
		t.Errorf("completed = %d, want 1", list.CompletedItemsCount)
	}

	if _, err := s.Purchase(context.Background(), "a", 2); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	list = s.List()
	if list.CompletedItemsCount != 2 {
		t.Errorf("completed after purchase = %d, want 2", list.CompletedItemsCount)
	}
}

func TestBatchPurchaseAndRestore(t *testing.T) {
	s, ft := setupStore(t, item("a", 2, 0), item("b", 1, 1), item("c", 4, 1))

	if err := s.BatchPurchase(context.Background(), []string{"a", "c"}); err != nil {
		t.Fatalf("batch purchase: %v", err)
	}
	if ft.batches != 1 {
		t.Errorf("batch calls = %d, want 1", ft.batches)
	}
	for _, id := range []string{"a", "b", "c"} {
		got, _ := s.Item(id)
		if got.Status != quantity.StatusPurchased {
			t.Errorf("item %s status = %q, want purchased", id, got.Status)
		}
	}

	entries := []model.UndoEntry{
		{ItemID: "a", PurchasedQuantity: 0, Status: quantity.StatusPending},
		{ItemID: "c", PurchasedQuantity: 1, Status: quantity.StatusPartiallyPurchased},
	}
	if err := s.Restore(context.Background(), entries); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, _ := s.Item("a")
	if got.PurchasedQuantity != 0 || got.Status != quantity.StatusPending {
		t.Errorf("item a = (%v, %q), want (0, pending)", got.PurchasedQuantity, got.Status)
	}
	got, _ = s.Item("c")
	if got.PurchasedQuantity != 1 || got.Status != quantity.StatusPartiallyPurchased {
		t.Errorf("item c = (%v, %q), want (1, partially_purchased)", got.PurchasedQuantity, got.Status)
	}
	got, _ = s.Item("b")
	if got.PurchasedQuantity != 1 || got.Status != quantity.StatusPurchased {
		t.Errorf("item b = (%v, %q), want untouched (1, purchased)", got.PurchasedQuantity, got.Status)
	}
}

func TestBatchPurchaseRollsBackAllOnFailure(t *testing.T) {
	s, ft := setupStore(t, item("a", 2, 0), item("c", 4, 1))
	ft.failNext = errors.New("gateway timeout")

	err := s.BatchPurchase(context.Background(), []string{"a", "c"})
	if !IsTransport(err) {
		t.Fatalf("err = %v, want TransportError", err)
	}

	got, _ := s.Item("a")
	if got.PurchasedQuantity != 0 || got.Status != quantity.StatusPending {
		t.Errorf("item a = (%v, %q), want rolled back (0, pending)", got.PurchasedQuantity, got.Status)
	}
	got, _ = s.Item("c")
	if got.PurchasedQuantity != 1 || got.Status != quantity.StatusPartiallyPurchased {
		t.Errorf("item c = (%v, %q), want rolled back (1, partially_purchased)", got.PurchasedQuantity, got.Status)
	}
	if s.PendingCount() != 0 {
		t.Errorf("pending = %d, want 0", s.PendingCount())
	}
}

func TestMutateBeforeLoad(t *testing.T) {
	ft := newFakeTransport(item("a", 2, 0))
	s := NewStore("list-1", ft, slog.Default())

	if _, err := s.Purchase(context.Background(), "a", 1); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("err = %v, want ErrNotLoaded", err)
	}
}
