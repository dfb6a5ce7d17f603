package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Destaw-dev/listali-sub002/internal/model"
	"github.com/Destaw-dev/listali-sub002/internal/quantity"
)

// ErrItemTerminal is returned for quantity mutations on cancelled or
// not-available items.
var ErrItemTerminal = errors.New("item is cancelled or not available")

type ListStore struct {
	db *sql.DB
}

func NewListStore(db *sql.DB) *ListStore {
	return &ListStore{db: db}
}

// --- List methods ---

// Aggregate counts are always derived from the items table in the query
// itself; nothing ever increments them.
const listCols = `l.id, l.group_id, l.name, l.sort_order, l.created_at, l.updated_at,
	(SELECT COUNT(*) FROM items i WHERE i.list_id = l.id) AS items_count,
	(SELECT COUNT(*) FROM items i WHERE i.list_id = l.id AND i.status = 'purchased') AS completed_items_count`

func scanShoppingList(scanner interface{ Scan(...any) error }) (*model.ShoppingList, error) {
	var l model.ShoppingList
	err := scanner.Scan(&l.ID, &l.GroupID, &l.Name, &l.SortOrder, &l.CreatedAt, &l.UpdatedAt, &l.ItemsCount, &l.CompletedItemsCount)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *ListStore) CreateList(name, groupID string) (*model.ShoppingList, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO shopping_lists (id, group_id, name) VALUES (?, ?, ?)`,
		id, groupID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert list: %w", err)
	}
	return s.GetList(id)
}

func (s *ListStore) GetList(id string) (*model.ShoppingList, error) {
	row := s.db.QueryRow(`SELECT `+listCols+` FROM shopping_lists l WHERE l.id = ?`, id)
	l, err := scanShoppingList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	return l, nil
}

func (s *ListStore) ListLists(groupID string) ([]model.ShoppingList, error) {
	rows, err := s.db.Query(
		`SELECT `+listCols+` FROM shopping_lists l WHERE l.group_id = ? ORDER BY l.sort_order ASC, l.created_at ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	var lists []model.ShoppingList
	for rows.Next() {
		l, err := scanShoppingList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, *l)
	}
	return lists, rows.Err()
}

func (s *ListStore) RenameList(id, name string) (*model.ShoppingList, error) {
	_, err := s.db.Exec(
		`UPDATE shopping_lists SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("rename list: %w", err)
	}
	return s.GetList(id)
}

func (s *ListStore) DeleteList(id string) error {
	_, err := s.db.Exec(`DELETE FROM shopping_lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// --- Item methods ---

const itemCols = `id, list_id, name, unit, brand, notes, category_id, priority, product_ref,
	total_quantity, purchased_quantity, status, purchased_at, purchased_by, added_by,
	sort_order, created_at, updated_at`

func scanItem(scanner interface{ Scan(...any) error }) (*model.Item, error) {
	var item model.Item
	var purchasedAt sql.NullTime
	var purchasedBy, addedBy sql.NullInt64

	err := scanner.Scan(
		&item.ID, &item.ListID, &item.Name, &item.Unit, &item.Brand, &item.Notes,
		&item.CategoryID, &item.Priority, &item.ProductRef,
		&item.TotalQuantity, &item.PurchasedQuantity, &item.Status,
		&purchasedAt, &purchasedBy, &addedBy,
		&item.SortOrder, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if purchasedAt.Valid {
		item.PurchasedAt = &purchasedAt.Time
	}
	if purchasedBy.Valid {
		item.PurchasedBy = &purchasedBy.Int64
	}
	if addedBy.Valid {
		item.AddedBy = &addedBy.Int64
	}
	return &item, nil
}

// CreateItemParams carries the user-entered fields for a new item.
type CreateItemParams struct {
	Name       string
	Unit       string
	Brand      string
	Notes      string
	CategoryID string
	Priority   model.Priority
	ProductRef string
	Quantity   float64
	AddedBy    *int64
}

func (s *ListStore) CreateItem(listID string, p CreateItemParams) (*model.Item, error) {
	if p.Quantity <= 0 {
		return nil, quantity.ErrInvalidAmount
	}
	if p.Priority == "" {
		p.Priority = model.PriorityMedium
	}
	var aBy sql.NullInt64
	if p.AddedBy != nil {
		aBy = sql.NullInt64{Int64: *p.AddedBy, Valid: true}
	}

	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO items (id, list_id, name, unit, brand, notes, category_id, priority, product_ref, total_quantity, added_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, listID, p.Name, p.Unit, p.Brand, p.Notes, p.CategoryID, p.Priority, p.ProductRef, p.Quantity, aBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return s.GetItemByID(id)
}

func (s *ListStore) GetItemByID(id string) (*model.Item, error) {
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *ListStore) ListItemsByList(listID string) ([]model.Item, error) {
	rows, err := s.db.Query(
		`SELECT `+itemCols+` FROM items WHERE list_id = ? ORDER BY status = 'purchased' ASC, category_id ASC, sort_order ASC, created_at ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *ListStore) UpdateItem(id string, p CreateItemParams) (*model.Item, error) {
	if p.Quantity <= 0 {
		return nil, quantity.ErrInvalidAmount
	}
	existing, err := s.GetItemByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	// The requested total may change; the status must follow the machine.
	status := existing.Status
	if !quantity.Terminal(status) {
		status = quantity.DeriveStatus(p.Quantity, existing.PurchasedQuantity)
	}
	_, err = s.db.Exec(
		`UPDATE items SET name = ?, unit = ?, brand = ?, notes = ?, category_id = ?, priority = ?, product_ref = ?,
		 total_quantity = ?, status = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Unit, p.Brand, p.Notes, p.CategoryID, p.Priority, p.ProductRef,
		p.Quantity, status, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return s.GetItemByID(id)
}

func (s *ListStore) DeleteItem(id string) error {
	_, err := s.db.Exec(`DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// Purchase applies amount (0 = default policy) to the item's purchased
// quantity. The server serializes writes to the same item, so this
// read-apply-write needs no extra coordination beyond sqlite's own locking.
func (s *ListStore) Purchase(id string, amount float64, purchasedBy *int64) (*model.Item, error) {
	if amount < 0 {
		return nil, quantity.ErrInvalidAmount
	}
	item, err := s.GetItemByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	if quantity.Terminal(item.Status) {
		return nil, ErrItemTerminal
	}
	if amount == 0 {
		amount = quantity.DefaultPurchaseAmount(item.TotalQuantity, item.PurchasedQuantity)
	}
	next, status, err := quantity.ApplyPurchase(item.TotalQuantity, item.PurchasedQuantity, amount)
	if err != nil {
		return nil, err
	}

	purchasedAt := item.PurchasedAt
	if item.PurchasedQuantity <= 0 && next > 0 {
		now := time.Now().UTC()
		purchasedAt = &now
	}
	var pBy sql.NullInt64
	if purchasedBy != nil {
		pBy = sql.NullInt64{Int64: *purchasedBy, Valid: true}
	}
	_, err = s.db.Exec(
		`UPDATE items SET purchased_quantity = ?, status = ?, purchased_at = ?, purchased_by = ?, updated_at = ? WHERE id = ?`,
		next, status, nullTime(purchasedAt), pBy, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("purchase item: %w", err)
	}
	return s.GetItemByID(id)
}

// Unpurchase returns amount (0 = everything) to the unbought pool.
func (s *ListStore) Unpurchase(id string, amount float64) (*model.Item, error) {
	if amount < 0 {
		return nil, quantity.ErrInvalidAmount
	}
	item, err := s.GetItemByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	if quantity.Terminal(item.Status) {
		return nil, ErrItemTerminal
	}
	next, status := quantity.ApplyUnpurchase(item.TotalQuantity, item.PurchasedQuantity, amount)

	purchasedAt := item.PurchasedAt
	purchasedBy := sql.NullInt64{}
	if item.PurchasedBy != nil {
		purchasedBy = sql.NullInt64{Int64: *item.PurchasedBy, Valid: true}
	}
	if next <= 0 {
		purchasedAt = nil
		purchasedBy = sql.NullInt64{}
	}
	_, err = s.db.Exec(
		`UPDATE items SET purchased_quantity = ?, status = ?, purchased_at = ?, purchased_by = ?, updated_at = ? WHERE id = ?`,
		next, status, nullTime(purchasedAt), purchasedBy, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("unpurchase item: %w", err)
	}
	return s.GetItemByID(id)
}

// BatchPurchase sets every given item fully purchased in one transaction.
// Terminal items are skipped, not failed. Returns the number of items whose
// state changed.
func (s *ListStore) BatchPurchase(listID string, itemIDs []string, purchasedBy *int64) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	var pBy sql.NullInt64
	if purchasedBy != nil {
		pBy = sql.NullInt64{Int64: *purchasedBy, Valid: true}
	}
	now := time.Now().UTC()
	changed := 0
	for _, id := range itemIDs {
		row := tx.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ? AND list_id = ?`, id, listID)
		item, err := scanItem(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("scan batch item: %w", err)
		}
		if quantity.Terminal(item.Status) || item.FullyPurchased() {
			continue
		}
		purchasedAt := item.PurchasedAt
		if item.PurchasedQuantity <= 0 {
			purchasedAt = &now
		}
		_, err = tx.Exec(
			`UPDATE items SET purchased_quantity = total_quantity, status = ?, purchased_at = ?, purchased_by = ?, updated_at = ? WHERE id = ?`,
			quantity.StatusPurchased, nullTime(purchasedAt), pBy, now, id,
		)
		if err != nil {
			return 0, fmt.Errorf("batch purchase item: %w", err)
		}
		changed++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	return changed, nil
}

// RestoreItems puts each entry's item back to its recorded purchase state in
// one transaction. Items that no longer exist are skipped. Entries arrive
// from client snapshots, so each one is validated against the item's current
// total: the quantity is clamped and a non-terminal status re-derived, never
// trusted as sent.
func (s *ListStore) RestoreItems(listID string, entries []model.UndoEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin restore: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, e := range entries {
		row := tx.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ? AND list_id = ?`, e.ItemID, listID)
		item, err := scanItem(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("scan restore item: %w", err)
		}

		purchased := quantity.Clamp(item.TotalQuantity, e.PurchasedQuantity)
		status := e.Status
		if !quantity.Terminal(status) {
			status = quantity.DeriveStatus(item.TotalQuantity, purchased)
		}
		purchasedAt := e.PurchasedAt
		if purchased <= 0 {
			purchasedAt = nil
		} else if purchasedAt == nil {
			purchasedAt = &now
		}

		_, err = tx.Exec(
			`UPDATE items SET purchased_quantity = ?, status = ?, purchased_at = ?, updated_at = ? WHERE id = ? AND list_id = ?`,
			purchased, status, nullTime(purchasedAt), now, e.ItemID, listID,
		)
		if err != nil {
			return fmt.Errorf("restore item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit restore: %w", err)
	}
	return nil
}

// MergeQuantity replaces an item's requested total after an accepted
// duplicate merge; the status follows the machine for the new total.
func (s *ListStore) MergeQuantity(id string, mergedTotal float64) (*model.Item, error) {
	if mergedTotal <= 0 {
		return nil, quantity.ErrInvalidAmount
	}
	item, err := s.GetItemByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	status := quantity.DeriveStatus(mergedTotal, item.PurchasedQuantity)
	_, err = s.db.Exec(
		`UPDATE items SET total_quantity = ?, status = ?, updated_at = ? WHERE id = ?`,
		mergedTotal, status, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("merge quantity: %w", err)
	}
	return s.GetItemByID(id)
}

// SetTerminalStatus applies a cancelled / not_available override.
func (s *ListStore) SetTerminalStatus(id string, status quantity.Status) (*model.Item, error) {
	if !quantity.Terminal(status) {
		return nil, fmt.Errorf("status %q is not terminal", status)
	}
	_, err := s.db.Exec(
		`UPDATE items SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("set terminal status: %w", err)
	}
	return s.GetItemByID(id)
}

func (s *ListStore) CountUnpurchased(listID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM items WHERE list_id = ? AND status IN ('pending', 'partially_purchased')`,
		listID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unpurchased: %w", err)
	}
	return count, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
