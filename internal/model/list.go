package model

import (
	"time"

	"github.com/Destaw-dev/listali-sub002/internal/quantity"
)

// Priority of a requested item.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type ShoppingList struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Aggregate counts, always recomputed from the item collection.
	ItemsCount          int `json:"items_count"`
	CompletedItemsCount int `json:"completed_items_count"`
}

type Item struct {
	ID         string   `json:"id"`
	ListID     string   `json:"list_id"`
	Name       string   `json:"name"`
	Unit       string   `json:"unit"`
	Brand      string   `json:"brand"`
	Notes      string   `json:"notes"`
	CategoryID string   `json:"category_id"`
	Priority   Priority `json:"priority"`
	ProductRef string   `json:"product_ref"`

	TotalQuantity     float64         `json:"total_quantity"`
	PurchasedQuantity float64         `json:"purchased_quantity"`
	Status            quantity.Status `json:"status"`
	PurchasedAt       *time.Time      `json:"purchased_at"`
	PurchasedBy       *int64          `json:"purchased_by"`

	AddedBy   *int64    `json:"added_by"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Remaining is the quantity still to buy.
func (i Item) Remaining() float64 {
	return quantity.Clamp(i.TotalQuantity, i.TotalQuantity-i.PurchasedQuantity)
}

// FullyPurchased reports whether nothing remains to buy.
func (i Item) FullyPurchased() bool {
	return i.PurchasedQuantity >= i.TotalQuantity
}
