package model

import (
	"time"

	"github.com/Destaw-dev/listali-sub002/internal/quantity"
)

// GuestList is a shopping list owned entirely by the local device: no group,
// no server id namespace, identifiers generated locally. It obeys the same
// purchase-quantity invariant as ShoppingList.
type GuestList struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Items     []GuestItem `json:"items"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type GuestItem struct {
	ID         string   `json:"id"`
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

	CreatedAt time.Time `json:"created_at"`
}

func (i GuestItem) FullyPurchased() bool {
	return i.PurchasedQuantity >= i.TotalQuantity
}

// CompletedCount counts fully purchased items.
func (l GuestList) CompletedCount() int {
	n := 0
	for _, it := range l.Items {
		if it.Status == quantity.StatusPurchased {
			n++
		}
	}
	return n
}
