package model

import (
	"time"

	"github.com/Destaw-dev/listali-sub002/internal/quantity"
)

// UndoEntry captures one item's purchase state immediately before a
// purchase-all batch. The snapshot is ephemeral and client-only: consumed at
// most once by a subsequent undo, then discarded.
type UndoEntry struct {
	ItemID            string          `json:"item_id"`
	PurchasedQuantity float64         `json:"purchased_quantity"`
	Status            quantity.Status `json:"status"`
	PurchasedAt       *time.Time      `json:"purchased_at,omitempty"`
}
