package model

// Sync event types broadcast to collaborators when a list changes.
const (
	EventPurchase        = "purchase"
	EventUnpurchase      = "unpurchase"
	EventBatchPurchase   = "batch_purchase"
	EventBatchUnpurchase = "batch_unpurchase"
	EventListUpdated     = "list_updated"
)

// Event describes one peer action on a shared list. Delivery is
// at-least-once and unordered across clients, so consumers treat an Event as
// an invalidation signal, never as a quantity patch.
type Event struct {
	Type     string   `json:"type"`
	ListID   string   `json:"list_id"`
	ItemID   string   `json:"item_id,omitempty"`
	ItemIDs  []string `json:"item_ids,omitempty"`
	ActorID  int64    `json:"actor_id"`
	Quantity float64  `json:"quantity,omitempty"`

	// Display-only context for notification text. Never authoritative.
	ItemName  string `json:"item_name,omitempty"`
	ActorName string `json:"actor_name,omitempty"`
}
