package model

import "time"

// Notification kind constants shared by web push and in-app toasts.
const (
	NotifKindItemPurchased   = "item_purchased"
	NotifKindItemUnpurchased = "item_unpurchased"
	NotifKindBatchPurchased  = "batch_purchased"
	NotifKindListUpdated     = "list_updated"
)

type PushSubscription struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Endpoint   string    `json:"endpoint"`
	P256dhKey  string    `json:"p256dh_key"`
	AuthKey    string    `json:"auth_key"`
	DeviceName string    `json:"device_name"`
	CreatedAt  time.Time `json:"created_at"`
}
