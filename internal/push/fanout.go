package push

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Destaw-dev/listali-sub002/internal/model"
)

// Sender delivers one payload to one subscription.
type Sender interface {
	Send(sub *model.PushSubscription, payload Payload) error
}

// SubscriptionSource lists registered subscriptions and prunes dead ones.
type SubscriptionSource interface {
	ListAll() ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

// Fanout delivers list events to every subscribed device except the
// actor's own. Delivery is best effort: a failed endpoint is logged, an
// expired one is pruned, and neither blocks the rest.
type Fanout struct {
	sender Sender
	subs   SubscriptionSource
	logger *slog.Logger
}

func NewFanout(sender Sender, subs SubscriptionSource, logger *slog.Logger) *Fanout {
	return &Fanout{
		sender: sender,
		subs:   subs,
		logger: logger.With("component", "push"),
	}
}

// Notify sends the event to all peers. The actor never gets a push for
// their own action.
func (f *Fanout) Notify(event model.Event) {
	payload, ok := payloadFor(event)
	if !ok {
		return
	}

	subs, err := f.subs.ListAll()
	if err != nil {
		f.logger.Error("list subscriptions", "error", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		if sub.UserID == event.ActorID {
			continue
		}
		err := f.sender.Send(sub, payload)
		if errors.Is(err, ErrExpired) {
			if err := f.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				f.logger.Error("prune expired subscription", "error", err)
			}
			continue
		}
		if err != nil {
			f.logger.Warn("send push", "endpoint", sub.Endpoint, "error", err)
		}
	}
}

func payloadFor(event model.Event) (Payload, bool) {
	actor := event.ActorName
	if actor == "" {
		actor = "Someone"
	}
	switch event.Type {
	case model.EventPurchase:
		return Payload{
			Title: "Item purchased",
			Body:  fmt.Sprintf("%s bought %s", actor, event.ItemName),
			URL:   "/lists/" + event.ListID,
			Tag:   model.NotifKindItemPurchased,
		}, true
	case model.EventUnpurchase:
		return Payload{
			Title: "Item returned to list",
			Body:  fmt.Sprintf("%s put %s back on the list", actor, event.ItemName),
			URL:   "/lists/" + event.ListID,
			Tag:   model.NotifKindItemUnpurchased,
		}, true
	case model.EventBatchPurchase:
		return Payload{
			Title: "Shopping done",
			Body:  fmt.Sprintf("%s marked %d items as purchased", actor, len(event.ItemIDs)),
			URL:   "/lists/" + event.ListID,
			Tag:   model.NotifKindBatchPurchased,
		}, true
	case model.EventBatchUnpurchase, model.EventListUpdated:
		return Payload{
			Title: "List updated",
			Body:  fmt.Sprintf("%s updated the list", actor),
			URL:   "/lists/" + event.ListID,
			Tag:   model.NotifKindListUpdated,
		}, true
	default:
		return Payload{}, false
	}
}
