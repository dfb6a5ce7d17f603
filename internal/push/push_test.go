package push

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"testing"

	"github.com/Destaw-dev/listali-sub002/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key should be base64url-encoded, 32 bytes P-256 scalar
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

type fakeSender struct {
	sent     []int64
	failWith map[string]error
}

func (f *fakeSender) Send(sub *model.PushSubscription, payload Payload) error {
	if err, ok := f.failWith[sub.Endpoint]; ok {
		return err
	}
	f.sent = append(f.sent, sub.UserID)
	return nil
}

type fakeSubs struct {
	subs    []model.PushSubscription
	deleted []string
}

func (f *fakeSubs) ListAll() ([]model.PushSubscription, error) { return f.subs, nil }

func (f *fakeSubs) DeleteByEndpoint(endpoint string) error {
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func TestFanoutSkipsActor(t *testing.T) {
	sender := &fakeSender{}
	subs := &fakeSubs{subs: []model.PushSubscription{
		{UserID: 1, Endpoint: "https://push/a"},
		{UserID: 2, Endpoint: "https://push/b"},
		{UserID: 3, Endpoint: "https://push/c"},
	}}
	f := NewFanout(sender, subs, slog.Default())

	f.Notify(model.Event{Type: model.EventPurchase, ListID: "l1", ItemName: "Milk", ActorID: 2, ActorName: "Alice"})

	if len(sender.sent) != 2 {
		t.Fatalf("sent to %d devices, want 2", len(sender.sent))
	}
	for _, uid := range sender.sent {
		if uid == 2 {
			t.Error("actor received a push for their own action")
		}
	}
}

func TestFanoutPrunesExpired(t *testing.T) {
	sender := &fakeSender{failWith: map[string]error{
		"https://push/dead": ErrExpired,
	}}
	subs := &fakeSubs{subs: []model.PushSubscription{
		{UserID: 1, Endpoint: "https://push/dead"},
		{UserID: 2, Endpoint: "https://push/alive"},
	}}
	f := NewFanout(sender, subs, slog.Default())

	f.Notify(model.Event{Type: model.EventBatchPurchase, ListID: "l1", ItemIDs: []string{"a", "b"}, ActorID: 9})

	if len(subs.deleted) != 1 || subs.deleted[0] != "https://push/dead" {
		t.Errorf("deleted = %v, want the expired endpoint", subs.deleted)
	}
	if len(sender.sent) != 1 || sender.sent[0] != 2 {
		t.Errorf("sent = %v, want delivery to user 2 only", sender.sent)
	}
}

func TestFanoutTransientFailureDoesNotPrune(t *testing.T) {
	sender := &fakeSender{failWith: map[string]error{
		"https://push/flaky": errors.New("503"),
	}}
	subs := &fakeSubs{subs: []model.PushSubscription{
		{UserID: 1, Endpoint: "https://push/flaky"},
	}}
	f := NewFanout(sender, subs, slog.Default())

	f.Notify(model.Event{Type: model.EventUnpurchase, ListID: "l1", ItemName: "Eggs", ActorID: 9})

	if len(subs.deleted) != 0 {
		t.Errorf("transient failure pruned subscription: %v", subs.deleted)
	}
}

func TestFanoutIgnoresUnknownEventType(t *testing.T) {
	sender := &fakeSender{}
	subs := &fakeSubs{subs: []model.PushSubscription{
		{UserID: 1, Endpoint: "https://push/a"},
	}}
	f := NewFanout(sender, subs, slog.Default())

	f.Notify(model.Event{Type: "item_renamed", ListID: "l1", ActorID: 9})

	if len(sender.sent) != 0 {
		t.Errorf("unknown event type produced %d pushes", len(sender.sent))
	}
}
