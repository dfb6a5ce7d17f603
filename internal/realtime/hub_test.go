package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Destaw-dev/listali-sub002/internal/model"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:   hub,
		conn:  nil,
		send:  make(chan []byte, sendBufferSize),
		lists: make(map[string]struct{}),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastToSubscribers(t *testing.T) {
	hub := NewHub(slog.Default())

	subscribed := mockClient(hub)
	subscribed.Subscribe("list-1")
	other := mockClient(hub)
	other.Subscribe("list-2")
	hub.Register(subscribed)
	hub.Register(other)

	hub.Broadcast(model.Event{Type: model.EventPurchase, ListID: "list-1", ItemID: "item-9", ActorID: 42, Quantity: 2})

	select {
	case data := <-subscribed.send:
		var got model.Event
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != model.EventPurchase {
			t.Errorf("type = %q, want purchase", got.Type)
		}
		if got.ItemID != "item-9" || got.ActorID != 42 {
			t.Errorf("event = %+v", got)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}

	select {
	case <-other.send:
		t.Fatal("client subscribed to another list received the event")
	default:
	}

	hub.Unregister(subscribed)
	hub.Unregister(other)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	c.Subscribe("list-1")
	hub.Register(c)

	c.Unsubscribe("list-1")
	hub.Broadcast(model.Event{Type: model.EventListUpdated, ListID: "list-1"})

	select {
	case <-c.send:
		t.Fatal("unsubscribed client received the event")
	default:
	}

	hub.Unregister(c)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	hub.Broadcast(model.Event{Type: model.EventUnpurchase, ListID: "list-1"})
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub)
	c.Subscribe("list-1")
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(model.Event{Type: model.EventPurchase, ListID: "list-1"})
	}

	// This should drop the message, not panic or block
	hub.Broadcast(model.Event{Type: model.EventPurchase, ListID: "list-1"})

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			c.Subscribe("list-1")
			hub.Register(c)
			hub.Broadcast(model.Event{Type: model.EventPurchase, ListID: "list-1"})
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
