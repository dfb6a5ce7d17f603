package client

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/Destaw-dev/listali-sub002/internal/model"
)

type collectingHandler struct {
	events chan model.Event
}

func (c *collectingHandler) Handle(_ context.Context, ev model.Event) error {
	c.events <- ev
	return nil
}

func purchase(t *testing.T, baseURL, token, itemID string, amount float64) {
	t.Helper()
	body, _ := json.Marshal(map[string]float64{"amount": amount})
	req, _ := http.NewRequest(http.MethodPost, baseURL+"/api/items/"+itemID+"/purchase", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("purchase status = %d, want 200", resp.StatusCode)
	}
}

func TestSubscriberReceivesEvents(t *testing.T) {
	baseURL, token := startServer(t)
	listID := createList(t, baseURL, token, "Groceries")
	itemID := addItem(t, baseURL, token, listID, "Milk", 2)

	handler := &collectingHandler{events: make(chan model.Event, 16)}
	sub := NewSubscriber(baseURL, token, listID, handler, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sub.Run(ctx)

	// The subscribe message races the first mutation, so keep purchasing
	// until an event comes through.
	deadline := time.After(5 * time.Second)
	for {
		purchase(t, baseURL, token, itemID, 1)
		select {
		case ev := <-handler.events:
			if ev.Type != model.EventPurchase {
				t.Fatalf("event type = %q, want purchase", ev.Type)
			}
			if ev.ListID != listID || ev.ItemID != itemID {
				t.Fatalf("event = %+v", ev)
			}
			return
		case <-time.After(200 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event received before deadline")
		}
	}
}
