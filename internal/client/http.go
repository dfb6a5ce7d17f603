// Package client talks to a listali server: an HTTP transport for list
// mutations and a WebSocket subscriber for live sync events.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Destaw-dev/listali-sub002/internal/model"
)

// HTTP implements the mutation transport over the server's JSON API.
type HTTP struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTP(baseURL, token string) *HTTP {
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *HTTP) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *HTTP) FetchList(ctx context.Context, listID string) (*model.ShoppingList, []model.Item, error) {
	var out struct {
		List  *model.ShoppingList `json:"list"`
		Items []model.Item        `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/lists/"+listID, nil, &out); err != nil {
		return nil, nil, err
	}
	return out.List, out.Items, nil
}

func (c *HTTP) PurchaseItem(ctx context.Context, itemID string, amount float64) (*model.Item, error) {
	var item model.Item
	body := map[string]float64{"amount": amount}
	if err := c.do(ctx, http.MethodPost, "/api/items/"+itemID+"/purchase", body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *HTTP) UnpurchaseItem(ctx context.Context, itemID string, amount float64) (*model.Item, error) {
	var item model.Item
	body := map[string]float64{"amount": amount}
	if err := c.do(ctx, http.MethodPost, "/api/items/"+itemID+"/unpurchase", body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *HTTP) BatchPurchase(ctx context.Context, listID string, itemIDs []string) error {
	body := map[string][]string{"item_ids": itemIDs}
	return c.do(ctx, http.MethodPost, "/api/lists/"+listID+"/batch-purchase", body, nil)
}

func (c *HTTP) RestoreItems(ctx context.Context, listID string, entries []model.UndoEntry) error {
	body := map[string][]model.UndoEntry{"entries": entries}
	return c.do(ctx, http.MethodPost, "/api/lists/"+listID+"/restore", body, nil)
}
