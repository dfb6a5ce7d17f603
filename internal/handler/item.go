package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Destaw-dev/listali-sub002/internal/auth"
	"github.com/Destaw-dev/listali-sub002/internal/catalog"
	"github.com/Destaw-dev/listali-sub002/internal/dedup"
	"github.com/Destaw-dev/listali-sub002/internal/model"
	"github.com/Destaw-dev/listali-sub002/internal/quantity"
	"github.com/Destaw-dev/listali-sub002/internal/store"
)

type ItemHandler struct {
	lists    *store.ListStore
	hub      Broadcaster
	notifier Notifier
	logger   *slog.Logger
}

func NewItemHandler(lists *store.ListStore, hub Broadcaster, notifier Notifier, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{lists: lists, hub: hub, notifier: notifier, logger: logger.With("component", "handler")}
}

type itemRequest struct {
	Name       string         `json:"name"`
	Unit       string         `json:"unit"`
	Brand      string         `json:"brand"`
	Notes      string         `json:"notes"`
	CategoryID string         `json:"category_id"`
	Priority   model.Priority `json:"priority"`
	ProductRef string         `json:"product_ref"`
	Quantity   float64        `json:"quantity"`

	// Resolution is empty on the first attempt. After a 409 the client
	// retries with the user's decision.
	Resolution dedup.Resolution `json:"resolution"`
}

// Create adds an item to a list. A duplicate of an existing item is never
// inserted silently: the first attempt answers 409 with the proposed merge
// and the client retries carrying the user's resolution.
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	listID := r.PathValue("list_id")
	list, err := h.lists.GetList(listID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get list")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}
	if req.CategoryID == "" {
		req.CategoryID = catalog.Categorize(req.Name)
	}

	switch req.Resolution {
	case "":
		match, err := h.findDuplicate(listID, req)
		if err != nil {
			h.logger.Error("duplicate check", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to check duplicates")
			return
		}
		if match != nil {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error": "duplicate item",
				"match": match,
			})
			return
		}
	case dedup.Merge:
		match, err := h.findDuplicate(listID, req)
		if err != nil {
			h.logger.Error("duplicate check", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to check duplicates")
			return
		}
		if match == nil {
			// The duplicate vanished between attempts; insert normally.
			break
		}
		item, err := h.lists.MergeQuantity(match.ExistingID, match.MergedQuantity)
		if err != nil {
			h.logger.Error("merge quantity", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to merge item")
			return
		}
		h.broadcastListUpdated(r, listID)
		writeJSON(w, http.StatusOK, item)
		return
	case dedup.KeepBoth:
		// Insert as a distinct item despite the match.
	case dedup.Cancel:
		w.WriteHeader(http.StatusNoContent)
		return
	default:
		writeError(w, http.StatusBadRequest, "unknown resolution")
		return
	}

	actorID := auth.UserID(r.Context())
	var addedBy *int64
	if actorID != 0 {
		addedBy = &actorID
	}
	item, err := h.lists.CreateItem(listID, store.CreateItemParams{
		Name:       req.Name,
		Unit:       req.Unit,
		Brand:      req.Brand,
		Notes:      req.Notes,
		CategoryID: req.CategoryID,
		Priority:   req.Priority,
		ProductRef: req.ProductRef,
		Quantity:   req.Quantity,
		AddedBy:    addedBy,
	})
	if err != nil {
		h.logger.Error("create item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create item")
		return
	}

	h.broadcastListUpdated(r, listID)
	writeJSON(w, http.StatusCreated, item)
}

func (h *ItemHandler) findDuplicate(listID string, req itemRequest) (*dedup.Match, error) {
	items, err := h.lists.ListItemsByList(listID)
	if err != nil {
		return nil, err
	}
	entries := make([]dedup.Entry, 0, len(items))
	for _, it := range items {
		entries = append(entries, dedup.Entry{
			ID:         it.ID,
			Name:       it.Name,
			Unit:       it.Unit,
			CategoryID: it.CategoryID,
			ProductRef: it.ProductRef,
			Quantity:   it.TotalQuantity,
			Status:     it.Status,
		})
	}
	return dedup.FindMatch(dedup.Candidate{
		Name:       req.Name,
		Unit:       req.Unit,
		CategoryID: req.CategoryID,
		ProductRef: req.ProductRef,
		Quantity:   req.Quantity,
	}, entries), nil
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, err := h.lists.GetItemByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.CategoryID == "" {
		req.CategoryID = existing.CategoryID
	}

	item, err := h.lists.UpdateItem(id, store.CreateItemParams{
		Name:       req.Name,
		Unit:       req.Unit,
		Brand:      req.Brand,
		Notes:      req.Notes,
		CategoryID: req.CategoryID,
		Priority:   req.Priority,
		ProductRef: req.ProductRef,
		Quantity:   req.Quantity,
	})
	if errors.Is(err, quantity.ErrInvalidAmount) {
		writeError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}
	if err != nil {
		h.logger.Error("update item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update item")
		return
	}

	h.broadcastListUpdated(r, existing.ListID)
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, err := h.lists.GetItemByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	if err := h.lists.DeleteItem(id); err != nil {
		h.logger.Error("delete item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete item")
		return
	}

	h.broadcastListUpdated(r, existing.ListID)
	w.WriteHeader(http.StatusNoContent)
}

type purchaseRequest struct {
	// Amount 0 means the default policy: the remainder for a partially
	// purchased item, the full quantity otherwise.
	Amount float64 `json:"amount"`
}

func (h *ItemHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req purchaseRequest
	// An empty body is fine and means the default amount.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actorID := auth.UserID(r.Context())
	var purchasedBy *int64
	if actorID != 0 {
		purchasedBy = &actorID
	}

	item, err := h.lists.Purchase(id, req.Amount, purchasedBy)
	if errors.Is(err, quantity.ErrInvalidAmount) {
		writeError(w, http.StatusBadRequest, "amount must not be negative")
		return
	}
	if errors.Is(err, store.ErrItemTerminal) {
		writeError(w, http.StatusConflict, "item is cancelled or not available")
		return
	}
	if err != nil {
		h.logger.Error("purchase item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to purchase item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	event := model.Event{
		Type:      model.EventPurchase,
		ListID:    item.ListID,
		ItemID:    item.ID,
		ActorID:   actorID,
		Quantity:  req.Amount,
		ItemName:  item.Name,
		ActorName: auth.UserName(r.Context()),
	}
	h.hub.Broadcast(event)
	go h.notifier.Notify(event)

	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Unpurchase(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.lists.Unpurchase(id, req.Amount)
	if errors.Is(err, quantity.ErrInvalidAmount) {
		writeError(w, http.StatusBadRequest, "amount must not be negative")
		return
	}
	if errors.Is(err, store.ErrItemTerminal) {
		writeError(w, http.StatusConflict, "item is cancelled or not available")
		return
	}
	if err != nil {
		h.logger.Error("unpurchase item", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to unpurchase item")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	event := model.Event{
		Type:      model.EventUnpurchase,
		ListID:    item.ListID,
		ItemID:    item.ID,
		ActorID:   auth.UserID(r.Context()),
		Quantity:  req.Amount,
		ItemName:  item.Name,
		ActorName: auth.UserName(r.Context()),
	}
	h.hub.Broadcast(event)
	go h.notifier.Notify(event)

	writeJSON(w, http.StatusOK, item)
}

type statusRequest struct {
	Status quantity.Status `json:"status"`
}

// SetStatus applies a terminal override (cancelled or not_available).
func (h *ItemHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !quantity.Terminal(req.Status) {
		writeError(w, http.StatusBadRequest, "status must be cancelled or not_available")
		return
	}

	existing, err := h.lists.GetItemByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}

	item, err := h.lists.SetTerminalStatus(id, req.Status)
	if err != nil {
		h.logger.Error("set status", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set status")
		return
	}

	h.broadcastListUpdated(r, item.ListID)
	writeJSON(w, http.StatusOK, item)
}

type batchRequest struct {
	ItemIDs []string `json:"item_ids"`
}

// BatchPurchase marks the given items fully purchased in one transaction.
func (h *ItemHandler) BatchPurchase(w http.ResponseWriter, r *http.Request) {
	listID := r.PathValue("list_id")

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, "item_ids is required")
		return
	}

	actorID := auth.UserID(r.Context())
	var purchasedBy *int64
	if actorID != 0 {
		purchasedBy = &actorID
	}

	changed, err := h.lists.BatchPurchase(listID, req.ItemIDs, purchasedBy)
	if err != nil {
		h.logger.Error("batch purchase", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to batch purchase")
		return
	}

	event := model.Event{
		Type:      model.EventBatchPurchase,
		ListID:    listID,
		ItemIDs:   req.ItemIDs,
		ActorID:   actorID,
		ActorName: auth.UserName(r.Context()),
	}
	h.hub.Broadcast(event)
	go h.notifier.Notify(event)

	writeJSON(w, http.StatusOK, map[string]int{"changed": changed})
}

type restoreRequest struct {
	Entries []model.UndoEntry `json:"entries"`
}

// Restore reverts items to their pre-batch purchase state, the server half
// of a client-side undo.
func (h *ItemHandler) Restore(w http.ResponseWriter, r *http.Request) {
	listID := r.PathValue("list_id")

	var req restoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "entries is required")
		return
	}

	if err := h.lists.RestoreItems(listID, req.Entries); err != nil {
		h.logger.Error("restore items", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to restore items")
		return
	}

	ids := make([]string, 0, len(req.Entries))
	for _, e := range req.Entries {
		ids = append(ids, e.ItemID)
	}
	event := model.Event{
		Type:      model.EventBatchUnpurchase,
		ListID:    listID,
		ItemIDs:   ids,
		ActorID:   auth.UserID(r.Context()),
		ActorName: auth.UserName(r.Context()),
	}
	h.hub.Broadcast(event)
	go h.notifier.Notify(event)

	w.WriteHeader(http.StatusNoContent)
}

func (h *ItemHandler) broadcastListUpdated(r *http.Request, listID string) {
	h.hub.Broadcast(model.Event{
		Type:      model.EventListUpdated,
		ListID:    listID,
		ActorID:   auth.UserID(r.Context()),
		ActorName: auth.UserName(r.Context()),
	})
}
