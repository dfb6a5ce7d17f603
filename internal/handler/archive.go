package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Destaw-dev/listali-sub002/internal/model"
	"github.com/Destaw-dev/listali-sub002/internal/store"
)

// Archiver uploads an encrypted snapshot of a list and returns its key.
type Archiver interface {
	Archive(ctx context.Context, list model.ShoppingList, items []model.Item, passphrase string) (string, error)
}

type ArchiveHandler struct {
	lists    *store.ListStore
	archiver Archiver
	logger   *slog.Logger
}

func NewArchiveHandler(lists *store.ListStore, archiver Archiver, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{lists: lists, archiver: archiver, logger: logger.With("component", "archive")}
}

type archiveRequest struct {
	Passphrase string `json:"passphrase"`
}

// Archive snapshots the list to off-site storage, encrypted with a
// passphrase that never leaves this request.
func (h *ArchiveHandler) Archive(w http.ResponseWriter, r *http.Request) {
	listID := r.PathValue("list_id")

	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Passphrase) < 8 {
		writeError(w, http.StatusBadRequest, "passphrase must be at least 8 characters")
		return
	}

	list, err := h.lists.GetList(listID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get list")
		return
	}
	if list == nil {
		writeError(w, http.StatusNotFound, "list not found")
		return
	}
	items, err := h.lists.ListItemsByList(listID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list items")
		return
	}

	key, err := h.archiver.Archive(r.Context(), *list, items, req.Passphrase)
	if err != nil {
		h.logger.Error("archive list", "list_id", listID, "error", err)
		writeError(w, http.StatusBadGateway, "failed to archive list")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}
