package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Destaw-dev/listali-sub002/internal/model"
)

// Broadcaster fans an event out to connected WebSocket clients.
type Broadcaster interface {
	Broadcast(event model.Event)
}

// Notifier delivers an event to subscribed push endpoints.
type Notifier interface {
	Notify(event model.Event)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
