package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	ws "github.com/coder/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/Destaw-dev/listali-sub002/internal/model"
)

// EventHandler consumes one sync event. A returned error is logged, not
// fatal to the subscription.
type EventHandler interface {
	Handle(ctx context.Context, ev model.Event) error
}

// Subscriber holds a WebSocket subscription to a list's sync events and
// keeps it alive across disconnects with exponential backoff.
type Subscriber struct {
	baseURL string
	token   string
	listID  string
	handler EventHandler
	logger  *slog.Logger
}

func NewSubscriber(baseURL, token, listID string, handler EventHandler, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		listID:  listID,
		handler: handler,
		logger:  logger.With("component", "subscriber"),
	}
}

// Run connects and consumes events until ctx is cancelled. Each dropped
// connection is re-dialed with exponential backoff; a fresh connection
// resets the backoff.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		conn, err := s.dial(ctx)
		if err != nil {
			// dial only fails like this when ctx is done
			return err
		}

		s.consume(ctx, conn)
		conn.Close(ws.StatusNormalClosure, "")

		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Info("connection lost, reconnecting")
	}
}

// dial retries until a connection is established or ctx is cancelled.
func (s *Subscriber) dial(ctx context.Context) (*ws.Conn, error) {
	url := s.wsURL()

	var conn *ws.Conn
	backoff := retry.WithCappedDuration(30*time.Second, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, _, err := ws.Dial(ctx, url, nil)
		if err != nil {
			s.logger.Warn("dial sync endpoint", "error", err)
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Tell the hub which list this client wants events for.
	sub, _ := json.Marshal(map[string]string{"action": "subscribe", "list_id": s.listID})
	if err := conn.Write(ctx, ws.MessageText, sub); err != nil {
		conn.Close(ws.StatusInternalError, "subscribe failed")
		return nil, err
	}
	return conn, nil
}

func (s *Subscriber) wsURL() string {
	url := s.baseURL + "/api/sync?token=" + s.token
	url = strings.Replace(url, "https://", "wss://", 1)
	return strings.Replace(url, "http://", "ws://", 1)
}

// consume reads events until the connection drops or ctx is cancelled.
func (s *Subscriber) consume(ctx context.Context, conn *ws.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var ev model.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Warn("malformed sync event", "error", err)
			continue
		}
		if err := s.handler.Handle(ctx, ev); err != nil {
			s.logger.Warn("handle sync event", "type", ev.Type, "error", err)
		}
	}
}
