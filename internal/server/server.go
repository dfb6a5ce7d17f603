package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Destaw-dev/listali-sub002/internal/archive"
	"github.com/Destaw-dev/listali-sub002/internal/handler"
	"github.com/Destaw-dev/listali-sub002/internal/middleware"
	"github.com/Destaw-dev/listali-sub002/internal/model"
	"github.com/Destaw-dev/listali-sub002/internal/push"
	"github.com/Destaw-dev/listali-sub002/internal/realtime"
	"github.com/Destaw-dev/listali-sub002/internal/store"
)

// PushConfig holds VAPID configuration. Empty keys disable web push.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

type Server struct {
	db           *sql.DB
	hub          *realtime.Hub
	authH        *handler.AuthHandler
	listH        *handler.ListHandler
	itemH        *handler.ItemHandler
	pushH        *handler.PushHandler
	archiveH     *handler.ArchiveHandler
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, pushCfg PushConfig, archiveCfg archive.S3Config, logger *slog.Logger) *Server {
	hub := realtime.NewHub(logger.With("component", "realtime"))

	listStore := store.NewListStore(db)
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	pushStore := store.NewPushStore(db)

	var notifier handler.Notifier = noopNotifier{}
	var pushH *handler.PushHandler
	if pushCfg.VAPIDPublicKey != "" && pushCfg.VAPIDPrivateKey != "" {
		pushSvc := push.NewService(pushCfg.VAPIDPublicKey, pushCfg.VAPIDPrivateKey, pushCfg.Subscriber)
		notifier = push.NewFanout(pushSvc, pushStore, logger)
		pushH = handler.NewPushHandler(pushSvc, pushStore, logger)
	}

	var archiveH *handler.ArchiveHandler
	if archiveCfg.Bucket != "" && archiveCfg.AccessKey != "" && archiveCfg.SecretKey != "" {
		archiveH = handler.NewArchiveHandler(listStore, archive.New(archiveCfg, logger), logger)
	}

	return &Server{
		db:           db,
		hub:          hub,
		authH:        handler.NewAuthHandler(userStore, sessionStore, logger),
		listH:        handler.NewListHandler(listStore, hub, logger),
		itemH:        handler.NewItemHandler(listStore, hub, notifier, logger),
		pushH:        pushH,
		archiveH:     archiveH,
		sessionStore: sessionStore,
		userStore:    userStore,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// noopNotifier stands in when web push is not configured.
type noopNotifier struct{}

func (noopNotifier) Notify(model.Event) {}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Hub returns the realtime hub.
func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /api/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/logout", s.authH.Logout)

	// List API routes
	mux.HandleFunc("POST /api/lists", s.listH.Create)
	mux.HandleFunc("GET /api/lists", s.listH.List)
	mux.HandleFunc("GET /api/lists/{list_id}", s.listH.Get)
	mux.HandleFunc("PUT /api/lists/{list_id}", s.listH.Rename)
	mux.HandleFunc("DELETE /api/lists/{list_id}", s.listH.Delete)

	// Item API routes
	mux.HandleFunc("POST /api/lists/{list_id}/items", s.itemH.Create)
	mux.HandleFunc("PUT /api/items/{id}", s.itemH.Update)
	mux.HandleFunc("DELETE /api/items/{id}", s.itemH.Delete)
	mux.HandleFunc("POST /api/items/{id}/purchase", s.itemH.Purchase)
	mux.HandleFunc("POST /api/items/{id}/unpurchase", s.itemH.Unpurchase)
	mux.HandleFunc("POST /api/items/{id}/status", s.itemH.SetStatus)
	mux.HandleFunc("POST /api/lists/{list_id}/batch-purchase", s.itemH.BatchPurchase)
	mux.HandleFunc("POST /api/lists/{list_id}/restore", s.itemH.Restore)

	// Live sync
	mux.HandleFunc("GET /api/sync", realtime.Handler(s.hub, s.logger))

	// Off-site snapshots (only when S3 credentials are configured)
	if s.archiveH != nil {
		mux.HandleFunc("POST /api/lists/{list_id}/archive", s.archiveH.Archive)
	}

	// Web push routes (only when VAPID keys are configured)
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/key", s.pushH.VAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
	}
}
