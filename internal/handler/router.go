package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/parleychat/parley/internal/config"
	"github.com/parleychat/parley/internal/handler/chat"
	middlewarePkg "github.com/parleychat/parley/internal/middleware"
	"github.com/parleychat/parley/internal/service/relay"
)

// NewRouter wires the WebSocket endpoint and the read-only REST API to
// the hub.
func NewRouter(hub *relay.Hub, cfg config.RelayConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(hub, cfg.APIHistoryMax)
	wsHandler := chat.NewWebSocketHandler(hub, cfg.SendQueueSize)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
	})
	wsHandler.RegisterWebSocketRoutes(r)

	return r
}
