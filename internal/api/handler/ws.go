package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/seawire/broadside/internal/api/apierr"
	"github.com/seawire/broadside/internal/api/middleware"
	"github.com/seawire/broadside/internal/services/auth"
	"github.com/seawire/broadside/internal/transport/ws"
)

// WSHandler upgrades authenticated connections and hands them to the hub
type WSHandler struct {
	authService *auth.Service
	hub         *ws.Hub
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new websocket handler
func NewWSHandler(authService *auth.Service, hub *ws.Hub, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		authService: authService,
		hub:         hub,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin policy is enforced by the deployment's proxy
				return true
			},
		},
	}
}

// Serve handles GET /ws. An invalid credential rejects the connection
// before the upgrade; it never touches game state.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractToken(r)
	if token == "" {
		apierr.WriteError(w, apierr.NewUnauthorizedError())
		return
	}

	userID, err := h.authService.Authenticate(token)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	h.hub.Register(conn, userID)
}
