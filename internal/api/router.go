package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/seawire/broadside/internal/api/handler"
	"github.com/seawire/broadside/internal/api/middleware"
	"github.com/seawire/broadside/internal/services/auth"
	"github.com/seawire/broadside/internal/services/users"
	"github.com/seawire/broadside/internal/transport/ws"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger       *slog.Logger
	AuthService  *auth.Service
	UsersService *users.Service
	Hub          *ws.Hub
}

// NewRouter creates a new router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	userHandler := handler.NewUserHandler(cfg.UsersService, cfg.AuthService)
	wsHandler := handler.NewWSHandler(cfg.AuthService, cfg.Hub, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Account routes (no auth required for registration and login)
	api.HandleFunc("/users", userHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", userHandler.Login).Methods(http.MethodPost)

	// Protected account routes
	usersProtected := api.PathPrefix("/users").Subrouter()
	usersProtected.Use(authMiddleware)
	usersProtected.HandleFunc("", userHandler.List).Methods(http.MethodGet)
	usersProtected.HandleFunc("/me", userHandler.GetMe).Methods(http.MethodGet)
	usersProtected.HandleFunc("/{id}", userHandler.Get).Methods(http.MethodGet)
	usersProtected.HandleFunc("/{id}", userHandler.Update).Methods(http.MethodPatch)
	usersProtected.HandleFunc("/{id}", userHandler.Delete).Methods(http.MethodDelete)

	// Game websocket; authenticates its own token so the upgrade can
	// reject before any state is touched
	r.HandleFunc("/ws", wsHandler.Serve).Methods(http.MethodGet)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
