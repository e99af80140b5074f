package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/handler"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/middleware"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/response"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/notify"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/auth"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/rating"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/scoring"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/stamina"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/world"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger *slog.Logger
	// AdminKey guards the moderation routes; empty disables them
	AdminKey string

	AuthService    *auth.Service
	StaminaService *stamina.Service
	ScoringService *scoring.Service
	RatingService  *rating.Service
	WorldService   *world.Service
	Maps           handler.MapLister
	Notifier       *notify.Notifier
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	playerHandler := handler.NewPlayerHandler(cfg.AuthService, cfg.StaminaService)
	staminaHandler := handler.NewStaminaHandler(cfg.StaminaService, cfg.Notifier)
	scoreHandler := handler.NewScoreHandler(cfg.ScoringService, cfg.RatingService, cfg.Notifier)
	worldHandler := handler.NewWorldHandler(cfg.WorldService, cfg.Maps, cfg.Notifier)
	adminHandler := handler.NewAdminHandler(cfg.AuthService, cfg.WorldService, cfg.Notifier)
	eventsHandler := handler.NewEventsHandler(cfg.Notifier)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	adminMiddleware := middleware.AdminKey(cfg.AdminKey)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	// Public routes
	api.HandleFunc("/players/register", playerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/players/login", playerHandler.Login).Methods(http.MethodPost)
	api.HandleFunc("/health", healthHandler(cfg.Maps)).Methods(http.MethodGet)

	// Everything below requires a verified, unbanned session
	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware)

	protected.HandleFunc("/players/logout", playerHandler.Logout).Methods(http.MethodPost)
	protected.HandleFunc("/players/me", playerHandler.GetMe).Methods(http.MethodGet)

	protected.HandleFunc("/stamina", staminaHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/stamina/bonus", staminaHandler.UseBonus).Methods(http.MethodPost)

	protected.HandleFunc("/scores", scoreHandler.Submit).Methods(http.MethodPost)
	protected.HandleFunc("/scores/best", scoreHandler.Best).Methods(http.MethodGet)
	protected.HandleFunc("/scores/recent", scoreHandler.Recent).Methods(http.MethodGet)
	protected.HandleFunc("/rating", scoreHandler.Rating).Methods(http.MethodGet)

	protected.HandleFunc("/world/maps", worldHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/world/maps/{map}", worldHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/world/maps/{map}/enter", worldHandler.Enter).Methods(http.MethodPost)
	protected.HandleFunc("/world/maps/{map}/step", worldHandler.Step).Methods(http.MethodPost)
	protected.HandleFunc("/world/maps/{map}/climb", worldHandler.Climb).Methods(http.MethodPost)

	protected.HandleFunc("/events", eventsHandler.Stream).Methods(http.MethodGet)

	// Moderation routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(adminMiddleware)
	admin.HandleFunc("/players/{id}/ban", adminHandler.Ban).Methods(http.MethodPost)
	admin.HandleFunc("/players/{id}/unban", adminHandler.Unban).Methods(http.MethodPost)
	admin.HandleFunc("/players/{id}/maps/{map}/lock", adminHandler.LockMap).Methods(http.MethodPost)
	admin.HandleFunc("/players/{id}/maps/{map}/unlock", adminHandler.UnlockMap).Methods(http.MethodPost)

	return r
}

func healthHandler(maps handler.MapLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, response.Health{Status: "ok", Maps: len(maps.Maps())})
	}
}
