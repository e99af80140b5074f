package handler

import (
	"net/http"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/middleware"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/request"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/response"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/auth"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/stamina"
)

// PlayerHandler handles registration, login and the player's own profile
type PlayerHandler struct {
	authService    *auth.Service
	staminaService *stamina.Service
}

// NewPlayerHandler creates a new player handler
func NewPlayerHandler(authService *auth.Service, staminaService *stamina.Service) *PlayerHandler {
	return &PlayerHandler{
		authService:    authService,
		staminaService: staminaService,
	}
}

// Register handles POST /api/v1/players/register
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Name == "" {
		WriteError(w, NewInvalidRequestError("name is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	session, err := h.authService.Register(r.Context(), auth.RegisterRequest{
		Name:     req.Name,
		Secret:   req.Password,
		Email:    req.Email,
		DeviceID: request.DeviceID(r, req.DeviceID),
		Address:  request.ClientAddress(r),
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthResponseFromSession(session))
}

// Login handles POST /api/v1/players/login
func (h *PlayerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	if req.Name == "" || req.Password == "" {
		WriteError(w, NewInvalidRequestError("name and password are required"))
		return
	}

	session, err := h.authService.Login(r.Context(), auth.LoginRequest{
		Name:     req.Name,
		Secret:   req.Password,
		DeviceID: request.DeviceID(r, req.DeviceID),
		Address:  request.ClientAddress(r),
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthResponseFromSession(session))
}

// Logout handles POST /api/v1/players/logout
func (h *PlayerHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), middleware.GetToken(r.Context())); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// GetMe handles GET /api/v1/players/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	status, err := h.staminaService.Get(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerFromModel(player, *status))
}
