package handler

import (
	"net/http"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/middleware"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/response"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/notify"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/stamina"
)

// StaminaHandler handles stamina endpoints
type StaminaHandler struct {
	staminaService *stamina.Service
	notifier       Notifier
}

// NewStaminaHandler creates a new stamina handler
func NewStaminaHandler(staminaService *stamina.Service, notifier Notifier) *StaminaHandler {
	return &StaminaHandler{staminaService: staminaService, notifier: notifier}
}

// Get handles GET /api/v1/stamina
func (h *StaminaHandler) Get(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	status, err := h.staminaService.Get(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, status)
}

// UseBonus handles POST /api/v1/stamina/bonus
func (h *StaminaHandler) UseBonus(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	status, err := h.staminaService.UseBonus(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	h.notifier.Publish(player.ID, notify.EventStamina, status)
	response.JSON(w, http.StatusOK, status)
}
