package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/request"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/response"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/notify"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/auth"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/world"
)

// AdminHandler handles moderation endpoints guarded by the admin key
type AdminHandler struct {
	authService  *auth.Service
	worldService *world.Service
	notifier     Notifier
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(authService *auth.Service, worldService *world.Service, notifier Notifier) *AdminHandler {
	return &AdminHandler{
		authService:  authService,
		worldService: worldService,
		notifier:     notifier,
	}
}

func playerIDVar(r *http.Request) model.PlayerID {
	return model.PlayerID(mux.Vars(r)["id"])
}

// Ban handles POST /api/v1/admin/players/{id}/ban
func (h *AdminHandler) Ban(w http.ResponseWriter, r *http.Request) {
	var req request.BanRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Reason == "" {
		WriteError(w, NewInvalidRequestError("reason is required"))
		return
	}

	id := playerIDVar(r)
	ban, err := h.authService.Ban(r.Context(), id, req.Reason)
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := response.Ban{
		PlayerID: string(id),
		Reason:   ban.Reason,
		Until:    ban.Until,
		Offenses: ban.Offenses,
	}
	// Open streams learn about the ban and are then closed
	h.notifier.Publish(id, notify.EventBanned, resp)
	h.notifier.Disconnect(id)
	response.JSON(w, http.StatusOK, resp)
}

// Unban handles POST /api/v1/admin/players/{id}/unban
func (h *AdminHandler) Unban(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Unban(r.Context(), playerIDVar(r)); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// LockMap handles POST /api/v1/admin/players/{id}/maps/{map}/lock
func (h *AdminHandler) LockMap(w http.ResponseWriter, r *http.Request) {
	var req request.LockRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	var until time.Time
	if req.Until != nil {
		until = *req.Until
	}

	progress, err := h.worldService.Lock(r.Context(), playerIDVar(r), mux.Vars(r)["map"], until)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MapProgressFromModel(progress))
}

// UnlockMap handles POST /api/v1/admin/players/{id}/maps/{map}/unlock
func (h *AdminHandler) UnlockMap(w http.ResponseWriter, r *http.Request) {
	progress, err := h.worldService.Unlock(r.Context(), playerIDVar(r), mux.Vars(r)["map"])
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MapProgressFromModel(progress))
}
