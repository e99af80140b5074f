package handler

import (
	"net/http"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/middleware"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
)

// Notifier pushes progression events to a player's open streams
type Notifier interface {
	Publish(playerID model.PlayerID, event string, payload any)
	Disconnect(playerID model.PlayerID)
	Serve(w http.ResponseWriter, r *http.Request, playerID model.PlayerID)
}

// EventsHandler serves the notification stream
type EventsHandler struct {
	notifier Notifier
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(notifier Notifier) *EventsHandler {
	return &EventsHandler{notifier: notifier}
}

// Stream handles GET /api/v1/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	h.notifier.Serve(w, r, player.ID)
}
