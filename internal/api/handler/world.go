package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/middleware"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/request"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/response"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/notify"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/world"
)

// MapLister lists the available world maps
type MapLister interface {
	Maps() []model.WorldMap
}

// WorldHandler handles world map traversal
type WorldHandler struct {
	worldService *world.Service
	maps         MapLister
	notifier     Notifier
}

// NewWorldHandler creates a new world handler
func NewWorldHandler(worldService *world.Service, maps MapLister, notifier Notifier) *WorldHandler {
	return &WorldHandler{
		worldService: worldService,
		maps:         maps,
		notifier:     notifier,
	}
}

// List handles GET /api/v1/world/maps
func (h *WorldHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.WorldMapsFromModel(h.maps.Maps()))
}

// Get handles GET /api/v1/world/maps/{map}
func (h *WorldHandler) Get(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	progress, err := h.worldService.Progress(r.Context(), player.ID, mux.Vars(r)["map"])
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MapProgressFromModel(progress))
}

// Enter handles POST /api/v1/world/maps/{map}/enter
func (h *WorldHandler) Enter(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	progress, err := h.worldService.Enter(r.Context(), player.ID, mux.Vars(r)["map"])
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.MapProgressFromModel(progress))
}

// Step handles POST /api/v1/world/maps/{map}/step
func (h *WorldHandler) Step(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, h.worldService.EnterStep)
}

// Climb handles POST /api/v1/world/maps/{map}/climb
func (h *WorldHandler) Climb(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, h.worldService.Climb)
}

type advanceFunc func(ctx context.Context, id model.PlayerID, req world.StepRequest) (*world.StepResult, error)

func (h *WorldHandler) advance(w http.ResponseWriter, r *http.Request, fn advanceFunc) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.StepRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := fn(r.Context(), player.ID, world.StepRequest{
		MapID:  mux.Vars(r)["map"],
		Target: req.Target,
		PlayID: req.PlayID,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	resp := response.StepFromResult(result)
	h.notifier.Publish(player.ID, notify.EventMap, resp)
	response.JSON(w, http.StatusOK, resp)
}
