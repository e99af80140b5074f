package handler

import (
	"net/http"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/middleware"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/request"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/api/response"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/notify"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/rating"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/scoring"
)

// ScoreHandler handles score submission and ledger queries
type ScoreHandler struct {
	scoringService *scoring.Service
	ratingService  *rating.Service
	notifier       Notifier
}

// NewScoreHandler creates a new score handler
func NewScoreHandler(scoringService *scoring.Service, ratingService *rating.Service, notifier Notifier) *ScoreHandler {
	return &ScoreHandler{
		scoringService: scoringService,
		ratingService:  ratingService,
		notifier:       notifier,
	}
}

// Submit handles POST /api/v1/scores
func (h *ScoreHandler) Submit(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	var req request.SubmitScoreRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SongID == "" {
		WriteError(w, NewInvalidRequestError("song_id is required"))
		return
	}

	result, err := h.scoringService.Submit(r.Context(), player.ID, scoring.SubmitRequest{
		SubmissionID: req.SubmissionID,
		Chart:        model.ChartKey{SongID: req.SongID, Difficulty: model.Difficulty(req.Difficulty)},
		Result: model.PlayResult{
			Score: req.Score,
			Judgements: model.Judgements{
				ShinyPure: req.ShinyPure,
				Pure:      req.Pure,
				Far:       req.Far,
				Lost:      req.Lost,
			},
			ClearType: req.ClearType,
			Health:    req.Health,
			Speed:     req.Speed,
		},
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	breakdown, err := h.ratingService.Publish(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	resp := response.SubmitFromResult(result, breakdown)
	if !result.Replayed {
		h.notifier.Publish(player.ID, notify.EventScore, resp)
	}
	response.JSON(w, http.StatusOK, resp)
}

// Best handles GET /api/v1/scores/best
func (h *ScoreHandler) Best(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	limit, err := queryLimit(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	scores, err := h.scoringService.BestScores(r.Context(), player.ID, limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.BestScoresFromModel(scores))
}

// Recent handles GET /api/v1/scores/recent
func (h *ScoreHandler) Recent(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	limit, err := queryLimit(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	plays, err := h.scoringService.RecentPlays(r.Context(), player.ID, limit)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RecentPlaysFromModel(plays))
}

// Rating handles GET /api/v1/rating
func (h *ScoreHandler) Rating(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())

	breakdown, err := h.ratingService.Overall(r.Context(), player.ID)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, breakdown)
}
