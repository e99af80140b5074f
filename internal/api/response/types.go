package response

import (
	"time"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/rating"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/scoring"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/stamina"
	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/services/world"
)

// Player represents a player in API responses
type Player struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Rating     float64        `json:"rating"`
	CurrentMap string         `json:"current_map,omitempty"`
	Inventory  map[string]int `json:"inventory"`
	Stamina    stamina.Status `json:"stamina"`
}

// PlayerFromModel converts a model.Player together with its stamina status
func PlayerFromModel(p *model.Player, st stamina.Status) Player {
	inv := p.Inventory
	if inv == nil {
		inv = map[string]int{}
	}
	return Player{
		ID:         string(p.ID),
		Name:       p.Name,
		Rating:     p.Rating,
		CurrentMap: p.CurrentMap,
		Inventory:  inv,
		Stamina:    st,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	PlayerID     string     `json:"player_id"`
	SessionToken string     `json:"session_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *model.Session) AuthResponse {
	resp := AuthResponse{
		PlayerID:     string(s.PlayerID),
		SessionToken: s.Token,
	}
	if !s.ExpiresAt.IsZero() {
		t := s.ExpiresAt
		resp.ExpiresAt = &t
	}
	return resp
}

// Submit is the response for a score submission
type Submit struct {
	SubmissionID string  `json:"submission_id"`
	Rating       float64 `json:"rating"`
	Improved     bool    `json:"improved"`
	Replayed     bool    `json:"replayed"`
	Overall      float64 `json:"overall_rating"`
}

// SubmitFromResult merges the submission outcome with the published rating
func SubmitFromResult(r *scoring.SubmitResult, b *rating.Breakdown) Submit {
	return Submit{
		SubmissionID: r.SubmissionID,
		Rating:       r.Rating,
		Improved:     r.Improved,
		Replayed:     r.Replayed,
		Overall:      b.Overall,
	}
}

// Judgements are per-note judgement counts
type Judgements struct {
	ShinyPure int `json:"shiny_perfect_count"`
	Pure      int `json:"perfect_count"`
	Far       int `json:"near_count"`
	Lost      int `json:"miss_count"`
}

func judgementsFromModel(j model.Judgements) Judgements {
	return Judgements{ShinyPure: j.ShinyPure, Pure: j.Pure, Far: j.Far, Lost: j.Lost}
}

// BestScore is one entry of the best-score table
type BestScore struct {
	SongID     string     `json:"song_id"`
	Difficulty int        `json:"difficulty"`
	Score      int        `json:"score"`
	Judgements Judgements `json:"judgements"`
	ClearType  int        `json:"clear_type"`
	Rating     float64    `json:"rating"`
	AchievedAt time.Time  `json:"achieved_at"`
}

// BestScoresFromModel converts best-score entries, keeping their order
func BestScoresFromModel(scores []model.BestScore) []BestScore {
	out := make([]BestScore, len(scores))
	for i, b := range scores {
		out[i] = BestScore{
			SongID:     b.Chart.SongID,
			Difficulty: int(b.Chart.Difficulty),
			Score:      b.Score,
			Judgements: judgementsFromModel(b.Judgements),
			ClearType:  b.ClearType,
			Rating:     b.Rating,
			AchievedAt: b.AchievedAt,
		}
	}
	return out
}

// RecentPlay is one entry of the recent-play ring
type RecentPlay struct {
	SubmissionID string     `json:"submission_id"`
	SongID       string     `json:"song_id"`
	Difficulty   int        `json:"difficulty"`
	Score        int        `json:"score"`
	Judgements   Judgements `json:"judgements"`
	ClearType    int        `json:"clear_type"`
	Speed        int        `json:"speed,omitempty"`
	Rating       float64    `json:"rating"`
	PlayedAt     time.Time  `json:"played_at"`
}

// RecentPlaysFromModel converts recent plays, newest first
func RecentPlaysFromModel(plays []model.RecentPlay) []RecentPlay {
	out := make([]RecentPlay, len(plays))
	for i, p := range plays {
		out[i] = RecentPlay{
			SubmissionID: p.SubmissionID,
			SongID:       p.Chart.SongID,
			Difficulty:   int(p.Chart.Difficulty),
			Score:        p.Score,
			Judgements:   judgementsFromModel(p.Judgements),
			ClearType:    p.ClearType,
			Speed:        p.Speed,
			Rating:       p.Rating,
			PlayedAt:     p.PlayedAt,
		}
	}
	return out
}

// MapProgress is a player's traversal state on a map
type MapProgress struct {
	MapID       string     `json:"map_id"`
	Position    int        `json:"position"`
	Capture     int        `json:"capture"`
	Cleared     bool       `json:"cleared"`
	Locked      bool       `json:"locked"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// MapProgressFromModel converts model.MapProgress
func MapProgressFromModel(p *model.MapProgress) MapProgress {
	out := MapProgress{
		MapID:    p.MapID,
		Position: p.Position,
		Capture:  p.Capture,
		Cleared:  p.Cleared,
		Locked:   p.Locked,
	}
	if p.Locked && !p.LockedUntil.IsZero() {
		t := p.LockedUntil
		out.LockedUntil = &t
	}
	return out
}

// Step is the response for a step or climb
type Step struct {
	Progress     MapProgress        `json:"progress"`
	Rewards      model.RewardBundle `json:"rewards"`
	StaminaSpent int                `json:"stamina_spent"`
	StaminaBonus int                `json:"stamina_bonus"`
}

// StepFromResult converts world.StepResult
func StepFromResult(r *world.StepResult) Step {
	rewards := r.Rewards
	if rewards == nil {
		rewards = model.RewardBundle{}
	}
	return Step{
		Progress:     MapProgressFromModel(&r.Progress),
		Rewards:      rewards,
		StaminaSpent: r.StaminaSpent,
		StaminaBonus: r.StaminaBonus,
	}
}

// WorldMap summarises a map for listings
type WorldMap struct {
	ID             string `json:"id"`
	StepCount      int    `json:"step_count"`
	CaptureCeiling int    `json:"capture_ceiling"`
}

// WorldMapsFromModel converts catalog maps
func WorldMapsFromModel(maps []model.WorldMap) []WorldMap {
	out := make([]WorldMap, len(maps))
	for i := range maps {
		out[i] = WorldMap{
			ID:             maps[i].ID,
			StepCount:      len(maps[i].Steps),
			CaptureCeiling: maps[i].Ceiling(),
		}
	}
	return out
}

// Health reports liveness and how many maps the catalog loaded
type Health struct {
	Status string `json:"status"`
	Maps   int    `json:"maps"`
}

// Ban is the response for a moderation ban
type Ban struct {
	PlayerID string    `json:"player_id"`
	Reason   string    `json:"reason"`
	Until    time.Time `json:"until"`
	Offenses int       `json:"offenses"`
}
