package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error to w
func PrintError(w io.Writer, format string, err error) {
	if format == "json" {
		errData := map[string]any{"error": map[string]string{"message": err.Error()}}
		if apiErr, ok := err.(*APIError); ok {
			errData = map[string]any{"error": apiErr}
		}
		data, _ := json.Marshal(errData)
		_, _ = fmt.Fprintln(w, string(data))
	} else {
		_, _ = fmt.Fprintf(w, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		o.printf("%s\n", data)
	} else {
		o.printf("%s\n", msg)
	}
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case AuthResult:
		o.printf("Player: %s\nToken: %s\n", v.PlayerID, v.SessionToken)
		if v.ExpiresAt != nil {
			o.printf("Expires: %s\n", formatTime(*v.ExpiresAt))
		}
	case Stamina:
		o.printStamina(v)
	case SubmitResult:
		o.printSubmit(v)
	case []BestScore:
		o.printBest(v)
	case []RecentPlay:
		o.printRecent(v)
	case RatingBreakdown:
		o.printf("Rating: %.2f\n", v.Overall)
		o.printf("  best %d plays, sum %.4f\n", v.BestCount, v.BestSum)
		o.printf("  recent %d plays, sum %.4f\n", v.RecentCount, v.RecentSum)
	case []WorldMap:
		for _, m := range v {
			o.printf("%-24s %3d steps  ceiling %d\n", m.ID, m.StepCount, m.CaptureCeiling)
		}
	case MapProgress:
		o.printProgress(v)
	case StepResult:
		o.printStep(v)
	case BanResult:
		o.printf("Player %s banned until %s (offense %d)\n", v.PlayerID, formatTime(v.Until), v.Offenses)
		if v.Reason != "" {
			o.printf("Reason: %s\n", v.Reason)
		}
	case HealthResult:
		o.printf("Status: %s\nMaps: %d\n", v.Status, v.Maps)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Rating     float64        `json:"rating"`
	CurrentMap string         `json:"current_map,omitempty"`
	Inventory  map[string]int `json:"inventory"`
	Stamina    Stamina        `json:"stamina"`
}

// AuthResult is returned by register and login
type AuthResult struct {
	PlayerID     string     `json:"player_id"`
	SessionToken string     `json:"session_token"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// Stamina response type
type Stamina struct {
	Stamina      int       `json:"stamina"`
	Max          int       `json:"max_stamina"`
	FullAt       time.Time `json:"stamina_full_at"`
	BonusReady   bool      `json:"bonus_ready"`
	BonusReadyAt time.Time `json:"bonus_ready_at"`
}

// SubmitResult response type
type SubmitResult struct {
	SubmissionID string  `json:"submission_id"`
	Rating       float64 `json:"rating"`
	Improved     bool    `json:"improved"`
	Replayed     bool    `json:"replayed"`
	Overall      float64 `json:"overall_rating"`
}

// Judgements response type
type Judgements struct {
	ShinyPure int `json:"shiny_perfect_count"`
	Pure      int `json:"perfect_count"`
	Far       int `json:"near_count"`
	Lost      int `json:"miss_count"`
}

// BestScore response type
type BestScore struct {
	SongID     string     `json:"song_id"`
	Difficulty int        `json:"difficulty"`
	Score      int        `json:"score"`
	Judgements Judgements `json:"judgements"`
	ClearType  int        `json:"clear_type"`
	Rating     float64    `json:"rating"`
	AchievedAt time.Time  `json:"achieved_at"`
}

// RecentPlay response type
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

// RatingBreakdown response type
type RatingBreakdown struct {
	Overall     float64 `json:"overall"`
	BestSum     float64 `json:"best_sum"`
	BestCount   int     `json:"best_count"`
	RecentSum   float64 `json:"recent_sum"`
	RecentCount int     `json:"recent_count"`
}

// WorldMap response type
type WorldMap struct {
	ID             string `json:"id"`
	StepCount      int    `json:"step_count"`
	CaptureCeiling int    `json:"capture_ceiling"`
}

// MapProgress response type
type MapProgress struct {
	MapID       string     `json:"map_id"`
	Position    int        `json:"position"`
	Capture     int        `json:"capture"`
	Cleared     bool       `json:"cleared"`
	Locked      bool       `json:"locked"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// Reward response type
type Reward struct {
	ItemID string `json:"item_id"`
	Amount int    `json:"amount"`
}

// StepResult response type
type StepResult struct {
	Progress     MapProgress `json:"progress"`
	Rewards      []Reward    `json:"rewards"`
	StaminaSpent int         `json:"stamina_spent"`
	StaminaBonus int         `json:"stamina_bonus"`
}

// BanResult response type
type BanResult struct {
	PlayerID string    `json:"player_id"`
	Reason   string    `json:"reason"`
	Until    time.Time `json:"until"`
	Offenses int       `json:"offenses"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
	Maps   int    `json:"maps"`
}

var difficultyNames = []string{"PST", "PRS", "FTR", "BYD", "ETR"}

func difficultyName(d int) string {
	if d >= 0 && d < len(difficultyNames) {
		return difficultyNames[d]
	}
	return fmt.Sprintf("D%d", d)
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}

func (o *Output) printPlayer(p Player) {
	o.printf("Player: %s (%s)\n", p.Name, p.ID)
	o.printf("Rating: %.2f\n", p.Rating)
	if p.CurrentMap != "" {
		o.printf("Map: %s\n", p.CurrentMap)
	}
	o.printStamina(p.Stamina)
	if len(p.Inventory) > 0 {
		o.printf("Inventory:\n")
		for item, n := range p.Inventory {
			o.printf("  %s x%d\n", item, n)
		}
	}
}

func (o *Output) printStamina(s Stamina) {
	o.printf("Stamina: %d/%d", s.Stamina, s.Max)
	if s.Stamina < s.Max {
		o.printf(" (full at %s)", formatTime(s.FullAt))
	}
	o.printf("\n")
	if s.BonusReady {
		o.printf("Bonus: ready\n")
	} else {
		o.printf("Bonus: ready at %s\n", formatTime(s.BonusReadyAt))
	}
}

func (o *Output) printSubmit(s SubmitResult) {
	o.printf("Submission: %s\n", s.SubmissionID)
	o.printf("Play rating: %.4f\n", s.Rating)
	switch {
	case s.Replayed:
		o.printf("Already recorded\n")
	case s.Improved:
		o.printf("New best!\n")
	}
	o.printf("Overall rating: %.2f\n", s.Overall)
}

func (o *Output) printBest(scores []BestScore) {
	for i, b := range scores {
		o.printf("%2d. %-20s %s %8d  %.4f\n", i+1, b.SongID, difficultyName(b.Difficulty), b.Score, b.Rating)
	}
}

func (o *Output) printRecent(plays []RecentPlay) {
	for _, p := range plays {
		o.printf("%s  %-20s %s %8d  %.4f\n", formatTime(p.PlayedAt), p.SongID, difficultyName(p.Difficulty), p.Score, p.Rating)
	}
}

func (o *Output) printProgress(p MapProgress) {
	o.printf("Map: %s\n", p.MapID)
	o.printf("Position: %d (capture %d)\n", p.Position, p.Capture)
	if p.Cleared {
		o.printf("Cleared\n")
	}
	if p.Locked {
		if p.LockedUntil != nil {
			o.printf("Locked until %s\n", formatTime(*p.LockedUntil))
		} else {
			o.printf("Locked\n")
		}
	}
}

func (o *Output) printStep(s StepResult) {
	o.printProgress(s.Progress)
	o.printf("Stamina spent: %d", s.StaminaSpent)
	if s.StaminaBonus > 0 {
		o.printf(" (+%d returned)", s.StaminaBonus)
	}
	o.printf("\n")
	for _, r := range s.Rewards {
		o.printf("  + %s x%d\n", r.ItemID, r.Amount)
	}
}
