package model

import (
	"fmt"
	"time"
)

// Difficulty of a chart
type Difficulty int

const (
	DifficultyPast Difficulty = iota
	DifficultyPresent
	DifficultyFuture
	DifficultyBeyond
	DifficultyEternal
)

// Valid reports whether d names a known difficulty
func (d Difficulty) Valid() bool {
	return d >= DifficultyPast && d <= DifficultyEternal
}

// ChartKey identifies a chart: one difficulty of one song
type ChartKey struct {
	SongID     string
	Difficulty Difficulty
}

func (k ChartKey) String() string {
	return fmt.Sprintf("%s:%d", k.SongID, k.Difficulty)
}

// Chart is static reference data for a playable chart
type Chart struct {
	SongID     string     `json:"song_id"`
	Difficulty Difficulty `json:"difficulty"`
	Constant   float64    `json:"constant"`
	NoteCount  int        `json:"note_count"`
}

// Key returns the chart's key
func (c *Chart) Key() ChartKey {
	return ChartKey{SongID: c.SongID, Difficulty: c.Difficulty}
}

// Judgements are the per-note judgement counts of a play
type Judgements struct {
	ShinyPure int
	Pure      int
	Far       int
	Lost      int
}

// PlayResult is the raw outcome of a play as submitted by the client
type PlayResult struct {
	Score      int
	Judgements Judgements
	ClearType  int
	Health     int
	Speed      int // play speed modifier in percent; 0 means unmodified
}

// BestScore is the best result of a player on a chart
type BestScore struct {
	PlayerID   PlayerID
	Chart      ChartKey
	Score      int
	Judgements Judgements
	ClearType  int
	Rating     float64
	AchievedAt time.Time
}

// RecentPlay is one entry of the recent-play ring
type RecentPlay struct {
	SubmissionID string
	PlayerID     PlayerID
	Chart        ChartKey
	Score        int
	Judgements   Judgements
	ClearType    int
	Speed        int
	Rating       float64
	PlayedAt     time.Time
}

// Submission records a processed score submission for replay detection
type Submission struct {
	ID          string
	PlayerID    PlayerID
	Chart       ChartKey
	Rating      float64
	Improved    bool
	ProcessedAt time.Time
}
