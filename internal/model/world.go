package model

import "time"

// Reward is a single item grant
type Reward struct {
	ItemID string `json:"item_id"`
	Amount int    `json:"amount"`
}

// RewardBundle is the ordered list of grants collected by a traversal
type RewardBundle []Reward

// StepRestriction limits which plays may be used to advance onto a step.
// Zero-valued fields do not restrict.
type StepRestriction struct {
	SongID     string      `json:"song_id,omitempty"`
	Difficulty *Difficulty `json:"difficulty,omitempty"`
	SpeedLimit int         `json:"speed_limit,omitempty"` // max play speed in percent
}

// Empty reports whether the restriction admits any play
func (r *StepRestriction) Empty() bool {
	return r == nil || (r.SongID == "" && r.Difficulty == nil && r.SpeedLimit == 0)
}

// Allows reports whether a recent play satisfies the restriction
func (r *StepRestriction) Allows(play *RecentPlay) bool {
	if r.Empty() {
		return true
	}
	if play == nil {
		return false
	}
	if r.SongID != "" && play.Chart.SongID != r.SongID {
		return false
	}
	if r.Difficulty != nil && play.Chart.Difficulty != *r.Difficulty {
		return false
	}
	if r.SpeedLimit > 0 {
		speed := play.Speed
		if speed == 0 {
			speed = 100
		}
		if speed > r.SpeedLimit {
			return false
		}
	}
	return true
}

// Step is one traversal unit of a world map
type Step struct {
	Capture     int              `json:"capture"`
	Cost        int              `json:"cost"`
	Restriction *StepRestriction `json:"restriction,omitempty"`
	PlusStamina int              `json:"plus_stamina,omitempty"`
	Rewards     RewardBundle     `json:"rewards,omitempty"`
}

// WorldMap is static reference data describing a traversable map.
// Steps[0] is the starting position; players advance from there.
type WorldMap struct {
	ID             string `json:"id"`
	Steps          []Step `json:"steps"`
	CaptureCeiling int    `json:"capture_ceiling,omitempty"`
}

// LastPosition returns the index of the final step
func (m *WorldMap) LastPosition() int {
	return len(m.Steps) - 1
}

// Ceiling returns the capture ceiling, defaulting to the sum of all step captures
func (m *WorldMap) Ceiling() int {
	if m.CaptureCeiling > 0 {
		return m.CaptureCeiling
	}
	total := 0
	for _, s := range m.Steps {
		total += s.Capture
	}
	return total
}

// MapProgress is a player's traversal state on one map
type MapProgress struct {
	PlayerID    PlayerID
	MapID       string
	Position    int
	Capture     int
	Cleared     bool
	Locked      bool
	LockedUntil time.Time // zero with Locked set means locked until unlocked
	UpdatedAt   time.Time
}

// LockedAt reports whether traversal is blocked at now
func (p *MapProgress) LockedAt(now time.Time) bool {
	if !p.Locked {
		return false
	}
	return p.LockedUntil.IsZero() || now.Before(p.LockedUntil)
}
