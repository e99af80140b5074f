package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Ban is the moderation state of a player.
// A player is banned while now < Until; Offenses survives expiry so that
// repeat offenders escalate.
type Ban struct {
	Reason   string
	Until    time.Time
	Offenses int
}

// Active reports whether the ban is in force at now
func (b Ban) Active(now time.Time) bool {
	return !b.Until.IsZero() && now.Before(b.Until)
}

// StaminaPool is the stored snapshot of a lazily regenerating resource
type StaminaPool struct {
	Value  int
	FullAt time.Time
}

// Player represents a registered player and their progression state
type Player struct {
	ID           PlayerID
	Name         string
	Email        string
	PasswordHash string // bcrypt hash

	Ban Ban

	Stamina StaminaPool
	Bonus   StaminaPool // secondary recovery slot, max 1

	CurrentMap string
	Rating     float64 // last published overall rating
	Inventory  map[string]int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy of the player
func (p *Player) Clone() *Player {
	c := *p
	if p.Inventory != nil {
		c.Inventory = make(map[string]int, len(p.Inventory))
		for k, v := range p.Inventory {
			c.Inventory[k] = v
		}
	}
	return &c
}

// Credit adds amount of item to the inventory
func (p *Player) Credit(item string, amount int) {
	if p.Inventory == nil {
		p.Inventory = make(map[string]int)
	}
	p.Inventory[item] += amount
}
