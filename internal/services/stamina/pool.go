package stamina

import (
	"time"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
)

// Rules describe a lazily regenerating pool: one unit recovers every Tick up to Max.
// A pool is never updated by a timer; its value is derived from the stored
// snapshot and the time at which it will be full again.
type Rules struct {
	Max  int
	Tick time.Duration
}

// Effective returns the pool's value at now
func (r Rules) Effective(p model.StaminaPool, now time.Time) int {
	if p.Value >= r.Max {
		return r.Max
	}
	if !now.Before(p.FullAt) {
		return r.Max
	}
	if r.Tick <= 0 {
		return r.Max
	}

	remaining := p.FullAt.Sub(now)
	ticks := int((remaining + r.Tick - 1) / r.Tick)
	v := r.Max - ticks
	if v < 0 {
		return 0
	}
	return v
}

// Spend removes cost units. Regeneration is linear and additive: spending from a
// full pool schedules FullAt cost ticks from now, spending from a draining pool
// pushes the existing FullAt back by cost ticks.
func (r Rules) Spend(p model.StaminaPool, cost int, now time.Time) (model.StaminaPool, error) {
	if cost < 0 {
		return p, model.ErrInvalidArgument.WithMessage("stamina cost must not be negative")
	}
	current := r.Effective(p, now)
	if current < cost {
		return p, model.ErrInsufficientStamina
	}
	if cost == 0 {
		return p, nil
	}

	extra := time.Duration(cost) * r.Tick
	if current >= r.Max {
		p.FullAt = now.Add(extra)
	} else {
		p.FullAt = p.FullAt.Add(extra)
	}
	p.Value = current - cost
	return p, nil
}

// Grant adds amount units, pulling FullAt forward; the pool never exceeds Max
func (r Rules) Grant(p model.StaminaPool, amount int, now time.Time) model.StaminaPool {
	if amount <= 0 {
		return p
	}
	current := r.Effective(p, now)
	if current+amount >= r.Max {
		return model.StaminaPool{Value: r.Max, FullAt: now}
	}
	p.FullAt = p.FullAt.Add(-time.Duration(amount) * r.Tick)
	p.Value = current + amount
	return p
}

// Full returns a pool that is full at now
func (r Rules) Full(now time.Time) model.StaminaPool {
	return model.StaminaPool{Value: r.Max, FullAt: now}
}
