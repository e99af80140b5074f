package model

import "time"

// Session binds an opaque bearer token to a player
type Session struct {
	Token     string
	PlayerID  PlayerID
	DeviceID  string
	Address   string
	IssuedAt  time.Time
	ExpiresAt time.Time // zero means no expiry
}

// Expired reports whether the session is no longer usable at now
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AuthEventKind identifies what an auth event records
type AuthEventKind string

const (
	AuthEventLogin        AuthEventKind = "login"
	AuthEventRegistration AuthEventKind = "registration"
)

// AuthEvent is an append-only record used for sliding window counting
type AuthEvent struct {
	ID       string
	Kind     AuthEventKind
	PlayerID PlayerID
	DeviceID string
	Address  string
	At       time.Time
}

// KeyScope selects which attribute of an event a window is keyed on
type KeyScope string

const (
	ScopeDevice  KeyScope = "device"
	ScopeAddress KeyScope = "address"
	ScopePlayer  KeyScope = "player"
)

// EventKey identifies a window: every event whose scoped attribute equals Value
type EventKey struct {
	Scope KeyScope
	Value string
}

// KeyValue returns the attribute of the event selected by scope
func (e *AuthEvent) KeyValue(scope KeyScope) string {
	switch scope {
	case ScopeDevice:
		return e.DeviceID
	case ScopeAddress:
		return e.Address
	case ScopePlayer:
		return string(e.PlayerID)
	}
	return ""
}

// Keys returns the non-empty window keys the event belongs to
func (e *AuthEvent) Keys() []EventKey {
	var keys []EventKey
	for _, scope := range []KeyScope{ScopeDevice, ScopeAddress, ScopePlayer} {
		if v := e.KeyValue(scope); v != "" {
			keys = append(keys, EventKey{Scope: scope, Value: v})
		}
	}
	return keys
}
