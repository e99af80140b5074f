// Package notify pushes per-player progression events to open
// server-sent-event streams.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
)

// Event names
const (
	EventConnected = "connected"
	EventScore     = "score"
	EventMap       = "map"
	EventStamina   = "stamina"
	EventBanned    = "banned"
)

// Notifier owns one hub per player with an open stream. It is created at
// startup and closed at shutdown; publishing to a player without a stream is
// a no-op.
type Notifier struct {
	hubs       map[model.PlayerID]*Hub
	mu         sync.RWMutex
	logger     *slog.Logger
	pingPeriod time.Duration
	closed     bool
}

// New creates a Notifier
func New(logger *slog.Logger) *Notifier {
	return &Notifier{
		hubs:       make(map[model.PlayerID]*Hub),
		logger:     logger.With(slog.String("component", "notify")),
		pingPeriod: pingPeriod,
	}
}

func (n *Notifier) hub(playerID model.PlayerID) (*Hub, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil, false
	}
	if hub, ok := n.hubs[playerID]; ok {
		return hub, true
	}
	hub := newHub(playerID, n.logger)
	n.hubs[playerID] = hub
	go hub.run()
	return hub, true
}

// subscribe registers client with its player's hub. A hub swept or
// disconnected between lookup and registration is replaced by a fresh one.
func (n *Notifier) subscribe(client *Client) (*Hub, bool) {
	for {
		hub, ok := n.hub(client.playerID)
		if !ok {
			return nil, false
		}
		if hub.Register(client) {
			return hub, true
		}
	}
}

// Publish sends payload, encoded as JSON, to every open stream of the player
func (n *Notifier) Publish(playerID model.PlayerID, event string, payload any) {
	n.mu.RLock()
	hub, ok := n.hubs[playerID]
	n.mu.RUnlock()
	if !ok {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("encode notification", slog.String("event", event), slog.String("error", err.Error()))
		return
	}
	hub.send(formatMessage(event, string(data)))
}

// Disconnect closes every open stream of the player
func (n *Notifier) Disconnect(playerID model.PlayerID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if hub, ok := n.hubs[playerID]; ok {
		hub.Close()
		delete(n.hubs, playerID)
	}
}

// SweepIdle drops hubs whose streams have all gone away and returns how many
// were removed
func (n *Notifier) SweepIdle() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	removed := 0
	for id, hub := range n.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(n.hubs, id)
			removed++
		}
	}
	return removed
}

// StreamCount returns the number of open streams for the player
func (n *Notifier) StreamCount(playerID model.PlayerID) int {
	n.mu.RLock()
	hub, ok := n.hubs[playerID]
	n.mu.RUnlock()
	if !ok {
		return 0
	}
	return hub.ClientCount()
}

// Close ends every stream; later subscriptions are refused
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for id, hub := range n.hubs {
		hub.Close()
		delete(n.hubs, id)
	}
	n.closed = true
	return nil
}
