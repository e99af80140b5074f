package notify

import (
	"net/http"
	"time"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/model"
)

const (
	// Time between keepalive comments
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 32
)

// Client is one open event stream
type Client struct {
	playerID    model.PlayerID
	send        chan []byte
	connectedAt time.Time
}

func newClient(playerID model.PlayerID) *Client {
	return &Client{
		playerID:    playerID,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// Serve streams the player's notifications until the client disconnects or
// the hub closes
func (n *Notifier) Serve(w http.ResponseWriter, r *http.Request, playerID model.PlayerID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	client := newClient(playerID)
	hub, ok := n.subscribe(client)
	if !ok {
		http.Error(w, "notifications are shutting down", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	// The server's write timeout would otherwise cut the stream
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	_, _ = w.Write(formatMessage(EventConnected, `{"player_id":"`+string(playerID)+`"}`))
	flusher.Flush()

	ticker := time.NewTicker(n.pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
