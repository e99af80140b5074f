package request

import (
	"net"
	"net/http"
	"strings"
	"time"
)

// DeviceHeader carries the client's device identifier
const DeviceHeader = "X-Device-Id"

// RegisterRequest is the request body for registering a player
type RegisterRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	DeviceID string `json:"device_id,omitempty"`
}

// SubmitScoreRequest is the request body for submitting a play
type SubmitScoreRequest struct {
	SubmissionID string `json:"submission_id,omitempty"`
	SongID       string `json:"song_id"`
	Difficulty   int    `json:"difficulty"`
	Score        int    `json:"score"`
	ShinyPure    int    `json:"shiny_perfect_count"`
	Pure         int    `json:"perfect_count"`
	Far          int    `json:"near_count"`
	Lost         int    `json:"miss_count"`
	ClearType    int    `json:"clear_type"`
	Health       int    `json:"health"`
	Speed        int    `json:"speed,omitempty"`
}

// StepRequest is the request body for stepping or climbing on a map
type StepRequest struct {
	Target int    `json:"target"`
	PlayID string `json:"play_id,omitempty"`
}

// BanRequest is the request body for banning a player
type BanRequest struct {
	Reason string `json:"reason"`
}

// LockRequest is the request body for locking a player's map. A nil Until
// locks until explicitly unlocked.
type LockRequest struct {
	Until *time.Time `json:"until,omitempty"`
}

// DeviceID returns the device header, falling back to the body value
func DeviceID(r *http.Request, fromBody string) string {
	if d := strings.TrimSpace(r.Header.Get(DeviceHeader)); d != "" {
		return d
	}
	return strings.TrimSpace(fromBody)
}

// ClientAddress returns the originating address of the request, preferring
// proxy headers over the socket peer
func ClientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if addr := strings.TrimSpace(first); addr != "" {
			return addr
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
