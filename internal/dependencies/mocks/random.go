package mocks

import (
	"fmt"
	"sync"

	"github.com/YinMo19/Arcaea-server-rs-sub001/internal/dependencies/random"
)

// MockRandom is a deterministic Random for tests.
// Queued values are returned first; once a queue is empty it falls back to
// numbered values so unrelated calls never collide.
type MockRandom struct {
	mu sync.Mutex

	tokens []string
	uuids  []string

	tokenCount int
	uuidCount  int
}

var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// SessionToken returns the next queued token, or "token-N"
func (r *MockRandom) SessionToken() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return next(&r.tokens, &r.tokenCount, "token")
}

// UUID returns the next queued id, or "uuid-N"
func (r *MockRandom) UUID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return next(&r.uuids, &r.uuidCount, "uuid")
}

// QueueSessionToken adds values to the token queue
func (r *MockRandom) QueueSessionToken(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, values...)
}

// QueueUUID adds values to the id queue
func (r *MockRandom) QueueUUID(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uuids = append(r.uuids, values...)
}

func next(queue *[]string, count *int, prefix string) string {
	if len(*queue) > 0 {
		v := (*queue)[0]
		*queue = (*queue)[1:]
		return v
	}
	*count++
	return fmt.Sprintf("%s-%d", prefix, *count)
}
