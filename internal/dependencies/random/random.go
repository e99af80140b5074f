package random

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// tokenBytes of entropy encode to a 40 character session token
const tokenBytes = 30

// Random is the engine's source of unguessable values
type Random interface {
	// SessionToken returns a fresh URL-safe bearer token
	SessionToken() string

	// UUID returns a new random (v4) UUID in canonical form
	UUID() string
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// SessionToken never fails: crypto/rand.Read aborts the process rather than
// return short reads
func (r *CryptoRandom) SessionToken() string {
	b := make([]byte, tokenBytes)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func (r *CryptoRandom) UUID() string {
	return uuid.NewString()
}
