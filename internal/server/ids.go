package server

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyLock sync.Mutex
	entropy     = ulid.Monotonic(rand.Reader, 0)
)

// EphemeralID synthesizes a temporary message id from the send time.
func EphemeralID(t time.Time) MessageID {
	entropyLock.Lock()
	defer entropyLock.Unlock()

	return MessageID{ephemeral: ephemeralPrefix + ulid.MustNew(ulid.Timestamp(t), entropy).String()}
}

func newConnectionId() string {
	return uuid.NewString()
}
