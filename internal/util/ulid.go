package util

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// NewID generates a ULID for the current time.
func NewID() string { return NewIDAt(time.Now()) }

// NewIDAt generates a ULID stamped with t. Safe for concurrent use.
func NewIDAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
