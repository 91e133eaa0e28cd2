package xid

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// New returns a random identifier such as "audit-4f1c...".
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}

// Timed returns a client-side reference like "TXN-1718000000000".
// Two calls in the same millisecond collide; the backend owns uniqueness.
func Timed(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%d", prefix, at.UnixMilli())
}
