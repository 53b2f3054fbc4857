package tool

import (
	"time"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// TimeBucket returns the index of the fixed-width bucket containing t, counted
// from the unix epoch. Width must be positive.
func TimeBucket(t time.Time, width time.Duration) int64 {
	if width <= 0 {
		panic("tool: non-positive bucket width")
	}
	ns := t.UnixNano()
	w := int64(width)
	b := ns / w
	// floor for instants before the epoch
	if ns%w != 0 && ns < 0 {
		b--
	}
	return b
}
