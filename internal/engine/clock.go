package engine

import "time"

// Clock is the single source of truth for "now". Every deadline computation
// in the engine goes through it; client-reported time is never consulted.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
