package btp

import (
	"math/rand"
	"time"
)

// BackoffPolicy computes reconnect delays: exponential backoff from an
// initial delay to a cap, with +/-20% jitter (spec.md §4.3), grounded on the
// teacher's bootstrap dial-retry shape in network.go's DialSeed loop.
type BackoffPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

// DefaultBackoffPolicy mirrors the spec's defaults: 1s initial, 30s cap.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{Initial: time.Second, Max: 30 * time.Second}
}

// Delay returns the backoff delay for the given zero-based attempt number,
// jittered by up to +/-20%.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	d := p.Initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > p.Max {
			d = p.Max
			break
		}
	}
	jitter := 0.8 + rand.Float64()*0.4 // [0.8, 1.2)
	return time.Duration(float64(d) * jitter)
}
