// Package udprpc implements the typed request/response session over the
// UDP overlay (ADNL for small queries, RLDP for bulk block downloads),
// with DHT-based peer address resolution and an adaptive backoff/roundtrip
// policy for retried queries.
package udprpc

import (
	"context"
	"math"
	"time"
)

// DownloaderTimeouts is the adaptive backoff policy shared by
// internal/fetch's block-download retry loops: a capped exponential
// step applied after every unsuccessful attempt.
type DownloaderTimeouts struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// BlockTimeouts is the fixed policy the fetcher is seeded with for every
// new download attempt sequence.
var BlockTimeouts = DownloaderTimeouts{
	Initial:    200 * time.Millisecond,
	Max:        1000 * time.Millisecond,
	Multiplier: 1.2,
}

// Step applies initial ← min(max, floor(initial × multiplier)), flooring
// to whole milliseconds, and returns the (pre-update) delay that should be
// slept for this attempt.
func (t *DownloaderTimeouts) Step() time.Duration {
	delay := t.Initial
	next := time.Duration(math.Floor(float64(t.Initial.Milliseconds())*t.Multiplier)) * time.Millisecond
	if next > t.Max {
		next = t.Max
	}
	t.Initial = next
	return delay
}

// SleepAndUpdate blocks for the current Initial delay, honoring ctx
// cancellation, then advances the policy.
func (t *DownloaderTimeouts) SleepAndUpdate(ctx context.Context) error {
	delay := t.Step()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
