// Copyright (c) 2026 The hopfund developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/ticker"
)

// JitterTicker is a ticker that adds jitter to the tick duration.  It is
// used to poll signature statuses without hitting the RPC endpoint at a
// fixed cadence.
type JitterTicker struct {
	// c is the internal channel that receives ticks.
	c chan time.Time

	// duration is the base duration of the ticker.
	duration time.Duration

	// scaler defines the jitter scaler. The jitter is calculated as,
	// - min: duration * (1 - scaler) or 0 if scaler > 1,
	// - max: duration * (1 + scaler).
	//
	// NOTE: when scaler is 0, this ticker behaves as a normal ticker.
	scaler float64

	// min and max store the duration values.
	min int64
	max int64

	// active is 1 while ticks are delivered.
	active atomic.Bool

	wg       sync.WaitGroup
	quit     chan struct{}
	stopOnce sync.Once
}

// A compile-time assertion to ensure JitterTicker satisfies the lnd ticker
// interface.
var _ ticker.Ticker = (*JitterTicker)(nil)

// NewJitterTicker returns a new, paused JitterTicker.
func NewJitterTicker(d time.Duration, jitter float64) *JitterTicker {
	// Calculate the min and max duration values.
	min, max := calculateMinMax(d, jitter)

	t := &JitterTicker{
		c:        make(chan time.Time, 1),
		scaler:   jitter,
		duration: d,
		min:      min,
		max:      max,
		quit:     make(chan struct{}),
	}

	t.wg.Add(1)
	go t.start()

	return t
}

// calculateMinMax calculates the min and max duration values. If the
// calculated min is negative, it will be set to 0.
func calculateMinMax(d time.Duration, scaler float64) (int64, int64) {
	// If the scaler is negative, we will panic.
	if scaler < 0 {
		panic(errors.New("scaler must be positive"))
	}

	// Calculate the min and max jitter values.
	min := math.Floor(float64(d) * (1 - scaler))
	max := math.Ceil(float64(d) * (1 + scaler))

	// If the scaler is greater than 1, we would use a zero min instead of
	// a negative one.
	if 1-scaler < 0 {
		min = 0
	}

	return int64(min), int64(max)
}

// Ticks returns the channel on which ticks are delivered while the ticker
// is active.
func (jt *JitterTicker) Ticks() <-chan time.Time {
	return jt.c
}

// Resume starts delivering ticks.
func (jt *JitterTicker) Resume() {
	jt.active.Store(true)
}

// Pause suspends delivery of ticks.
func (jt *JitterTicker) Pause() {
	jt.active.Store(false)
}

// Stop stops the ticker and waits for its goroutine to exit.  It is safe
// to call more than once.
func (jt *JitterTicker) Stop() {
	jt.stopOnce.Do(func() {
		close(jt.quit)
	})
	jt.wg.Wait()
}

// start runs the timer loop until the ticker is stopped.
func (jt *JitterTicker) start() {
	defer jt.wg.Done()

	// Create a new timer with a random duration.
	timer := time.NewTimer(jt.rand())
	defer timer.Stop()

	for {
		select {
		case t := <-timer.C:
			// Reset the timer when it fires.
			timer.Reset(jt.rand())

			if !jt.active.Load() {
				continue
			}

			// Send the tick to the channel.
			//
			// NOTE: must be non-blocking.
			select {
			case jt.c <- t:
			default:
			}

		case <-jt.quit:
			return
		}
	}
}

// rand returns a random duration between the min and max values.
func (jt *JitterTicker) rand() time.Duration {
	if jt.max == jt.min {
		return jt.duration
	}

	d := rand.Int64N(jt.max-jt.min) + jt.min //nolint:gosec
	return time.Duration(d)
}
