// Package pricing smooths a noisy quote stream into short-horizon averages.
package pricing

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// WindowSize is the number of samples kept per series.
	WindowSize = 15
	// StaleAfter is how long after the last Add the average stays valid.
	StaleAfter = 3 * time.Second
	// Unavailable is returned by Average while the series is stale.
	Unavailable = -1.0
)

// Averager is a fixed-size ring of price samples for one (symbol, side).
//
// Add is serialised by a mutex. Average reads the slots without locking, so
// it may observe a concurrent Add half applied; each slot is still read
// atomically. Slots that were never written hold 0 and are part of the mean
// until overwritten.
type Averager struct {
	mu        sync.Mutex
	slots     [WindowSize]atomic.Uint64
	cursor    uint64
	lastWrite atomic.Int64
	now       func() time.Time
}

// NewAverager creates an empty averager using the wall clock.
func NewAverager() *Averager {
	return NewAveragerWithClock(time.Now)
}

// NewAveragerWithClock creates an empty averager reading time from now.
func NewAveragerWithClock(now func() time.Time) *Averager {
	return &Averager{now: now}
}

// Add stores price in the next slot and stamps the write time.
func (a *Averager) Add(price float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.slots[a.cursor%WindowSize].Store(math.Float64bits(price))
	a.cursor = (a.cursor + 1) % WindowSize
	a.lastWrite.Store(a.now().UnixNano())
}

// Average returns the mean of the ring, or Unavailable when no sample was
// added within StaleAfter.
func (a *Averager) Average() float64 {
	last := a.lastWrite.Load()
	if last == 0 {
		return Unavailable
	}
	if a.now().Sub(time.Unix(0, last)) > StaleAfter {
		return Unavailable
	}

	var sum float64
	for i := range a.slots {
		sum += math.Float64frombits(a.slots[i].Load())
	}
	return sum / WindowSize
}

// LastWrite is the time of the most recent Add, zero if none.
func (a *Averager) LastWrite() time.Time {
	last := a.lastWrite.Load()
	if last == 0 {
		return time.Time{}
	}
	return time.Unix(0, last)
}
