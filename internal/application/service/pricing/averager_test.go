package pricing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAverager_EmptyIsUnavailable(t *testing.T) {
	a := NewAveragerWithClock(newFakeClock().Now)
	assert.Equal(t, Unavailable, a.Average())
	assert.True(t, a.LastWrite().IsZero())
}

// Unwritten slots count as zero until the ring fills.
func TestAverager_WarmUpAveragesInZeroSlots(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		want    float64
	}{
		{name: "single sample", samples: []float64{150}, want: 10},
		{name: "three samples", samples: []float64{100, 200, 300}, want: 40},
		{name: "full ring", samples: repeat(42, WindowSize), want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAveragerWithClock(newFakeClock().Now)
			for _, s := range tt.samples {
				a.Add(s)
			}
			assert.InDelta(t, tt.want, a.Average(), 1e-9)
		})
	}
}

func TestAverager_RingOverwriteDropsOldest(t *testing.T) {
	a := NewAveragerWithClock(newFakeClock().Now)
	a.Add(1000)
	for i := 0; i < WindowSize; i++ {
		a.Add(10)
	}
	assert.InDelta(t, 10, a.Average(), 1e-9, "the first sample must be overwritten after N+1 adds")
}

func TestAverager_MeanOfMostRecentWindow(t *testing.T) {
	a := NewAveragerWithClock(newFakeClock().Now)
	total := WindowSize + 7
	for i := 1; i <= total; i++ {
		a.Add(float64(i))
	}

	var sum float64
	for i := total - WindowSize + 1; i <= total; i++ {
		sum += float64(i)
	}
	assert.InDelta(t, sum/WindowSize, a.Average(), 1e-9)
}

func TestAverager_Staleness(t *testing.T) {
	clock := newFakeClock()
	a := NewAveragerWithClock(clock.Now)
	for i := 0; i < WindowSize; i++ {
		a.Add(5)
	}

	clock.Advance(StaleAfter)
	assert.InDelta(t, 5, a.Average(), 1e-9, "exactly at the window the average is still valid")

	clock.Advance(time.Millisecond)
	assert.Equal(t, Unavailable, a.Average())

	a.Add(5)
	assert.InDelta(t, 5, a.Average(), 1e-9, "a fresh write revives the series")
}

func TestAverager_ConcurrentAddAndRead(t *testing.T) {
	a := NewAverager()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				a.Add(100)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			avg := a.Average()
			assert.True(t, avg == Unavailable || (avg >= 0 && avg <= 100))
		}
	}()
	wg.Wait()
	assert.InDelta(t, 100, a.Average(), 1e-9)
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
