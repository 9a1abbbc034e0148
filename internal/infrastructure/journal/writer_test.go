package journal

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	domain "autotrader/internal/domain/entity/trading"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	batches [][]domain.JournalEntry
	// block, when set, holds every write until closed or ctx is done.
	block chan struct{}
}

func (f *fakeStore) AddEntries(ctx context.Context, entries []domain.JournalEntry) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, entries)
	return nil
}

func (f *fakeStore) OpenQuantity(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(3), nil
}

func (f *fakeStore) batchSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.batches))
	for _, b := range f.batches {
		out = append(out, len(b))
	}
	return out
}

func newTestJournal(cfg BatchConfig) (*Journal, *fakeStore) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := &fakeStore{}
	return NewJournal(cfg, store, logger), store
}

func entry(symbol string) domain.JournalEntry {
	return domain.JournalEntry{Symbol: symbol, Side: domain.SideBuy, ExecutedQty: decimal.NewFromInt(1)}
}

func TestJournal_RejectsBeforeRun(t *testing.T) {
	j, _ := newTestJournal(BatchConfig{Size: 2})
	assert.ErrorIs(t, j.Append(entry("BTCUSDT")), ErrNotRunning)
}

func TestJournal_FlushesFullBatches(t *testing.T) {
	j, store := newTestJournal(BatchConfig{Size: 2, Timeout: time.Hour})
	j.Run(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(entry("BTCUSDT")))
	}
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]int{2, 2}, store.batchSizes())
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, j.Stop(context.Background()))
	assert.Equal(t, []int{2, 2, 1}, store.batchSizes())
	assert.ErrorIs(t, j.Append(entry("BTCUSDT")), ErrStopped)
}

func TestJournal_AppendDoesNotWaitForStore(t *testing.T) {
	j, store := newTestJournal(BatchConfig{Size: 1})
	store.block = make(chan struct{})
	j.Run(context.Background())

	appended := make(chan error, 1)
	go func() {
		for i := 0; i < 3; i++ {
			if err := j.Append(entry("BTCUSDT")); err != nil {
				appended <- err
				return
			}
		}
		appended <- nil
	}()

	select {
	case err := <-appended:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("append blocked on a slow store")
	}
	assert.Empty(t, store.batchSizes())

	close(store.block)
	require.NoError(t, j.Stop(context.Background()))
	assert.Equal(t, []int{1, 1, 1}, store.batchSizes())
}

func TestJournal_StopHonoursDeadline(t *testing.T) {
	j, store := newTestJournal(BatchConfig{Size: 10})
	store.block = make(chan struct{})
	j.Run(context.Background())
	require.NoError(t, j.Append(entry("BTCUSDT")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, j.Stop(ctx), context.DeadlineExceeded)
	assert.Empty(t, store.batchSizes())
}

func TestJournal_FlushesOnTimeout(t *testing.T) {
	j, store := newTestJournal(BatchConfig{Size: 100, Timeout: 20 * time.Millisecond})
	j.Run(context.Background())

	require.NoError(t, j.Append(entry("ETHUSDT")))
	assert.Eventually(t, func() bool {
		sizes := store.batchSizes()
		return len(sizes) == 1 && sizes[0] == 1
	}, time.Second, 5*time.Millisecond)
}

func TestJournal_AssignsIDs(t *testing.T) {
	j, store := newTestJournal(BatchConfig{Size: 1})
	j.Run(context.Background())

	require.NoError(t, j.Append(entry("BTCUSDT")))
	require.NoError(t, j.Stop(context.Background()))
	require.Len(t, store.batches, 1)
	assert.NotEqual(t, uuid.Nil, store.batches[0][0].ID)
	assert.Error(t, j.Append(domain.JournalEntry{}))
}

func TestJournal_CancelledContextRejects(t *testing.T) {
	j, _ := newTestJournal(BatchConfig{Size: 10})
	ctx, cancel := context.WithCancel(context.Background())
	j.Run(ctx)
	cancel()
	assert.ErrorIs(t, j.Append(entry("BTCUSDT")), context.Canceled)
}

func TestJournal_OpenQuantityDelegates(t *testing.T) {
	j, _ := newTestJournal(BatchConfig{})
	qty, err := j.OpenQuantity(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, qty.Equal(decimal.NewFromInt(3)))
}

func TestNumericConversion(t *testing.T) {
	for _, raw := range []string{"0", "0.00040000", "-12.5", "123456789.123456789"} {
		d := decimal.RequireFromString(raw)
		assert.True(t, fromNumeric(toNumeric(d)).Equal(d), raw)
	}
	assert.True(t, fromNumeric(toNumeric(decimal.Zero)).IsZero())
}
