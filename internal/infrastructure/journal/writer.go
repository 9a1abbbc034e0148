// Package journal keeps the append-only history of submitted orders.
package journal

import (
	"context"
	"errors"

	domain "autotrader/internal/domain/entity/trading"
	interfaces "autotrader/internal/domain/interfaces"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Store is the persistence behind a Journal.
type Store interface {
	AddEntries(ctx context.Context, entries []domain.JournalEntry) error
	OpenQuantity(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Journal buffers entries and writes them to the store in batches.
type Journal struct {
	store   Store
	entries *batchBuffer[domain.JournalEntry]
}

var _ interfaces.OrderJournal = (*Journal)(nil)

func NewJournal(cfg BatchConfig, store Store, logger *logrus.Logger) *Journal {
	return &Journal{
		store: store,
		entries: newBatchBuffer(cfg, store.AddEntries,
			logger.WithFields(logrus.Fields{"component": "journal", "entity": "order"})),
	}
}

// Run starts the background writer. Entries are written with ctx until Stop.
func (j *Journal) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	j.entries.start(ctx)
}

// Stop writes the remaining entries using ctx and waits for the writer.
func (j *Journal) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return j.entries.stop(ctx)
}

// Append queues entry. It never waits for the store.
func (j *Journal) Append(entry domain.JournalEntry) error {
	if entry.Symbol == "" {
		return errors.New("journal entry without symbol")
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return j.entries.enqueue(entry)
}

func (j *Journal) OpenQuantity(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return j.store.OpenQuantity(ctx, symbol)
}
