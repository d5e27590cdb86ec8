package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jonboulle/clockwork"
)

// ValueLogGCWorker periodically reclaims space in badger's value log.
// Each tick rewrites files until badger reports nothing left to rewrite.
type ValueLogGCWorker struct {
	log          *slog.Logger
	db           *badger.DB
	clock        clockwork.Clock
	interval     time.Duration
	discardRatio float64
}

func NewValueLogGCWorker(log *slog.Logger, db *badger.DB, clock clockwork.Clock, interval time.Duration) *ValueLogGCWorker {
	return &ValueLogGCWorker{log: log, db: db, clock: clock, interval: interval, discardRatio: 0.5}
}

func (w *ValueLogGCWorker) Run(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping value log GC")
			return nil
		case <-ticker.Chan():
			if err := w.collect(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *ValueLogGCWorker) collect(ctx context.Context) error {
	for rewrites := 0; ctx.Err() == nil; rewrites++ {
		err := w.db.RunValueLogGC(w.discardRatio)
		switch {
		case err == nil:
			continue
		case errors.Is(err, badger.ErrNoRewrite), errors.Is(err, badger.ErrRejected):
			if rewrites > 0 {
				w.log.Info("Value log GC done", "rewrites", rewrites)
			}
			return nil
		default:
			return err
		}
	}
	return nil
}
