package workers

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const gcDiscardRatio = 0.5

// ValueLogGCWorker reclaims the space of deleted messages from badger's value log.
type ValueLogGCWorker struct {
	log        *slog.Logger
	db         *badger.DB
	gcInterval time.Duration
}

func NewValueLogGCWorker(log *slog.Logger, db *badger.DB, gcInterval time.Duration) *ValueLogGCWorker {
	return &ValueLogGCWorker{log: log, db: db, gcInterval: gcInterval}
}

func (w *ValueLogGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping value log GC")
			return nil
		case <-ticker.C:
			if err := w.Collect(ctx); err != nil {
				return err
			}
		}
	}
}

// Collect rewrites value log files until badger has nothing left to reclaim.
func (w *ValueLogGCWorker) Collect(ctx context.Context) error {
	rewritten := 0
	for ctx.Err() == nil {
		err := w.db.RunValueLogGC(gcDiscardRatio)
		if stdErrors.Is(err, badger.ErrNoRewrite) || stdErrors.Is(err, badger.ErrRejected) {
			break
		}
		if err != nil {
			return err
		}
		rewritten++
	}
	if rewritten > 0 {
		w.log.Info("Value log garbage collected", "files", rewritten)
	}
	return nil
}
