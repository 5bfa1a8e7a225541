package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Calcifer1001/heist/internal/observability"
)

// Worker drains the persist channel and batch-writes op records to
// Postgres. It runs on its own goroutine; the ledger sends with a
// blocking channel, so if the worker falls behind the ledger stalls
// rather than losing an op.
type Worker struct {
	writer       *OpLogWriter
	db           *sql.DB
	inputChan    <-chan OpRow
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan OpRow,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		writer:       NewOpLogWriter(db),
		db:           db,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log,
	}
}

// Run batches incoming rows and flushes when the batch fills or the
// flush timeout fires. Blocks until ctx is cancelled or the input
// channel closes; remaining rows are flushed on the way out.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]OpRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					w.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case row, ok := <-w.inputChan:
			if !ok {
				if len(batch) > 0 {
					if err := w.flush(context.Background(), batch); err != nil {
						w.log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			batch = append(batch, row)
			if len(batch) >= w.batchSize {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				w.flushWithRetry(ctx, batch)
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write lands
// or the context is cancelled. The worker never drops a batch; on
// shutdown it makes one last attempt with a background context.
func (w *Worker) flushWithRetry(ctx context.Context, batch []OpRow) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("ops", len(batch)).
				Msg("persistence retry")
			if w.metrics != nil {
				w.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), batch); err != nil {
					w.log.Error().Err(err).Msg("final flush on shutdown failed")
				}
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := w.flush(ctx, batch); err == nil {
			if attempt > 0 {
				w.log.Info().Int("attempts", attempt).Msg("persistence flush recovered")
			}
			return
		}
	}
}

func (w *Worker) flush(ctx context.Context, batch []OpRow) error {
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.countError("tx_begin")
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := w.writer.WriteOpBatch(ctx, tx, batch); err != nil {
		w.countError("write_ops")
		return fmt.Errorf("write ops: %w", err)
	}

	if err := tx.Commit(); err != nil {
		w.countError("tx_commit")
		return fmt.Errorf("commit: %w", err)
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(batch)))
		w.metrics.PersistOpsWritten.Add(float64(len(batch)))
		w.metrics.PersistLastSequence.Set(float64(batch[len(batch)-1].Sequence))
	}
	return nil
}

func (w *Worker) countError(kind string) {
	if w.metrics != nil {
		w.metrics.PersistErrors.WithLabelValues(kind).Inc()
	}
}
