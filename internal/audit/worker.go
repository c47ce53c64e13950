package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"CoverPool/internal/event"
	"CoverPool/internal/observability"
)

// Worker drains the audit channel and batch-writes envelopes to Postgres.
// It runs independently from the engine; the channel sink drops on full, so
// a stalled worker never blocks an operation.
type Worker struct {
	writer       *Writer
	inputChan    <-chan event.Envelope
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan event.Envelope,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		writer:       NewWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          log,
	}
}

// Run batches incoming envelopes and flushes either when the batch is full
// or the flush timeout expires. Blocks until ctx is cancelled or the input
// channel closes; remaining rows are flushed on the way out.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]EventRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				w.flush(context.Background(), batch)
			}
			return ctx.Err()

		case env, ok := <-w.inputChan:
			if !ok {
				if len(batch) > 0 {
					w.flush(context.Background(), batch)
				}
				return nil
			}

			batch = append(batch, toRow(env))
			if len(batch) >= w.batchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
				resetTimer(timer, w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

func (w *Worker) flush(ctx context.Context, batch []EventRow) {
	if err := w.writer.WriteBatch(ctx, batch); err != nil {
		w.log.Error().Err(err).Int("batch", len(batch)).Msg("audit write failed")
		if w.metrics != nil {
			w.metrics.AuditErrors.Inc()
		}
		return
	}
	if w.metrics != nil {
		w.metrics.AuditEventsWritten.Add(float64(len(batch)))
		w.metrics.AuditBatchSize.Observe(float64(len(batch)))
	}
}

func toRow(env event.Envelope) EventRow {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		// Payloads are plain structs; marshal cannot fail for them.
		payload = []byte("{}")
	}

	var participant *string
	if env.Participant != nil {
		s := env.Participant.String()
		participant = &s
	}

	return EventRow{
		Sequence:    env.Sequence,
		EventType:   env.Type.String(),
		Participant: participant,
		Payload:     payload,
		StateHash:   env.StateHash[:],
		PrevHash:    env.PrevHash[:],
		Timestamp:   env.Timestamp,
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
