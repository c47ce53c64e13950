// Package audit persists the engine's event side channel to Postgres. The
// audit log is a downstream consumer: the engine's correctness never
// depends on it, and a write failure loses observability, not funds.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// EventRow represents a row in audit.events.
type EventRow struct {
	Sequence    int64
	EventType   string
	Participant *string
	Payload     []byte // JSON-encoded event payload
	StateHash   []byte
	PrevHash    []byte
	Timestamp   time.Time
}

// Writer writes envelope rows to Postgres using multi-row idempotent
// INSERTs, keyed on the engine-assigned sequence.
type Writer struct {
	db *sql.DB
}

func NewWriter(db *sql.DB) *Writer {
	return &Writer{db: db}
}

// WriteBatch writes a batch of rows to audit.events.
func (w *Writer) WriteBatch(ctx context.Context, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO audit.events
		(sequence, event_type, participant, payload, state_hash, prev_hash, timestamp)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*7)

	for i, r := range rows {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			r.Sequence, r.EventType, r.Participant,
			r.Payload, r.StateHash, r.PrevHash, r.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // Idempotent writes

	_, err := w.db.ExecContext(ctx, query, args...)
	return err
}

// CountEvents returns the number of audited events (test helper).
func (w *Writer) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	err := w.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit.events`).Scan(&n)
	return n, err
}
