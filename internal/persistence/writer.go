package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// OpRow is a row in heist.ops, the append-only op log. One row per
// applied state-mutating call; sequences are gapless and assigned by
// the ledger.
type OpRow struct {
	Sequence  int64
	OpID      string // uuid, stable per record
	OpType    string
	Caller    string
	Payload   []byte // JSON-encoded op payload
	Timestamp time.Time
}

// OpLogWriter batch-writes op records to Postgres. Multi-row INSERT
// keeps it portable; ON CONFLICT DO NOTHING makes re-writes after a
// crash idempotent.
type OpLogWriter struct {
	db *sql.DB
}

func NewOpLogWriter(db *sql.DB) *OpLogWriter {
	return &OpLogWriter{db: db}
}

// WriteOpBatch inserts a batch inside the given transaction.
func (w *OpLogWriter) WriteOpBatch(ctx context.Context, tx *sql.Tx, ops []OpRow) error {
	if len(ops) == 0 {
		return nil
	}

	query := `INSERT INTO heist.ops
		(sequence, op_id, op_type, caller, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(ops))
	args := make([]interface{}, 0, len(ops)*6)

	for i, op := range ops {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args,
			op.Sequence, op.OpID, op.OpType, op.Caller, op.Payload, op.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
