package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Calcifer1001/heist/internal/contract"
)

// SnapshotManager stores and loads full-state snapshots so a restart
// replays only the op-log tail instead of the whole history.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData wraps the ledger's serializable state with storage
// metadata.
type SnapshotData struct {
	State     *contract.SnapshotState `json:"state"`
	CreatedAt time.Time               `json:"created_at"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists one snapshot, replacing any existing snapshot
// at the same sequence. Returns the serialized size in bytes.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) (int, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO heist.snapshots
			(snapshot_id, sequence, data, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, size_bytes = $4
	`, uuid.New(), snap.State.Sequence, data, len(data), snap.CreatedAt)

	return len(data), err
}

// LoadLatestSnapshot returns the most recent verified snapshot, or nil
// on a cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM heist.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// MarkVerified flags a snapshot as usable for recovery. Verification
// happens after the snapshot's ops are confirmed in the log.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE heist.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadOpsFrom pages op records for replay, lowest sequence first.
func (sm *SnapshotManager) LoadOpsFrom(ctx context.Context, fromSequence int64, limit int) ([]OpRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, op_id, op_type, caller, payload, timestamp
		FROM heist.ops
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []OpRow
	for rows.Next() {
		var op OpRow
		if err := rows.Scan(
			&op.Sequence, &op.OpID, &op.OpType, &op.Caller, &op.Payload, &op.Timestamp,
		); err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// GetLatestSequence returns the highest sequence in the op log, 0 when
// the log is empty.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM heist.ops
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
