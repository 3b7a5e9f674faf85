package repository

import (
	"context"
	"database/sql"

	"dibs/internal/model"
)

// QueueRepo provides data access to the per-environment FIFO waitlists.
// Positions within an environment are contiguous starting at 1: RemoveTx
// renumbers everything behind the removed entry inside the caller's
// transaction, so ETA arithmetic (position-1 waiters ahead) stays exact.
type QueueRepo struct {
	db *sql.DB
}

// NewQueueRepo returns a QueueRepo bound to the given database.
func NewQueueRepo(db *sql.DB) *QueueRepo { return &QueueRepo{db: db} }

const queueColumns = `id, env_id, user_id, position, enqueued_at, requested_ttl_seconds`

func scanEntry(scan func(dest ...any) error) (*model.QueueEntry, error) {
	var q model.QueueEntry
	var reqTTL sql.NullInt64
	if err := scan(&q.ID, &q.EnvID, &q.UserID, &q.Position, &q.EnqueuedAt, &reqTTL); err != nil {
		return nil, err
	}
	if reqTTL.Valid {
		v := reqTTL.Int64
		q.RequestedTTLSeconds = &v
	}
	return &q, nil
}

// EntryByEnvUserTx returns the caller's queue entry for an environment, or
// (nil, nil) when the user is not queued.
func (r *QueueRepo) EntryByEnvUserTx(ctx context.Context, tx *sql.Tx, envID uint64, userID string) (*model.QueueEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM queue_entries WHERE env_id = ? AND user_id = ?`, envID, userID)
	q, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return q, err
}

// NextPositionTx computes max(position)+1 for an environment (1 when the
// queue is empty).  It must run in the same transaction as the insert; a
// benign race that still produces a duplicate position is rejected by the
// positional unique key and surfaces via IsDuplicateEntry.
func (r *QueueRepo) NextPositionTx(ctx context.Context, tx *sql.Tx, envID uint64) (int64, error) {
	var pos int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM queue_entries WHERE env_id = ?`, envID).Scan(&pos)
	return pos, err
}

// EnqueueTx appends a queue entry and populates its generated ID.
func (r *QueueRepo) EnqueueTx(ctx context.Context, tx *sql.Tx, q *model.QueueEntry) error {
	var reqTTL any
	if q.RequestedTTLSeconds != nil {
		reqTTL = *q.RequestedTTLSeconds
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO queue_entries (env_id, user_id, position, enqueued_at, requested_ttl_seconds)
		 VALUES (?, ?, ?, ?, ?)`,
		q.EnvID, q.UserID, q.Position, q.EnqueuedAt, reqTTL)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	q.ID = uint64(id)
	return nil
}

// HeadTx returns the entry at the lowest position for an environment,
// locked for update, or (nil, nil) when the queue is empty.  Promotion
// deletes the returned entry in the same transaction.
func (r *QueueRepo) HeadTx(ctx context.Context, tx *sql.Tx, envID uint64) (*model.QueueEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM queue_entries WHERE env_id = ? ORDER BY position ASC LIMIT 1 FOR UPDATE`, envID)
	q, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return q, err
}

// RemoveTx deletes an entry and closes the gap it leaves: every entry
// behind it moves up one position.  The ORDER BY on the renumbering update
// walks positions ascending so the per-position unique key is never
// violated mid-statement.
func (r *QueueRepo) RemoveTx(ctx context.Context, tx *sql.Tx, q *model.QueueEntry) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM queue_entries WHERE id = ?`, q.ID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE queue_entries SET position = position - 1
		 WHERE env_id = ? AND position > ? ORDER BY position ASC`,
		q.EnvID, q.Position)
	return err
}

// CountsByEnvIDs batch-fetches queue lengths for the listed environments.
func (r *QueueRepo) CountsByEnvIDs(ctx context.Context, envIDs []uint64) (map[uint64]int64, error) {
	out := make(map[uint64]int64, len(envIDs))
	if len(envIDs) == 0 {
		return out, nil
	}
	query := `SELECT env_id, COUNT(*) FROM queue_entries WHERE env_id IN (` + placeholders(len(envIDs)) + `) GROUP BY env_id`
	rows, err := r.db.QueryContext(ctx, query, idArgs(envIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var envID uint64
		var cnt int64
		if err := rows.Scan(&envID, &cnt); err != nil {
			return nil, err
		}
		out[envID] = cnt
	}
	return out, rows.Err()
}

// PreviewByEnvIDs batch-fetches up to limit queued user IDs per environment
// in FIFO order, for queue previews in list output.
func (r *QueueRepo) PreviewByEnvIDs(ctx context.Context, envIDs []uint64, limit int) (map[uint64][]string, error) {
	out := make(map[uint64][]string, len(envIDs))
	if len(envIDs) == 0 {
		return out, nil
	}
	query := `SELECT env_id, user_id FROM queue_entries WHERE env_id IN (` + placeholders(len(envIDs)) + `) ORDER BY env_id ASC, position ASC`
	rows, err := r.db.QueryContext(ctx, query, idArgs(envIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var envID uint64
		var userID string
		if err := rows.Scan(&envID, &userID); err != nil {
			return nil, err
		}
		if len(out[envID]) < limit {
			out[envID] = append(out[envID], userID)
		}
	}
	return out, rows.Err()
}

// EnvIDsQueuedForUser returns the set of environments where the user has a
// queue entry.  Used by the "mine" list filter.
func (r *QueueRepo) EnvIDsQueuedForUser(ctx context.Context, userID string) (map[uint64]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT env_id FROM queue_entries WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64]struct{})
	for rows.Next() {
		var envID uint64
		if err := rows.Scan(&envID); err != nil {
			return nil, err
		}
		out[envID] = struct{}{}
	}
	return out, rows.Err()
}
