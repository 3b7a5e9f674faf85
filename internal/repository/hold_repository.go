package repository

import (
	"context"
	"database/sql"
	"strings"

	"dibs/internal/model"
)

// HoldRepo provides data access to the holds table.  Mutating methods come
// in Tx variants taking an existing *sql.Tx because every engine transition
// (acquire, release, promotion) spans multiple statements that must commit
// atomically; the caller owns the transaction.  Conditional WHERE clauses
// on released_at and expires_at make each mutation safe to retry and keep
// read-modify-write sequences honest about concurrent changes.
type HoldRepo struct {
	db *sql.DB
}

// NewHoldRepo returns a HoldRepo bound to the given database.
func NewHoldRepo(db *sql.DB) *HoldRepo { return &HoldRepo{db: db} }

const holdColumns = `id, env_id, user_id, started_at, expires_at, released_at, reminded_at, note`

func scanHold(scan func(dest ...any) error) (*model.Hold, error) {
	var h model.Hold
	var released, reminded sql.NullInt64
	if err := scan(&h.ID, &h.EnvID, &h.UserID, &h.StartedAt, &h.ExpiresAt, &released, &reminded, &h.Note); err != nil {
		return nil, err
	}
	if released.Valid {
		v := released.Int64
		h.ReleasedAt = &v
	}
	if reminded.Valid {
		v := reminded.Int64
		h.RemindedAt = &v
	}
	return &h, nil
}

// ActiveByEnvTx returns the active hold for an environment, locking the row
// for the duration of the transaction (SELECT ... FOR UPDATE) so concurrent
// transitions on the same environment serialize.  Returns (nil, nil) when
// the environment is free.
func (r *HoldRepo) ActiveByEnvTx(ctx context.Context, tx *sql.Tx, envID uint64) (*model.Hold, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+holdColumns+` FROM holds WHERE env_id = ? AND released_at IS NULL LIMIT 1 FOR UPDATE`, envID)
	h, err := scanHold(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return h, err
}

// CreateTx inserts a new active hold and populates its generated ID.  When
// another transaction already holds the environment, the one-active-hold
// unique key rejects the insert; callers detect that with IsDuplicateEntry
// and fall back to the queueing path instead of failing.
func (r *HoldRepo) CreateTx(ctx context.Context, tx *sql.Tx, h *model.Hold) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO holds (env_id, user_id, started_at, expires_at, note) VALUES (?, ?, ?, ?, ?)`,
		h.EnvID, h.UserID, h.StartedAt, h.ExpiresAt, h.Note)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return nil
}

// ReleaseTx marks a hold as released.  The released_at IS NULL guard makes
// the call idempotent: a hold already released by a concurrent sweep or
// command reports false and mutates nothing.
func (r *HoldRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, id uint64, now int64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE holds SET released_at = ? WHERE id = ? AND released_at IS NULL`, now, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UpdateExpiryTx moves a hold's deadline forward using a conditional update
// on the previously observed expiry.  Zero affected rows means the hold
// changed (or was released) between read and write; the engine surfaces
// that as a retryable conflict rather than overwriting blindly.  The
// reminder marker is cleared so a new reminder can fire for the extended
// deadline.
func (r *HoldRepo) UpdateExpiryTx(ctx context.Context, tx *sql.Tx, id uint64, observedExpiry, newExpiry int64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE holds SET expires_at = ?, reminded_at = NULL
		 WHERE id = ? AND expires_at = ? AND released_at IS NULL`,
		newExpiry, id, observedExpiry)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// TransferTx reassigns the active hold to another user in place; the expiry
// is untouched.  Reports false when the hold was released concurrently.
func (r *HoldRepo) TransferTx(ctx context.Context, tx *sql.Tx, id uint64, toUserID string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE holds SET user_id = ? WHERE id = ? AND released_at IS NULL`, toUserID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ActiveByEnvIDs batch-fetches the active hold for every listed environment
// in one query, keyed by env ID.  Used by the list command to stay at O(1)
// round-trips regardless of environment count.
func (r *HoldRepo) ActiveByEnvIDs(ctx context.Context, envIDs []uint64) (map[uint64]model.Hold, error) {
	out := make(map[uint64]model.Hold, len(envIDs))
	if len(envIDs) == 0 {
		return out, nil
	}
	query := `SELECT ` + holdColumns + ` FROM holds WHERE released_at IS NULL AND env_id IN (` + placeholders(len(envIDs)) + `)`
	rows, err := r.db.QueryContext(ctx, query, idArgs(envIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		h, err := scanHold(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[h.EnvID] = *h
	}
	return out, rows.Err()
}

// ReminderHold is a reminder candidate joined with its environment name so
// the sweeper can build the notification without extra lookups.
type ReminderHold struct {
	model.Hold
	EnvName string
}

// ReminderCandidates returns active holds that have not been reminded,
// still have time left but no more than lead seconds of it, and whose total
// granted duration is at least minTTL seconds (brief claims are exempt from
// reminders).
func (r *HoldRepo) ReminderCandidates(ctx context.Context, now, lead, minTTL int64) ([]ReminderHold, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT h.id, h.env_id, h.user_id, h.started_at, h.expires_at, h.released_at, h.reminded_at, h.note, e.name
		 FROM holds h
		 JOIN environments e ON e.id = h.env_id
		 WHERE h.released_at IS NULL
		   AND h.reminded_at IS NULL
		   AND h.expires_at > ?
		   AND h.expires_at <= ?
		   AND (h.expires_at - h.started_at) >= ?`,
		now, now+lead, minTTL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ReminderHold
	for rows.Next() {
		var h model.Hold
		var released, reminded sql.NullInt64
		var envName string
		if err := rows.Scan(&h.ID, &h.EnvID, &h.UserID, &h.StartedAt, &h.ExpiresAt,
			&released, &reminded, &h.Note, &envName); err != nil {
			return nil, err
		}
		if released.Valid {
			v := released.Int64
			h.ReleasedAt = &v
		}
		if reminded.Valid {
			v := reminded.Int64
			h.RemindedAt = &v
		}
		out = append(out, ReminderHold{Hold: h, EnvName: envName})
	}
	return out, rows.Err()
}

// ExpiredHold is an overdue hold joined with environment fields needed for
// reassignment and announcements.
type ExpiredHold struct {
	model.Hold
	EnvName           string
	DefaultTTLSeconds int64
}

// Expired returns active holds whose deadline has passed.
func (r *HoldRepo) Expired(ctx context.Context, now int64) ([]ExpiredHold, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT h.id, h.env_id, h.user_id, h.started_at, h.expires_at, h.released_at, h.reminded_at, h.note, e.name, e.default_ttl_seconds
		 FROM holds h
		 JOIN environments e ON e.id = h.env_id
		 WHERE h.released_at IS NULL AND h.expires_at <= ?`,
		now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExpiredHold
	for rows.Next() {
		var h model.Hold
		var released, reminded sql.NullInt64
		var eh ExpiredHold
		if err := rows.Scan(&h.ID, &h.EnvID, &h.UserID, &h.StartedAt, &h.ExpiresAt,
			&released, &reminded, &h.Note, &eh.EnvName, &eh.DefaultTTLSeconds); err != nil {
			return nil, err
		}
		if released.Valid {
			v := released.Int64
			h.ReleasedAt = &v
		}
		if reminded.Valid {
			v := reminded.Int64
			h.RemindedAt = &v
		}
		eh.Hold = h
		out = append(out, eh)
	}
	return out, rows.Err()
}

// MarkReminded records that the pre-expiry reminder went out.  Guarded on
// reminded_at IS NULL so a retried sweep tick cannot double-send.
func (r *HoldRepo) MarkReminded(ctx context.Context, id uint64, now int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE holds SET reminded_at = ? WHERE id = ? AND reminded_at IS NULL AND released_at IS NULL`, now, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// PurgeReleasedBefore deletes released holds older than the cutoff.  Active
// holds are never touched; this is the retention pass's only statement.
func (r *HoldRepo) PurgeReleasedBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM holds WHERE released_at IS NOT NULL AND released_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// placeholders returns "?, ?, ..." with n markers for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func idArgs(ids []uint64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
