package repository

import (
	"context"
	"database/sql"

	"dibs/internal/model"
)

// EnvironmentRepo provides CRUD over environment definitions.  Names are
// expected to be normalized by the caller before every lookup or write
// (see utils.NormalizeEnvName); the repository treats them as opaque keys.
type EnvironmentRepo struct {
	db *sql.DB
}

// NewEnvironmentRepo returns an EnvironmentRepo bound to the given database.
func NewEnvironmentRepo(db *sql.DB) *EnvironmentRepo { return &EnvironmentRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions that
// span repositories.
func (r *EnvironmentRepo) DB() *sql.DB { return r.db }

const envColumns = `id, name, description, default_ttl_seconds, max_ttl_seconds,
	is_archived, announce_enabled, channel_id, created_by, created_at`

func scanEnv(row *sql.Row) (*model.Environment, error) {
	var e model.Environment
	var maxTTL sql.NullInt64
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.DefaultTTLSeconds, &maxTTL,
		&e.IsArchived, &e.AnnounceEnabled, &e.ChannelID, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if maxTTL.Valid {
		v := maxTTL.Int64
		e.MaxTTLSeconds = &v
	}
	return &e, nil
}

// GetByName returns the active (non-archived) environment with the given
// normalized name, or ErrEnvNotFound.  Archived environments are invisible
// to reservation operations.
func (r *EnvironmentRepo) GetByName(ctx context.Context, name string) (*model.Environment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+envColumns+` FROM environments WHERE name = ? AND is_archived = 0`, name)
	e, err := scanEnv(row)
	if err == sql.ErrNoRows {
		return nil, ErrEnvNotFound
	}
	return e, err
}

// GetByNameAny returns the environment regardless of archival state, or
// ErrEnvNotFound.  Used by admin operations that revive or rename.
func (r *EnvironmentRepo) GetByNameAny(ctx context.Context, name string) (*model.Environment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+envColumns+` FROM environments WHERE name = ?`, name)
	e, err := scanEnv(row)
	if err == sql.ErrNoRows {
		return nil, ErrEnvNotFound
	}
	return e, err
}

// Create inserts a new environment definition and populates its generated
// ID.  A name collision surfaces as ErrNameTaken.
func (r *EnvironmentRepo) Create(ctx context.Context, e *model.Environment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO environments (name, description, default_ttl_seconds, max_ttl_seconds, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Name, e.Description, e.DefaultTTLSeconds, nullable(e.MaxTTLSeconds), e.CreatedBy, e.CreatedAt)
	if err != nil {
		if IsDuplicateEntry(err) {
			return ErrNameTaken
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// Revive unarchives an existing environment, optionally refreshing its
// default TTL and description in the same statement.  Passing nil keeps
// the stored value, mirroring how re-adding a retired environment behaves.
func (r *EnvironmentRepo) Revive(ctx context.Context, id uint64, defaultTTL *int64, description *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE environments
		 SET is_archived = 0,
		     default_ttl_seconds = COALESCE(?, default_ttl_seconds),
		     description = COALESCE(?, description)
		 WHERE id = ?`,
		nullable(defaultTTL), nullableStr(description), id)
	return err
}

// SetDefaultTTL updates the default hold duration for an active environment.
func (r *EnvironmentRepo) SetDefaultTTL(ctx context.Context, name string, seconds int64) error {
	return r.updateActive(ctx, `UPDATE environments SET default_ttl_seconds = ? WHERE name = ? AND is_archived = 0`, seconds, name)
}

// SetMaxTTL updates the per-env cap; nil removes it (unlimited up to the
// global hard cap).
func (r *EnvironmentRepo) SetMaxTTL(ctx context.Context, name string, seconds *int64) error {
	return r.updateActive(ctx, `UPDATE environments SET max_ttl_seconds = ? WHERE name = ? AND is_archived = 0`, nullable(seconds), name)
}

// SetAnnounceEnabled toggles the per-env announcement flag.
func (r *EnvironmentRepo) SetAnnounceEnabled(ctx context.Context, name string, enabled bool) error {
	return r.updateActive(ctx, `UPDATE environments SET announce_enabled = ? WHERE name = ? AND is_archived = 0`, enabled, name)
}

// SetChannelID binds the announcement channel for an environment.
func (r *EnvironmentRepo) SetChannelID(ctx context.Context, name, channelID string) error {
	return r.updateActive(ctx, `UPDATE environments SET channel_id = ? WHERE name = ? AND is_archived = 0`, channelID, name)
}

// SetArchived flips the archival state by name.  Archiving keeps history;
// unarchiving restores the environment to reservation operations.
func (r *EnvironmentRepo) SetArchived(ctx context.Context, name string, archived bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE environments SET is_archived = ? WHERE name = ?`, archived, name)
	if err != nil {
		return err
	}
	return noneAsNotFound(res)
}

// Rename changes the unique name key while preserving the row identity, so
// existing holds and queue entries follow the environment.  Collisions with
// an existing name surface as ErrNameTaken.
func (r *EnvironmentRepo) Rename(ctx context.Context, oldName, newName string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE environments SET name = ? WHERE name = ?`, newName, oldName)
	if err != nil {
		if IsDuplicateEntry(err) {
			return ErrNameTaken
		}
		return err
	}
	return noneAsNotFound(res)
}

// ListActive returns all non-archived environments ordered by name.  It is
// the candidate set for the list command; active holds and queue previews
// are batch-fetched separately to keep round-trips constant.
func (r *EnvironmentRepo) ListActive(ctx context.Context) ([]model.Environment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+envColumns+` FROM environments WHERE is_archived = 0 ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var envs []model.Environment
	for rows.Next() {
		var e model.Environment
		var maxTTL sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.DefaultTTLSeconds, &maxTTL,
			&e.IsArchived, &e.AnnounceEnabled, &e.ChannelID, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		if maxTTL.Valid {
			v := maxTTL.Int64
			e.MaxTTLSeconds = &v
		}
		envs = append(envs, e)
	}
	return envs, rows.Err()
}

func (r *EnvironmentRepo) updateActive(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return noneAsNotFound(res)
}

func noneAsNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEnvNotFound
	}
	return nil
}

func nullable(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
