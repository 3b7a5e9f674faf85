package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"dibs/internal/model"
	"dibs/internal/utils"
)

// AdminRepo answers "is this user an admin" and manages the dynamic admin
// registry.  Two sources are consulted: a static allowlist from
// configuration (always wins, cannot be removed at runtime) and the admins
// table.  The password hash is only used by the HTTP login flow; the
// command surface trusts the chat platform's user identity.
type AdminRepo struct {
	db     *sql.DB
	static map[string]struct{}
}

// NewAdminRepo returns an AdminRepo.  staticAdmins is a comma-separated
// allowlist of user IDs from configuration; empty entries are ignored.
func NewAdminRepo(db *sql.DB, staticAdmins string) *AdminRepo {
	static := make(map[string]struct{})
	for _, s := range strings.Split(staticAdmins, ",") {
		if s = strings.TrimSpace(s); s != "" {
			static[s] = struct{}{}
		}
	}
	return &AdminRepo{db: db, static: static}
}

// IsAdmin reports whether the user is on the static allowlist or in the
// admins table.
func (r *AdminRepo) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if _, ok := r.static[userID]; ok {
		return true, nil
	}
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM admins WHERE user_id = ?`, userID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetByUserID returns the stored admin row, or ErrAdminNotFound.  Static
// allowlist members without a row cannot log in over HTTP; they only get
// command-surface privileges.
func (r *AdminRepo) GetByUserID(ctx context.Context, userID string) (*model.Admin, error) {
	var a model.Admin
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, password_hash, created_by, created_at FROM admins WHERE user_id = ?`, userID).
		Scan(&a.UserID, &a.PasswordHash, &a.CreatedBy, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Add registers an admin.  Re-adding an existing admin is a no-op except
// that a non-empty password hash replaces the stored one.
func (r *AdminRepo) Add(ctx context.Context, a *model.Admin) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admins (user_id, password_hash, created_by, created_at) VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE password_hash = IF(VALUES(password_hash) = '', password_hash, VALUES(password_hash))`,
		a.UserID, a.PasswordHash, a.CreatedBy, a.CreatedAt)
	return err
}

// Bootstrap provisions HTTP login credentials for the static allowlist.
// Allowlisted users always have command privileges, but the login endpoint
// requires a stored password hash, so without a bootstrap password the
// REST API is unreachable.  Re-running with a new password rotates the
// stored hash through Add's upsert.
func (r *AdminRepo) Bootstrap(ctx context.Context, password string, cost int, now int64) error {
	if password == "" || len(r.static) == 0 {
		return nil
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(r.static))
	for id := range r.static {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := &model.Admin{UserID: id, PasswordHash: hash, CreatedBy: "bootstrap", CreatedAt: now}
		if err := r.Add(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes an admin from the dynamic registry.  Static allowlist
// members are unaffected.
func (r *AdminRepo) Remove(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM admins WHERE user_id = ?`, userID)
	return err
}

// List returns all dynamic admin user IDs in order.
func (r *AdminRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM admins ORDER BY user_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
