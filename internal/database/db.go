package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent.
	// clientFoundRows=true makes RowsAffected count matched rows, so
	// idempotent updates (re-setting a flag to its current value) are not
	// mistaken for missing rows.
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// migrations holds the schema in dependency order.  Statements must stay
// idempotent (CREATE TABLE IF NOT EXISTS) so Migrate can run at every boot.
//
// Two constraints are load-bearing for correctness, not optimizations:
//
//   - holds.active_flag is a stored generated column that is 1 while the
//     hold is active and NULL once released.  MySQL unique keys ignore NULL
//     members, so UNIQUE (env_id, active_flag) admits any number of
//     released rows but at most one active hold per environment.  A racing
//     second insert fails with a duplicate-key error the engine treats as
//     "already held".
//   - queue UNIQUE (env_id, user_id) rejects double-queueing and turns a
//     benign position race into "already queued"; UNIQUE (env_id, position)
//     keeps the FIFO order structurally sound.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS environments (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		name VARCHAR(40) NOT NULL,
		description VARCHAR(255) NOT NULL DEFAULT '',
		default_ttl_seconds BIGINT NOT NULL DEFAULT 7200,
		max_ttl_seconds BIGINT NULL,
		is_archived TINYINT(1) NOT NULL DEFAULT 0,
		announce_enabled TINYINT(1) NOT NULL DEFAULT 0,
		channel_id VARCHAR(64) NOT NULL DEFAULT '',
		created_by VARCHAR(64) NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_environments_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS holds (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		env_id BIGINT UNSIGNED NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		started_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL,
		released_at BIGINT NULL,
		reminded_at BIGINT NULL,
		note VARCHAR(255) NOT NULL DEFAULT '',
		active_flag TINYINT GENERATED ALWAYS AS (IF(released_at IS NULL, 1, NULL)) STORED,
		PRIMARY KEY (id),
		KEY idx_holds_env_released (env_id, released_at),
		KEY idx_holds_expiry (released_at, expires_at),
		UNIQUE KEY uq_holds_one_active (env_id, active_flag),
		CONSTRAINT fk_holds_env FOREIGN KEY (env_id) REFERENCES environments (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS queue_entries (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		env_id BIGINT UNSIGNED NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		position BIGINT NOT NULL,
		enqueued_at BIGINT NOT NULL,
		requested_ttl_seconds BIGINT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_queue_env_user (env_id, user_id),
		UNIQUE KEY uq_queue_env_position (env_id, position),
		CONSTRAINT fk_queue_env FOREIGN KEY (env_id) REFERENCES environments (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS settings (
		` + "`key`" + ` VARCHAR(64) NOT NULL,
		value VARCHAR(255) NOT NULL,
		PRIMARY KEY (` + "`key`" + `)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS admins (
		user_id VARCHAR(64) NOT NULL,
		password_hash VARCHAR(100) NOT NULL DEFAULT '',
		created_by VARCHAR(64) NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.  It is called once at startup, before any
// repository touches the database.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
