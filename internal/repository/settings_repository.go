package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Settings keys.  Values are stored as strings in a flat key-value table;
// typed accessors below own parsing and defaults.
const (
	keyDMEnabled             = "dm_enabled"
	keyDMReminderEnabled     = "dm_reminder_enabled"
	keyDMExpiryEnabled       = "dm_expiry_enabled"
	keyAnnounceGlobalEnabled = "announce_global_enabled"
	keyReminderLeadSeconds   = "reminder_lead_seconds"
	keyReminderMinTTLSeconds = "reminder_min_ttl_seconds"
	keyDefaultExtendSeconds  = "default_extend_seconds"
	keyCommandAcksEnabled    = "command_acks_enabled"
	keyRetentionDays         = "retention_days"
	keyLogLevel              = "log_level"
)

// Built-in defaults applied when a key has never been written.
const (
	DefaultReminderLeadSeconds   = 10 * 60
	DefaultReminderMinTTLSeconds = 30 * 60
	DefaultExtendSeconds         = 15 * 60
)

// SettingsRepo reads and writes the global toggle store.  When a redis
// client is supplied, reads go through a short-TTL cache that is
// invalidated on every write; settings are advisory (notification toggles,
// log level), so a few seconds of staleness is acceptable and no
// correctness-critical path depends on them.
type SettingsRepo struct {
	db       *sql.DB
	rdb      *redis.Client
	cacheTTL time.Duration
}

// NewSettingsRepo returns a SettingsRepo.  rdb may be nil; caching is then
// disabled and every read hits the database.
func NewSettingsRepo(db *sql.DB, rdb *redis.Client) *SettingsRepo {
	return &SettingsRepo{db: db, rdb: rdb, cacheTTL: 5 * time.Second}
}

func (r *SettingsRepo) cacheKey(key string) string { return "settings:" + key }

// get returns the stored value and whether the key exists.  Cache misses
// and redis failures fall through to the database silently.
func (r *SettingsRepo) get(ctx context.Context, key string) (string, bool, error) {
	if r.rdb != nil {
		if v, err := r.rdb.Get(ctx, r.cacheKey(key)).Result(); err == nil {
			return v, true, nil
		}
	}
	var v string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE `key` = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if r.rdb != nil {
		_ = r.rdb.Set(ctx, r.cacheKey(key), v, r.cacheTTL).Err()
	}
	return v, true, nil
}

// set upserts a value and invalidates its cache entry immediately so the
// next read observes the write.
func (r *SettingsRepo) set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO settings (`key`, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)",
		key, value)
	if err != nil {
		return err
	}
	if r.rdb != nil {
		_ = r.rdb.Del(ctx, r.cacheKey(key)).Err()
	}
	return nil
}

func (r *SettingsRepo) getBool(ctx context.Context, key string, fallback bool) (bool, error) {
	v, ok, err := r.get(ctx, key)
	if err != nil || !ok {
		return fallback, err
	}
	return ParseBool(v, fallback), nil
}

func (r *SettingsRepo) setBool(ctx context.Context, key string, enabled bool) error {
	v := "0"
	if enabled {
		v = "1"
	}
	return r.set(ctx, key, v)
}

func (r *SettingsRepo) getPositiveInt(ctx context.Context, key string, fallback int64) (int64, error) {
	v, ok, err := r.get(ctx, key)
	if err != nil || !ok {
		return fallback, err
	}
	n, perr := strconv.ParseInt(v, 10, 64)
	if perr != nil || n <= 0 {
		return fallback, nil
	}
	return n, nil
}

// ParseBool interprets a stored toggle value.  Accepted true spellings are
// "1", "true", "yes" and "on" (case-insensitive); anything else is false,
// and an empty value yields the fallback.
func ParseBool(v string, fallback bool) bool {
	if v == "" {
		return fallback
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// DMEnabled is the master switch for direct-message notifications.
// Defaults to on.
func (r *SettingsRepo) DMEnabled(ctx context.Context) (bool, error) {
	return r.getBool(ctx, keyDMEnabled, true)
}

func (r *SettingsRepo) SetDMEnabled(ctx context.Context, enabled bool) error {
	return r.setBool(ctx, keyDMEnabled, enabled)
}

// DMReminderEnabled gates pre-expiry reminder DMs.  When the key was never
// written it falls back to the global DM toggle.
func (r *SettingsRepo) DMReminderEnabled(ctx context.Context) (bool, error) {
	v, ok, err := r.get(ctx, keyDMReminderEnabled)
	if err != nil {
		return true, err
	}
	if !ok {
		return r.DMEnabled(ctx)
	}
	return ParseBool(v, true), nil
}

func (r *SettingsRepo) SetDMReminderEnabled(ctx context.Context, enabled bool) error {
	return r.setBool(ctx, keyDMReminderEnabled, enabled)
}

// DMExpiryEnabled gates expiry/reassignment DMs, falling back to the
// global DM toggle when unset.
func (r *SettingsRepo) DMExpiryEnabled(ctx context.Context) (bool, error) {
	v, ok, err := r.get(ctx, keyDMExpiryEnabled)
	if err != nil {
		return true, err
	}
	if !ok {
		return r.DMEnabled(ctx)
	}
	return ParseBool(v, true), nil
}

func (r *SettingsRepo) SetDMExpiryEnabled(ctx context.Context, enabled bool) error {
	return r.setBool(ctx, keyDMExpiryEnabled, enabled)
}

// AnnounceGlobalEnabled is the global switch for channel announcements.
// Defaults to off; per-env flags additionally apply.
func (r *SettingsRepo) AnnounceGlobalEnabled(ctx context.Context) (bool, error) {
	return r.getBool(ctx, keyAnnounceGlobalEnabled, false)
}

func (r *SettingsRepo) SetAnnounceGlobalEnabled(ctx context.Context, enabled bool) error {
	return r.setBool(ctx, keyAnnounceGlobalEnabled, enabled)
}

// ReminderLeadSeconds is how far before expiry the reminder fires.
func (r *SettingsRepo) ReminderLeadSeconds(ctx context.Context) (int64, error) {
	return r.getPositiveInt(ctx, keyReminderLeadSeconds, DefaultReminderLeadSeconds)
}

func (r *SettingsRepo) SetReminderLeadSeconds(ctx context.Context, seconds int64) error {
	return r.set(ctx, keyReminderLeadSeconds, strconv.FormatInt(seconds, 10))
}

// ReminderMinTTLSeconds exempts short holds from reminders: only holds
// granted at least this many seconds in total are reminded.
func (r *SettingsRepo) ReminderMinTTLSeconds(ctx context.Context) (int64, error) {
	return r.getPositiveInt(ctx, keyReminderMinTTLSeconds, DefaultReminderMinTTLSeconds)
}

func (r *SettingsRepo) SetReminderMinTTLSeconds(ctx context.Context, seconds int64) error {
	return r.set(ctx, keyReminderMinTTLSeconds, strconv.FormatInt(seconds, 10))
}

// DefaultExtendSeconds is the extension applied by the reminder quick
// action when the user does not name a duration.
func (r *SettingsRepo) DefaultExtendSeconds(ctx context.Context) (int64, error) {
	return r.getPositiveInt(ctx, keyDefaultExtendSeconds, DefaultExtendSeconds)
}

func (r *SettingsRepo) SetDefaultExtendSeconds(ctx context.Context, seconds int64) error {
	return r.set(ctx, keyDefaultExtendSeconds, strconv.FormatInt(seconds, 10))
}

// CommandAcksEnabled controls whether successful command acknowledgements
// are rendered.  Non-success results are always rendered.  Defaults to on.
func (r *SettingsRepo) CommandAcksEnabled(ctx context.Context) (bool, error) {
	return r.getBool(ctx, keyCommandAcksEnabled, true)
}

func (r *SettingsRepo) SetCommandAcksEnabled(ctx context.Context, enabled bool) error {
	return r.setBool(ctx, keyCommandAcksEnabled, enabled)
}

// RetentionDays returns the purge horizon for released holds, or nil when
// retention is disabled (the default).
func (r *SettingsRepo) RetentionDays(ctx context.Context) (*int64, error) {
	v, ok, err := r.get(ctx, keyRetentionDays)
	if err != nil || !ok {
		return nil, err
	}
	n, perr := strconv.ParseInt(v, 10, 64)
	if perr != nil || n <= 0 {
		return nil, nil
	}
	return &n, nil
}

// SetRetentionDays stores the purge horizon; zero or negative disables
// retention again.
func (r *SettingsRepo) SetRetentionDays(ctx context.Context, days int64) error {
	if days < 0 {
		days = 0
	}
	return r.set(ctx, keyRetentionDays, strconv.FormatInt(days, 10))
}

// LogLevel returns the stored verbosity (error|warning|info), defaulting
// to warning.  Unknown stored values also read as warning.
func (r *SettingsRepo) LogLevel(ctx context.Context) (string, error) {
	v, ok, err := r.get(ctx, keyLogLevel)
	if err != nil || !ok {
		return "warning", err
	}
	if lvl, valid := NormalizeLogLevel(v); valid {
		return lvl, nil
	}
	return "warning", nil
}

func (r *SettingsRepo) SetLogLevel(ctx context.Context, level string) error {
	lvl, ok := NormalizeLogLevel(level)
	if !ok {
		return ErrBadLogLevel
	}
	return r.set(ctx, keyLogLevel, lvl)
}

// NormalizeLogLevel canonicalizes a level string, accepting the common
// "warn" spelling for "warning".
func NormalizeLogLevel(input string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "error":
		return "error", true
	case "warn", "warning":
		return "warning", true
	case "info":
		return "info", true
	default:
		return "", false
	}
}
