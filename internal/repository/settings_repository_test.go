package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSettingsMock(t *testing.T) (*SettingsRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSettingsRepo(db, nil), mock
}

func settingRow(v string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"value"}).AddRow(v)
}

func noSetting(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT value FROM settings`).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))
}

func TestSettingsDefaults(t *testing.T) {
	r, mock := newSettingsMock(t)
	ctx := context.Background()

	noSetting(mock)
	dm, err := r.DMEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, dm)

	noSetting(mock)
	ann, err := r.AnnounceGlobalEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, ann)

	noSetting(mock)
	lead, err := r.ReminderLeadSeconds(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultReminderLeadSeconds), lead)

	noSetting(mock)
	acks, err := r.CommandAcksEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, acks)

	noSetting(mock)
	retention, err := r.RetentionDays(ctx)
	require.NoError(t, err)
	assert.Nil(t, retention)

	noSetting(mock)
	level, err := r.LogLevel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "warning", level)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDMReminderFallsBackToGlobalToggle(t *testing.T) {
	r, mock := newSettingsMock(t)
	ctx := context.Background()

	// Specific key unset, global toggle off: reminders follow the global.
	noSetting(mock)
	mock.ExpectQuery(`SELECT value FROM settings`).WillReturnRows(settingRow("0"))
	enabled, err := r.DMReminderEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	// Specific key set wins over the global toggle.
	mock.ExpectQuery(`SELECT value FROM settings`).WillReturnRows(settingRow("1"))
	enabled, err = r.DMReminderEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsStoredValuesParse(t *testing.T) {
	r, mock := newSettingsMock(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT value FROM settings`).WillReturnRows(settingRow("300"))
	lead, err := r.ReminderLeadSeconds(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(300), lead)

	// Garbage numeric values fall back rather than propagate.
	mock.ExpectQuery(`SELECT value FROM settings`).WillReturnRows(settingRow("banana"))
	lead, err = r.ReminderLeadSeconds(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultReminderLeadSeconds), lead)

	mock.ExpectQuery(`SELECT value FROM settings`).WillReturnRows(settingRow("30"))
	retention, err := r.RetentionDays(ctx)
	require.NoError(t, err)
	require.NotNil(t, retention)
	assert.Equal(t, int64(30), *retention)

	// A stored zero reads as disabled.
	mock.ExpectQuery(`SELECT value FROM settings`).WillReturnRows(settingRow("0"))
	retention, err = r.RetentionDays(ctx)
	require.NoError(t, err)
	assert.Nil(t, retention)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetLogLevelValidates(t *testing.T) {
	r, mock := newSettingsMock(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO settings`).
		WithArgs("log_level", "warning").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, r.SetLogLevel(ctx, "WARN"))

	assert.ErrorIs(t, r.SetLogLevel(ctx, "debug"), ErrBadLogLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseBool(t *testing.T) {
	assert.True(t, ParseBool("1", false))
	assert.True(t, ParseBool("true", false))
	assert.True(t, ParseBool("on", false))
	assert.False(t, ParseBool("0", true))
	assert.False(t, ParseBool("off", true))
	assert.True(t, ParseBool("mystery", true))
	assert.False(t, ParseBool("mystery", false))
}
