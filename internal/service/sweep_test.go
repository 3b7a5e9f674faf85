package service

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dibs/internal/notify"
	"dibs/internal/repository"
)

func newSweeperMock(t *testing.T) (*Sweeper, sqlmock.Sqlmock, *capturePublisher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pub := &capturePublisher{}
	s := NewSweeper(db,
		repository.NewEnvironmentRepo(db),
		repository.NewHoldRepo(db),
		repository.NewQueueRepo(db),
		repository.NewSettingsRepo(db, nil),
		pub,
		func() int64 { return testNow })
	return s, mock, pub
}

func TestRemindPassSendsOnceWithActions(t *testing.T) {
	s, mock, pub := newSweeperMock(t)

	// All settings unset: reminders on (via the global DM default), lead
	// 600s, min TTL 1800s, default extension 900s.
	expectSettingsMiss(mock) // dm_reminder_enabled
	expectSettingsMiss(mock) // dm_enabled fallback
	expectSettingsMiss(mock) // reminder_lead_seconds
	expectSettingsMiss(mock) // reminder_min_ttl_seconds
	expectSettingsMiss(mock) // default_extend_seconds

	mock.ExpectQuery(`JOIN environments e ON e.id = h.env_id`).
		WithArgs(testNow, testNow+600, int64(1800)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "env_id", "user_id", "started_at",
			"expires_at", "released_at", "reminded_at", "note", "name"}).
			AddRow(5, 1, "U1", testNow-6900, testNow+300, nil, nil, "", "staging"))
	mock.ExpectExec(`UPDATE holds SET reminded_at = \?`).
		WithArgs(testNow, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.remindPass(context.Background()))

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, notify.RecipientUser, ev.Recipient)
	assert.Equal(t, "U1", ev.RecipientID)
	assert.Contains(t, ev.Text, "expires in 5m")
	require.Len(t, ev.Actions, 2)
	assert.Equal(t, "extend_default", ev.Actions[0].ID)
	assert.Equal(t, "release_now", ev.Actions[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemindPassSkipsAlreadyMarked(t *testing.T) {
	s, mock, pub := newSweeperMock(t)

	expectSettingsMiss(mock)
	expectSettingsMiss(mock)
	expectSettingsMiss(mock)
	expectSettingsMiss(mock)
	expectSettingsMiss(mock)

	mock.ExpectQuery(`JOIN environments e ON e.id = h.env_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "env_id", "user_id", "started_at",
			"expires_at", "released_at", "reminded_at", "note", "name"}).
			AddRow(5, 1, "U1", testNow-6900, testNow+300, nil, nil, "", "staging"))
	// A concurrent tick marked it first; the guard reports zero rows.
	mock.ExpectExec(`UPDATE holds SET reminded_at = \?`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.remindPass(context.Background()))
	assert.Empty(t, pub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemindPassDisabled(t *testing.T) {
	s, mock, pub := newSweeperMock(t)

	mock.ExpectQuery(`SELECT value FROM settings`).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("0"))

	require.NoError(t, s.remindPass(context.Background()))
	assert.Empty(t, pub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpirePassReleasesAndPromotes(t *testing.T) {
	s, mock, pub := newSweeperMock(t)

	mock.ExpectQuery(`WHERE h.released_at IS NULL AND h.expires_at <= \?`).
		WithArgs(testNow).
		WillReturnRows(sqlmock.NewRows([]string{"id", "env_id", "user_id", "started_at",
			"expires_at", "released_at", "reminded_at", "note", "name", "default_ttl_seconds"}).
			AddRow(5, 1, "U1", testNow-7500, testNow-300, nil, nil, "", "staging", int64(7200)))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE holds SET released_at = \?`).
		WithArgs(testNow, uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM queue_entries WHERE env_id = \? ORDER BY position ASC LIMIT 1 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "env_id", "user_id", "position",
			"enqueued_at", "requested_ttl_seconds"}).AddRow(21, 1, "U2", 1, testNow-600, int64(30)))
	mock.ExpectExec(`DELETE FROM queue_entries WHERE id = \?`).
		WithArgs(uint64(21)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE queue_entries SET position = position - 1`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// Requested 30s is floored to the minimum promoted TTL.
	mock.ExpectExec(`INSERT INTO holds`).
		WithArgs(uint64(1), "U2", testNow, testNow+MinPromotedTTLSeconds, "assigned from queue (expiry)").
		WillReturnResult(sqlmock.NewResult(12, 1))
	mock.ExpectCommit()

	expectSettingsMiss(mock) // dm_expiry_enabled
	expectSettingsMiss(mock) // dm_enabled fallback
	expectSettingsMiss(mock) // dm_enabled for the promotion DM
	expectSettingsMiss(mock) // announce_global_enabled

	require.NoError(t, s.expirePass(context.Background()))

	require.Len(t, pub.events, 2)
	assert.Equal(t, "U1", pub.events[0].RecipientID)
	assert.Contains(t, pub.events[0].Text, "expired")
	assert.Equal(t, "U2", pub.events[1].RecipientID)
	assert.Contains(t, pub.events[1].Text, "You now hold `staging`")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpirePassSkipsConcurrentlyReleased(t *testing.T) {
	s, mock, pub := newSweeperMock(t)

	mock.ExpectQuery(`WHERE h.released_at IS NULL AND h.expires_at <= \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "env_id", "user_id", "started_at",
			"expires_at", "released_at", "reminded_at", "note", "name", "default_ttl_seconds"}).
			AddRow(5, 1, "U1", testNow-7500, testNow-300, nil, nil, "", "staging", int64(7200)))

	mock.ExpectBegin()
	// Someone released it between the scan and the guard.
	mock.ExpectExec(`UPDATE holds SET released_at = \?`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, s.expirePass(context.Background()))
	assert.Empty(t, pub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetentionPassDisabledByDefault(t *testing.T) {
	s, mock, _ := newSweeperMock(t)

	expectSettingsMiss(mock) // retention_days unset

	require.NoError(t, s.retentionPass(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRetentionPassPurges(t *testing.T) {
	s, mock, _ := newSweeperMock(t)

	mock.ExpectQuery(`SELECT value FROM settings`).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("30"))
	mock.ExpectExec(`DELETE FROM holds WHERE released_at IS NOT NULL AND released_at < \?`).
		WithArgs(testNow - 30*24*60*60).
		WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, s.retentionPass(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpirePassNothingExpired(t *testing.T) {
	s, mock, pub := newSweeperMock(t)

	mock.ExpectQuery(`WHERE h.released_at IS NULL AND h.expires_at <= \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "env_id", "user_id", "started_at",
			"expires_at", "released_at", "reminded_at", "note", "name", "default_ttl_seconds"}))

	require.NoError(t, s.expirePass(context.Background()))
	assert.Empty(t, pub.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}
