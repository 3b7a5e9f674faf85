package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dibs/internal/notify"
	"dibs/internal/repository"
	"dibs/internal/service"
)

func newCommandMock(t *testing.T) (*CommandHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	envs := repository.NewEnvironmentRepo(db)
	holds := repository.NewHoldRepo(db)
	queue := repository.NewQueueRepo(db)
	settings := repository.NewSettingsRepo(db, nil)
	admins := repository.NewAdminRepo(db, "UADMIN")
	eng := service.NewEngine(db, envs, holds, queue, settings, notify.NopPublisher{},
		func() int64 { return 1_700_000_000 })
	h := NewCommandHandler(eng, envs, admins, settings)
	h.now = func() int64 { return 1_700_000_000 }
	return h, mock
}

func postCommand(t *testing.T, h *CommandHandler, userID, text string) (*httptest.ResponseRecorder, commandResponse) {
	t.Helper()
	form := url.Values{}
	if userID != "" {
		form.Set("user_id", userID)
	}
	form.Set("channel_id", "C1")
	form.Set("text", text)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/commands", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.Handle(c))

	var resp commandResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestCommandRequiresUserID(t *testing.T) {
	h, _ := newCommandMock(t)
	form := url.Values{"text": {"list"}}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/commands", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Handle(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommandEmptyTextShowsHelp(t *testing.T) {
	h, _ := newCommandMock(t)
	rec, resp := postCommand(t, h, "U1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ephemeral", resp.ResponseType)
	assert.Contains(t, resp.Text, "on <env>")
}

func TestCommandUnknownVerb(t *testing.T) {
	h, _ := newCommandMock(t)
	_, resp := postCommand(t, h, "U1", "frobnicate staging")
	assert.Contains(t, resp.Text, "Unknown command `frobnicate`")
}

func TestCommandInfoUsage(t *testing.T) {
	h, _ := newCommandMock(t)
	_, resp := postCommand(t, h, "U1", "info")
	assert.Contains(t, resp.Text, "Usage: `info <env>`")
}

func TestCommandListBadFilter(t *testing.T) {
	h, _ := newCommandMock(t)
	_, resp := postCommand(t, h, "U1", "list everything")
	assert.Contains(t, resp.Text, "Usage: `list")
}

func TestCommandAdminGate(t *testing.T) {
	h, mock := newCommandMock(t)
	// Not on the static allowlist and not in the table either.
	mock.ExpectQuery(`SELECT 1 FROM admins WHERE user_id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	_, resp := postCommand(t, h, "U1", "archive staging")
	assert.Contains(t, resp.Text, "Admins only")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommandStaticAdminBypassesTable(t *testing.T) {
	h, mock := newCommandMock(t)
	// UADMIN is on the allowlist, so no admins query happens; the archive
	// goes straight to the registry.
	mock.ExpectExec(`UPDATE environments SET is_archived = `).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, resp := postCommand(t, h, "UADMIN", "archive staging")
	assert.Contains(t, resp.Text, "Archived `staging`")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommandAdminsAddStampsCreatedAt(t *testing.T) {
	h, mock := newCommandMock(t)
	mock.ExpectExec(`INSERT INTO admins`).
		WithArgs("U9", "", "UADMIN", int64(1_700_000_000)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, resp := postCommand(t, h, "UADMIN", "admins add <@U9>")
	assert.Contains(t, resp.Text, "<@U9> is now an admin")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommandAcksSuppressedKeepsFailuresVisible(t *testing.T) {
	h, mock := newCommandMock(t)
	// Unknown environment: the lookup misses.
	mock.ExpectQuery(`FROM environments WHERE name = \? AND is_archived = 0`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rec, resp := postCommand(t, h, "U1", "on ghost")
	assert.Equal(t, http.StatusOK, rec.Code)
	// Even with acks off this would render; non-success is never silent.
	assert.Contains(t, resp.Text, "Environment not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInteractUnknownAction(t *testing.T) {
	h, _ := newCommandMock(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/commands/interact",
		strings.NewReader(`{"action_id":"snooze","env":"staging","user_id":"U1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Interact(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
