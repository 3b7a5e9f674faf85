package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"dibs/internal/config"
	"dibs/internal/repository"
	"dibs/internal/utils"
)

func newAuthMock(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	cfg := config.Config{JWTSecret: "test-secret", AccessTTLMin: 15, BcryptCost: bcrypt.MinCost}
	return NewAuthHandler(cfg, repository.NewAdminRepo(db, "")), mock
}

func postLogin(t *testing.T, h *AuthHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Login(e.NewContext(req, rec)))
	return rec
}

func adminRow(t *testing.T, userID, password string) *sqlmock.Rows {
	t.Helper()
	hash := ""
	if password != "" {
		var err error
		hash, err = utils.HashPassword(password, bcrypt.MinCost)
		require.NoError(t, err)
	}
	return sqlmock.NewRows([]string{"user_id", "password_hash", "created_by", "created_at"}).
		AddRow(userID, hash, "bootstrap", int64(1_700_000_000))
}

func TestLoginIssuesTokenForProvisionedAdmin(t *testing.T) {
	h, mock := newAuthMock(t)
	mock.ExpectQuery(`SELECT user_id, password_hash, created_by, created_at FROM admins`).
		WithArgs("U1").
		WillReturnRows(adminRow(t, "U1", "hunter2"))

	rec := postLogin(t, h, `{"user_id":"U1","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	parsed, err := jwt.Parse(resp.Token, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, "U1", claims["sub"])
	assert.Equal(t, "ADMIN", claims["role"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	h, mock := newAuthMock(t)
	mock.ExpectQuery(`SELECT user_id, password_hash, created_by, created_at FROM admins`).
		WithArgs("U1").
		WillReturnRows(adminRow(t, "U1", "hunter2"))

	rec := postLogin(t, h, `{"user_id":"U1","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsAdminWithoutPassword(t *testing.T) {
	// Command-provisioned admins have no stored hash and cannot log in
	// until a password is bootstrapped.
	h, mock := newAuthMock(t)
	mock.ExpectQuery(`SELECT user_id, password_hash, created_by, created_at FROM admins`).
		WithArgs("U1").
		WillReturnRows(adminRow(t, "U1", ""))

	rec := postLogin(t, h, `{"user_id":"U1","password":"anything"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsUnknownAdmin(t *testing.T) {
	h, mock := newAuthMock(t)
	mock.ExpectQuery(`SELECT user_id, password_hash, created_by, created_at FROM admins`).
		WithArgs("U9").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "password_hash", "created_by", "created_at"}))

	rec := postLogin(t, h, `{"user_id":"U9","password":"hunter2"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
