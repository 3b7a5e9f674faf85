package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "shh"

func sign(secret, ts, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + ts + ":" + body))
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

func doSigned(t *testing.T, ts, sig, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/commands", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if ts != "" {
		req.Header.Set("X-Request-Timestamp", ts)
	}
	if sig != "" {
		req.Header.Set("X-Signature", sig)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := VerifySignature(testSecret)(func(c echo.Context) error {
		// The body must still be readable after verification.
		return c.String(http.StatusOK, c.FormValue("text"))
	})
	require.NoError(t, h(c))
	return rec
}

func TestVerifySignatureAccepts(t *testing.T) {
	body := "user_id=U1&text=on+staging"
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	rec := doSigned(t, ts, sign(testSecret, ts, body), body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "on staging", rec.Body.String())
}

func TestVerifySignatureRejectsBadSignature(t *testing.T) {
	body := "user_id=U1&text=on+staging"
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	rec := doSigned(t, ts, sign("wrong", ts, body), body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	rec := doSigned(t, ts, sign(testSecret, ts, "user_id=U1&text=off+staging"), "user_id=U1&text=on+staging")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	body := "user_id=U1&text=on+staging"
	ts := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	rec := doSigned(t, ts, sign(testSecret, ts, body), body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifySignatureRejectsMissingHeaders(t *testing.T) {
	rec := doSigned(t, "", "", "user_id=U1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
