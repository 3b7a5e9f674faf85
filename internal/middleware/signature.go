package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

const signatureVersion = "v0"

// Replay window for signed command requests.  Requests whose timestamp is
// older (or newer) than this are rejected before the signature is checked.
const signatureMaxSkew = 5 * time.Minute

// VerifySignature authenticates slash-command requests with a shared
// secret: the sender signs "v0:<timestamp>:<body>" with HMAC-SHA256 and
// puts the hex digest in X-Signature alongside X-Request-Timestamp.  The
// body is re-buffered so the handler downstream can still read it.
func VerifySignature(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ts := req.Header.Get("X-Request-Timestamp")
			sig := req.Header.Get("X-Signature")
			if ts == "" || sig == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing signature"})
			}
			tsec, err := strconv.ParseInt(ts, 10, 64)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "bad timestamp"})
			}
			if math.Abs(float64(time.Now().Unix()-tsec)) > signatureMaxSkew.Seconds() {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "stale request"})
			}

			body, err := io.ReadAll(req.Body)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
			}
			req.Body = io.NopCloser(bytes.NewReader(body))

			mac := hmac.New(sha256.New, []byte(secret))
			mac.Write([]byte(signatureVersion + ":" + ts + ":"))
			mac.Write(body)
			expected := signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
			if !hmac.Equal([]byte(expected), []byte(sig)) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid signature"})
			}
			return next(c)
		}
	}
}
