package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"dibs/internal/config"
	"dibs/internal/repository"
	"dibs/internal/utils"
)

// AuthHandler issues access tokens for the admin REST API.  There is no
// self-service registration: admins are provisioned through the admin
// command or the ADMIN_USERS allowlist, and only provisioned admins with
// a password can log in here.
type AuthHandler struct {
	Cfg    config.Config
	Admins *repository.AdminRepo
}

func NewAuthHandler(cfg config.Config, a *repository.AdminRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Admins: a}
}

type loginReq struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type loginResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// Login: verify the admin's password and return a short-lived token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	admin, err := h.Admins.GetByUserID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrAdminNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if admin.PasswordHash == "" || !utils.VerifyPassword(admin.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, admin.UserID, "ADMIN", h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, loginResp{Token: access.Token, Expires: access.Exp})
}
