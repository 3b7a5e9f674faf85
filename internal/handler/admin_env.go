package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"dibs/internal/model"
	"dibs/internal/repository"
	"dibs/internal/service"
	"dibs/internal/utils"
)

// AdminEnvHandler exposes the environment registry over REST for tooling
// that does not go through chat.  All routes sit behind JWTAuth and
// RequireRole("ADMIN").
type AdminEnvHandler struct {
	Envs   *repository.EnvironmentRepo
	Engine *service.Engine
}

func NewAdminEnvHandler(envs *repository.EnvironmentRepo, eng *service.Engine) *AdminEnvHandler {
	return &AdminEnvHandler{Envs: envs, Engine: eng}
}

type envPart struct {
	ID                uint64 `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	DefaultTTLSeconds int64  `json:"default_ttl_seconds"`
	MaxTTLSeconds     *int64 `json:"max_ttl_seconds,omitempty"`
	AnnounceEnabled   bool   `json:"announce_enabled"`
	ChannelID         string `json:"channel_id,omitempty"`
}

func toEnvPart(e model.Environment) envPart {
	return envPart{ID: e.ID, Name: e.Name, Description: e.Description,
		DefaultTTLSeconds: e.DefaultTTLSeconds, MaxTTLSeconds: e.MaxTTLSeconds,
		AnnounceEnabled: e.AnnounceEnabled, ChannelID: e.ChannelID}
}

// List returns all non-archived environments.
func (h *AdminEnvHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	envs, err := h.Envs.ListActive(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list failed"})
	}
	out := make([]envPart, len(envs))
	for i, e := range envs {
		out[i] = toEnvPart(e)
	}
	return c.JSON(http.StatusOK, echo.Map{"environments": out})
}

type createEnvReq struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	DefaultTTLSeconds int64  `json:"default_ttl_seconds"`
}

// Create adds an environment.  Unlike the chat add command this is
// strict: an existing name is a conflict, archived or not.
func (h *AdminEnvHandler) Create(c echo.Context) error {
	var req createEnvReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	name, err := utils.NormalizeEnvName(req.Name)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if req.DefaultTTLSeconds <= 0 {
		req.DefaultTTLSeconds = defaultEnvTTLSeconds
	}
	actor, _ := c.Get("user_id").(string)

	ctx, cancel := reqCtx(c)
	defer cancel()

	env := &model.Environment{Name: name, Description: req.Description,
		DefaultTTLSeconds: req.DefaultTTLSeconds, CreatedBy: actor}
	if err := h.Envs.Create(ctx, env); err != nil {
		if errors.Is(err, repository.ErrNameTaken) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "name already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, toEnvPart(*env))
}

type updateEnvReq struct {
	DefaultTTLSeconds *int64  `json:"default_ttl_seconds"`
	MaxTTLSeconds     *int64  `json:"max_ttl_seconds"`
	ClearMaxTTL       bool    `json:"clear_max_ttl"`
	AnnounceEnabled   *bool   `json:"announce_enabled"`
	ChannelID         *string `json:"channel_id"`
	Archived          *bool   `json:"archived"`
	Rename            *string `json:"rename"`
}

// Update applies any subset of policy changes to one environment.
func (h *AdminEnvHandler) Update(c echo.Context) error {
	name, err := utils.NormalizeEnvName(c.Param("name"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req updateEnvReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	apply := func(err error) error {
		switch {
		case err == nil:
			return nil
		case errors.Is(err, repository.ErrEnvNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "environment not found"})
		case errors.Is(err, repository.ErrNameTaken):
			return c.JSON(http.StatusConflict, echo.Map{"error": "name already exists"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
		}
	}

	if req.DefaultTTLSeconds != nil {
		if *req.DefaultTTLSeconds <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "default_ttl_seconds must be positive"})
		}
		if err := h.Envs.SetDefaultTTL(ctx, name, *req.DefaultTTLSeconds); err != nil {
			return apply(err)
		}
	}
	if req.ClearMaxTTL {
		if err := h.Envs.SetMaxTTL(ctx, name, nil); err != nil {
			return apply(err)
		}
	} else if req.MaxTTLSeconds != nil {
		if *req.MaxTTLSeconds <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "max_ttl_seconds must be positive"})
		}
		if err := h.Envs.SetMaxTTL(ctx, name, req.MaxTTLSeconds); err != nil {
			return apply(err)
		}
	}
	if req.AnnounceEnabled != nil {
		if err := h.Envs.SetAnnounceEnabled(ctx, name, *req.AnnounceEnabled); err != nil {
			return apply(err)
		}
	}
	if req.ChannelID != nil {
		if err := h.Envs.SetChannelID(ctx, name, *req.ChannelID); err != nil {
			return apply(err)
		}
	}
	if req.Archived != nil {
		if err := h.Envs.SetArchived(ctx, name, *req.Archived); err != nil {
			return apply(err)
		}
	}
	if req.Rename != nil {
		newName, nerr := utils.NormalizeEnvName(*req.Rename)
		if nerr != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": nerr.Error()})
		}
		if err := h.Envs.Rename(ctx, name, newName); err != nil {
			return apply(err)
		}
		name = newName
	}

	env, err := h.Envs.GetByNameAny(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrEnvNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "environment not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "read back failed"})
	}
	return c.JSON(http.StatusOK, toEnvPart(*env))
}

// ForceRelease evicts the current holder through the same engine path as
// the chat command, including queue promotion and notifications.
func (h *AdminEnvHandler) ForceRelease(c echo.Context) error {
	actor, _ := c.Get("user_id").(string)

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Engine.ForceRelease(ctx, c.Param("name"), actor)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "force release failed"})
	}
	if res.Kind == service.KindEnvNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "environment not found"})
	}
	return c.JSON(http.StatusOK, res)
}

type transferReq struct {
	ToUserID string `json:"to_user_id"`
}

// Transfer reassigns the active hold to another user.
func (h *AdminEnvHandler) Transfer(c echo.Context) error {
	var req transferReq
	if err := c.Bind(&req); err != nil || req.ToUserID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to_user_id required"})
	}
	actor, _ := c.Get("user_id").(string)

	ctx, cancel := reqCtx(c)
	defer cancel()

	res, err := h.Engine.Transfer(ctx, c.Param("name"), actor, req.ToUserID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transfer failed"})
	}
	if res.Kind == service.KindEnvNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "environment not found"})
	}
	return c.JSON(http.StatusOK, res)
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}
