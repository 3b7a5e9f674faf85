package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"dibs/internal/repository"
	"dibs/internal/service"
	"dibs/internal/utils"
)

// CommandHandler is the chat-facing entry point: one slash command whose
// text is a small verb language ("on staging 2h", "off staging", "list
// free").  Requests arrive as form posts already authenticated by the
// signature middleware.
type CommandHandler struct {
	Engine   *service.Engine
	Envs     *repository.EnvironmentRepo
	Admins   *repository.AdminRepo
	Settings *repository.SettingsRepo

	now func() int64
}

func NewCommandHandler(eng *service.Engine, envs *repository.EnvironmentRepo,
	admins *repository.AdminRepo, settings *repository.SettingsRepo) *CommandHandler {
	return &CommandHandler{Engine: eng, Envs: envs, Admins: admins, Settings: settings,
		now: func() int64 { return time.Now().Unix() }}
}

type commandResponse struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
}

func ephemeral(text string) commandResponse {
	return commandResponse{ResponseType: "ephemeral", Text: text}
}

// Handle parses the command text and dispatches on the first word.
func (h *CommandHandler) Handle(c echo.Context) error {
	userID := strings.TrimSpace(c.FormValue("user_id"))
	channelID := strings.TrimSpace(c.FormValue("channel_id"))
	text := strings.TrimSpace(c.FormValue("text"))
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	args := strings.Fields(text)
	if len(args) == 0 {
		return c.JSON(http.StatusOK, ephemeral(helpText))
	}
	verb := strings.ToLower(args[0])
	rest := args[1:]

	var (
		res service.Result
		err error
	)
	switch verb {
	case "help":
		return c.JSON(http.StatusOK, ephemeral(helpText))
	case "on":
		res, err = h.cmdOn(ctx, userID, rest)
	case "off":
		res, err = h.cmdOff(ctx, userID, rest)
	case "extend":
		res, err = h.cmdExtend(ctx, userID, rest)
	case "info":
		if len(rest) != 1 {
			return c.JSON(http.StatusOK, ephemeral("Usage: `info <env>`"))
		}
		res, err = h.Engine.Info(ctx, rest[0], userID)
	case "list":
		filter := service.FilterAll
		if len(rest) > 0 {
			switch strings.ToLower(rest[0]) {
			case "active":
				filter = service.FilterActive
			case "free":
				filter = service.FilterFree
			case "mine":
				filter = service.FilterMine
			case "all":
			default:
				return c.JSON(http.StatusOK, ephemeral("Usage: `list [all|active|free|mine]`"))
			}
		}
		res, err = h.Engine.List(ctx, userID, filter)
	case "add", "default", "max", "archive", "unarchive", "rename", "announce",
		"force-off", "transfer", "admins", "settings":
		return h.handleAdmin(c, ctx, verb, userID, channelID, rest)
	default:
		return c.JSON(http.StatusOK, ephemeral(
			"Unknown command `"+verb+"`. Try `help`."))
	}
	if err != nil {
		c.Logger().Errorf("command %s failed: %v", verb, err)
		return c.JSON(http.StatusOK, ephemeral("Something went wrong. Try again."))
	}
	return h.respond(c, ctx, res)
}

// respond renders an engine result, suppressing successful confirmations
// when acks are turned off.  Failures and queue outcomes stay visible
// regardless: silence is only acceptable when everything went as asked.
func (h *CommandHandler) respond(c echo.Context, ctx context.Context, res service.Result) error {
	if res.OK {
		acks, err := h.Settings.CommandAcksEnabled(ctx)
		if err == nil && !acks {
			return c.NoContent(http.StatusOK)
		}
	}
	return c.JSON(http.StatusOK, ephemeral(res.Message))
}

func (h *CommandHandler) cmdOn(ctx context.Context, userID string, args []string) (service.Result, error) {
	if len(args) == 0 {
		return service.UsageResult("Usage: `on <env> [duration] [note]`"), nil
	}
	env := args[0]
	opts := service.AcquireOptions{}
	rest := args[1:]
	if len(rest) > 0 {
		if secs, ok := utils.ParseDurationSeconds(rest[0]); ok {
			opts.RequestedSeconds = &secs
			rest = rest[1:]
		}
	}
	opts.Note = strings.Join(rest, " ")
	return h.Engine.Acquire(ctx, env, userID, opts)
}

func (h *CommandHandler) cmdOff(ctx context.Context, userID string, args []string) (service.Result, error) {
	if len(args) != 1 {
		return service.UsageResult("Usage: `off <env>`"), nil
	}
	return h.Engine.Release(ctx, args[0], userID)
}

func (h *CommandHandler) cmdExtend(ctx context.Context, userID string, args []string) (service.Result, error) {
	if len(args) == 0 || len(args) > 2 {
		return service.UsageResult("Usage: `extend <env> [duration]`"), nil
	}
	var secs int64
	if len(args) == 2 {
		parsed, ok := utils.ParseDurationSeconds(args[1])
		if !ok {
			return service.UsageResult("Could not parse duration `" + args[1] + "`. Try `30m`, `2h` or `90`."), nil
		}
		secs = parsed
	} else {
		def, err := h.Settings.DefaultExtendSeconds(ctx)
		if err != nil {
			return service.Result{}, err
		}
		secs = def
	}
	return h.Engine.Extend(ctx, args[0], userID, secs)
}

// interactReq is the payload posted when a user clicks a quick action on
// a reminder message.
type interactReq struct {
	ActionID string `json:"action_id"`
	EnvName  string `json:"env"`
	UserID   string `json:"user_id"`
}

// Interact executes reminder quick actions: extend by the configured
// default, or release immediately.
func (h *CommandHandler) Interact(c echo.Context) error {
	var req interactReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.UserID == "" || req.EnvName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id/env required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var (
		res service.Result
		err error
	)
	switch req.ActionID {
	case "extend_default":
		var secs int64
		secs, err = h.Settings.DefaultExtendSeconds(ctx)
		if err == nil {
			res, err = h.Engine.Extend(ctx, req.EnvName, req.UserID, secs)
		}
	case "release_now":
		res, err = h.Engine.Release(ctx, req.EnvName, req.UserID)
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown action"})
	}
	if err != nil {
		c.Logger().Errorf("interact %s failed: %v", req.ActionID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "action failed"})
	}
	return c.JSON(http.StatusOK, ephemeral(res.Message))
}

const helpText = "*Commands*\n" +
	"• `on <env> [duration] [note]` — claim an environment (e.g. `on staging 2h deploy test`)\n" +
	"• `off <env>` — release your hold, or leave the queue\n" +
	"• `extend <env> [duration]` — push your deadline forward\n" +
	"• `info <env>` — holder, deadline and queue\n" +
	"• `list [all|active|free|mine]` — overview of environments\n" +
	"\n*Admin*\n" +
	"• `add <env> [default-ttl] [description]`\n" +
	"• `default <env> <duration>` / `max <env> <duration|none>`\n" +
	"• `archive <env>` / `unarchive <env>` / `rename <old> <new>`\n" +
	"• `announce <env> on|off|#channel`\n" +
	"• `force-off <env>` / `transfer <env> @user`\n" +
	"• `admins list|add @user|remove @user`\n" +
	"• `settings` — show and change runtime settings"
