package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"dibs/internal/model"
	"dibs/internal/repository"
	"dibs/internal/utils"
)

// defaultEnvTTLSeconds is granted to new environments when the add
// command names no duration.
const defaultEnvTTLSeconds int64 = 7200

// handleAdmin dispatches the admin-only verbs after an admin check.
func (h *CommandHandler) handleAdmin(c echo.Context, ctx context.Context,
	verb, userID, channelID string, args []string) error {
	isAdmin, err := h.Admins.IsAdmin(ctx, userID)
	if err != nil {
		c.Logger().Errorf("admin check failed: %v", err)
		return c.JSON(http.StatusOK, ephemeral("Something went wrong. Try again."))
	}
	if !isAdmin {
		return c.JSON(http.StatusOK, ephemeral("Admins only. Ask an existing admin to add you."))
	}

	var msg string
	switch verb {
	case "add":
		msg, err = h.cmdAdd(ctx, userID, args)
	case "default":
		msg, err = h.cmdDefault(ctx, args)
	case "max":
		msg, err = h.cmdMax(ctx, args)
	case "archive":
		msg, err = h.cmdArchive(ctx, args, true)
	case "unarchive":
		msg, err = h.cmdArchive(ctx, args, false)
	case "rename":
		msg, err = h.cmdRename(ctx, args)
	case "announce":
		msg, err = h.cmdAnnounce(ctx, channelID, args)
	case "force-off":
		if len(args) != 1 {
			return c.JSON(http.StatusOK, ephemeral("Usage: `force-off <env>`"))
		}
		res, ferr := h.Engine.ForceRelease(ctx, args[0], userID)
		if ferr != nil {
			err = ferr
		} else {
			msg = res.Message
		}
	case "transfer":
		if len(args) != 2 {
			return c.JSON(http.StatusOK, ephemeral("Usage: `transfer <env> @user`"))
		}
		to := utils.ParseUserRef(args[1])
		if to == "" {
			return c.JSON(http.StatusOK, ephemeral("Could not parse user `"+args[1]+"`."))
		}
		res, terr := h.Engine.Transfer(ctx, args[0], userID, to)
		if terr != nil {
			err = terr
		} else {
			msg = res.Message
		}
	case "admins":
		msg, err = h.cmdAdmins(ctx, userID, args)
	case "settings":
		msg, err = h.cmdSettings(ctx, args)
	}
	if err != nil {
		c.Logger().Errorf("admin command %s failed: %v", verb, err)
		return c.JSON(http.StatusOK, ephemeral("Something went wrong. Try again."))
	}
	return c.JSON(http.StatusOK, ephemeral(msg))
}

// cmdAdd creates an environment.  Adding an archived name revives it
// instead, keeping its history; adding an existing active name is a
// no-op report, not an error.
func (h *CommandHandler) cmdAdd(ctx context.Context, userID string, args []string) (string, error) {
	if len(args) == 0 {
		return "Usage: `add <env> [default-ttl] [description]`", nil
	}
	name, err := utils.NormalizeEnvName(args[0])
	if err != nil {
		return err.Error(), nil
	}
	var requestedTTL *int64
	rest := args[1:]
	if len(rest) > 0 {
		if secs, ok := utils.ParseDurationSeconds(rest[0]); ok {
			requestedTTL = &secs
			rest = rest[1:]
		}
	}
	description := strings.Join(rest, " ")

	existing, err := h.Envs.GetByNameAny(ctx, name)
	if err != nil && !errors.Is(err, repository.ErrEnvNotFound) {
		return "", err
	}
	if existing != nil {
		if !existing.IsArchived {
			return fmt.Sprintf("Environment `%s` already exists.", name), nil
		}
		var desc *string
		if description != "" {
			desc = &description
		}
		if err := h.Envs.Revive(ctx, existing.ID, requestedTTL, desc); err != nil {
			return "", err
		}
		return fmt.Sprintf("Unarchived environment `%s`.", name), nil
	}

	ttl := defaultEnvTTLSeconds
	if requestedTTL != nil {
		ttl = *requestedTTL
	}
	env := &model.Environment{Name: name, Description: description,
		DefaultTTLSeconds: ttl, CreatedBy: userID}
	if err := h.Envs.Create(ctx, env); err != nil {
		if errors.Is(err, repository.ErrNameTaken) {
			return fmt.Sprintf("Environment `%s` already exists.", name), nil
		}
		return "", err
	}
	return fmt.Sprintf("Created environment `%s` (default %s).", name, utils.HumanizeSeconds(ttl)), nil
}

func (h *CommandHandler) cmdDefault(ctx context.Context, args []string) (string, error) {
	if len(args) != 2 {
		return "Usage: `default <env> <duration>`", nil
	}
	name, err := utils.NormalizeEnvName(args[0])
	if err != nil {
		return err.Error(), nil
	}
	secs, ok := utils.ParseDurationSeconds(args[1])
	if !ok || secs <= 0 {
		return "Could not parse duration `" + args[1] + "`.", nil
	}
	if err := h.Envs.SetDefaultTTL(ctx, name, secs); err != nil {
		if errors.Is(err, repository.ErrEnvNotFound) {
			return fmt.Sprintf("Environment `%s` not found.", name), nil
		}
		return "", err
	}
	return fmt.Sprintf("Default TTL for `%s` set to %s.", name, utils.HumanizeSeconds(secs)), nil
}

func (h *CommandHandler) cmdMax(ctx context.Context, args []string) (string, error) {
	if len(args) != 2 {
		return "Usage: `max <env> <duration|none>`", nil
	}
	name, err := utils.NormalizeEnvName(args[0])
	if err != nil {
		return err.Error(), nil
	}
	if strings.EqualFold(args[1], "none") {
		if err := h.Envs.SetMaxTTL(ctx, name, nil); err != nil {
			if errors.Is(err, repository.ErrEnvNotFound) {
				return fmt.Sprintf("Environment `%s` not found.", name), nil
			}
			return "", err
		}
		return fmt.Sprintf("Max TTL for `%s` removed.", name), nil
	}
	secs, ok := utils.ParseDurationSeconds(args[1])
	if !ok || secs <= 0 {
		return "Could not parse duration `" + args[1] + "`.", nil
	}
	if err := h.Envs.SetMaxTTL(ctx, name, &secs); err != nil {
		if errors.Is(err, repository.ErrEnvNotFound) {
			return fmt.Sprintf("Environment `%s` not found.", name), nil
		}
		return "", err
	}
	return fmt.Sprintf("Max TTL for `%s` set to %s.", name, utils.HumanizeSeconds(secs)), nil
}

func (h *CommandHandler) cmdArchive(ctx context.Context, args []string, archive bool) (string, error) {
	usage := "Usage: `archive <env>`"
	if !archive {
		usage = "Usage: `unarchive <env>`"
	}
	if len(args) != 1 {
		return usage, nil
	}
	name, err := utils.NormalizeEnvName(args[0])
	if err != nil {
		return err.Error(), nil
	}
	if err := h.Envs.SetArchived(ctx, name, archive); err != nil {
		if errors.Is(err, repository.ErrEnvNotFound) {
			return fmt.Sprintf("Environment `%s` not found.", name), nil
		}
		return "", err
	}
	if archive {
		return fmt.Sprintf("Archived `%s`. It is hidden from reservations but keeps its history.", name), nil
	}
	return fmt.Sprintf("Unarchived `%s`.", name), nil
}

func (h *CommandHandler) cmdRename(ctx context.Context, args []string) (string, error) {
	if len(args) != 2 {
		return "Usage: `rename <old> <new>`", nil
	}
	oldName, err := utils.NormalizeEnvName(args[0])
	if err != nil {
		return err.Error(), nil
	}
	newName, err := utils.NormalizeEnvName(args[1])
	if err != nil {
		return err.Error(), nil
	}
	if err := h.Envs.Rename(ctx, oldName, newName); err != nil {
		switch {
		case errors.Is(err, repository.ErrEnvNotFound):
			return fmt.Sprintf("Environment `%s` not found.", oldName), nil
		case errors.Is(err, repository.ErrNameTaken):
			return fmt.Sprintf("Name `%s` is already taken.", newName), nil
		}
		return "", err
	}
	return fmt.Sprintf("Renamed `%s` to `%s`. Holds and queue carry over.", oldName, newName), nil
}

// cmdAnnounce binds an environment to an announcement channel or toggles
// announcements for it.  Passing a #channel both binds and enables;
// passing "on" with no bound channel binds the channel the command came
// from.
func (h *CommandHandler) cmdAnnounce(ctx context.Context, channelID string, args []string) (string, error) {
	if len(args) != 2 {
		return "Usage: `announce <env> on|off|#channel`", nil
	}
	name, err := utils.NormalizeEnvName(args[0])
	if err != nil {
		return err.Error(), nil
	}
	arg := args[1]
	notFound := fmt.Sprintf("Environment `%s` not found.", name)

	// Channel references come in the expanded "<#C123|name>" form, which
	// cannot collide with the on/off keywords below.
	if strings.HasPrefix(arg, "<#") {
		ch := utils.ParseChannelRef(arg)
		if ch == "" {
			return "Could not parse channel `" + arg + "`.", nil
		}
		if err := h.Envs.SetChannelID(ctx, name, ch); err != nil {
			if errors.Is(err, repository.ErrEnvNotFound) {
				return notFound, nil
			}
			return "", err
		}
		if err := h.Envs.SetAnnounceEnabled(ctx, name, true); err != nil {
			return "", err
		}
		return fmt.Sprintf("Announcements for `%s` enabled in <#%s>.", name, ch), nil
	}

	switch strings.ToLower(arg) {
	case "on":
		env, err := h.Envs.GetByName(ctx, name)
		if err != nil {
			if errors.Is(err, repository.ErrEnvNotFound) {
				return notFound, nil
			}
			return "", err
		}
		if env.ChannelID == "" {
			if channelID == "" {
				return "No channel bound. Use `announce " + name + " #channel`.", nil
			}
			if err := h.Envs.SetChannelID(ctx, name, channelID); err != nil {
				return "", err
			}
		}
		if err := h.Envs.SetAnnounceEnabled(ctx, name, true); err != nil {
			return "", err
		}
		return fmt.Sprintf("Announcements for `%s` enabled.", name), nil
	case "off":
		if err := h.Envs.SetAnnounceEnabled(ctx, name, false); err != nil {
			if errors.Is(err, repository.ErrEnvNotFound) {
				return notFound, nil
			}
			return "", err
		}
		return fmt.Sprintf("Announcements for `%s` disabled.", name), nil
	}
	return "Usage: `announce <env> on|off|#channel`", nil
}

func (h *CommandHandler) cmdAdmins(ctx context.Context, actorID string, args []string) (string, error) {
	if len(args) == 0 {
		return "Usage: `admins list|add @user|remove @user`", nil
	}
	switch strings.ToLower(args[0]) {
	case "list":
		ids, err := h.Admins.List(ctx)
		if err != nil {
			return "", err
		}
		if len(ids) == 0 {
			return "No admins registered.", nil
		}
		mentions := make([]string, len(ids))
		for i, id := range ids {
			mentions[i] = "<@" + id + ">"
		}
		return "*Admins:* " + strings.Join(mentions, ", "), nil
	case "add":
		if len(args) != 2 {
			return "Usage: `admins add @user`", nil
		}
		uid := utils.ParseUserRef(args[1])
		if uid == "" {
			return "Could not parse user `" + args[1] + "`.", nil
		}
		if err := h.Admins.Add(ctx, &model.Admin{UserID: uid, CreatedBy: actorID, CreatedAt: h.now()}); err != nil {
			return "", err
		}
		return fmt.Sprintf("<@%s> is now an admin.", uid), nil
	case "remove":
		if len(args) != 2 {
			return "Usage: `admins remove @user`", nil
		}
		uid := utils.ParseUserRef(args[1])
		if uid == "" {
			return "Could not parse user `" + args[1] + "`.", nil
		}
		if uid == actorID {
			return "You cannot remove yourself.", nil
		}
		if err := h.Admins.Remove(ctx, uid); err != nil {
			return "", err
		}
		return fmt.Sprintf("<@%s> is no longer an admin.", uid), nil
	}
	return "Usage: `admins list|add @user|remove @user`", nil
}
