package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dibs/internal/repository"
	"dibs/internal/utils"
)

const settingsUsage = "Usage: `settings [dm|dm-reminder|dm-expiry|announce|acks on|off]`, " +
	"`settings [lead|min-ttl|extend <duration>]`, `settings retention <days|off>`, " +
	"`settings log-level <error|warning|info>`"

// cmdSettings shows or mutates the runtime settings.  With no arguments
// it renders the full current state; every mutation reports the value it
// stored.
func (h *CommandHandler) cmdSettings(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return h.renderSettings(ctx)
	}

	key := strings.ToLower(args[0])
	rest := args[1:]
	switch key {
	case "dm":
		return h.setToggle(ctx, rest, "Direct messages", h.Settings.SetDMEnabled)
	case "dm-reminder":
		return h.setToggle(ctx, rest, "Reminder DMs", h.Settings.SetDMReminderEnabled)
	case "dm-expiry":
		return h.setToggle(ctx, rest, "Expiry DMs", h.Settings.SetDMExpiryEnabled)
	case "announce":
		return h.setToggle(ctx, rest, "Channel announcements", h.Settings.SetAnnounceGlobalEnabled)
	case "acks":
		return h.setToggle(ctx, rest, "Command acknowledgements", h.Settings.SetCommandAcksEnabled)
	case "lead":
		return h.setDuration(ctx, rest, "Reminder lead", h.Settings.SetReminderLeadSeconds)
	case "min-ttl":
		return h.setDuration(ctx, rest, "Reminder min TTL", h.Settings.SetReminderMinTTLSeconds)
	case "extend":
		return h.setDuration(ctx, rest, "Default extension", h.Settings.SetDefaultExtendSeconds)
	case "retention":
		if len(rest) != 1 {
			return "Usage: `settings retention <days|off>`", nil
		}
		if strings.EqualFold(rest[0], "off") {
			if err := h.Settings.SetRetentionDays(ctx, 0); err != nil {
				return "", err
			}
			return "History retention disabled; released holds are kept forever.", nil
		}
		days, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil || days <= 0 {
			return "Retention must be a positive number of days, or `off`.", nil
		}
		if err := h.Settings.SetRetentionDays(ctx, days); err != nil {
			return "", err
		}
		return fmt.Sprintf("Released holds older than %dd will be purged.", days), nil
	case "log-level":
		if len(rest) != 1 {
			return "Usage: `settings log-level <error|warning|info>`", nil
		}
		if err := h.Settings.SetLogLevel(ctx, rest[0]); err != nil {
			if errors.Is(err, repository.ErrBadLogLevel) {
				return "Log level must be `error`, `warning` or `info`.", nil
			}
			return "", err
		}
		return "Log level set to `" + strings.ToLower(rest[0]) + "`.", nil
	}
	return settingsUsage, nil
}

func (h *CommandHandler) setToggle(ctx context.Context, args []string, label string,
	set func(context.Context, bool) error) (string, error) {
	if len(args) != 1 {
		return settingsUsage, nil
	}
	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return settingsUsage, nil
	}
	if err := set(ctx, enabled); err != nil {
		return "", err
	}
	state := "off"
	if enabled {
		state = "on"
	}
	return label + " turned " + state + ".", nil
}

func (h *CommandHandler) setDuration(ctx context.Context, args []string, label string,
	set func(context.Context, int64) error) (string, error) {
	if len(args) != 1 {
		return settingsUsage, nil
	}
	secs, ok := utils.ParseDurationSeconds(args[0])
	if !ok || secs <= 0 {
		return "Could not parse duration `" + args[0] + "`.", nil
	}
	if err := set(ctx, secs); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s set to %s.", label, utils.HumanizeSeconds(secs)), nil
}

func (h *CommandHandler) renderSettings(ctx context.Context) (string, error) {
	dm, err := h.Settings.DMEnabled(ctx)
	if err != nil {
		return "", err
	}
	dmReminder, err := h.Settings.DMReminderEnabled(ctx)
	if err != nil {
		return "", err
	}
	dmExpiry, err := h.Settings.DMExpiryEnabled(ctx)
	if err != nil {
		return "", err
	}
	announce, err := h.Settings.AnnounceGlobalEnabled(ctx)
	if err != nil {
		return "", err
	}
	acks, err := h.Settings.CommandAcksEnabled(ctx)
	if err != nil {
		return "", err
	}
	lead, err := h.Settings.ReminderLeadSeconds(ctx)
	if err != nil {
		return "", err
	}
	minTTL, err := h.Settings.ReminderMinTTLSeconds(ctx)
	if err != nil {
		return "", err
	}
	extend, err := h.Settings.DefaultExtendSeconds(ctx)
	if err != nil {
		return "", err
	}
	retention, err := h.Settings.RetentionDays(ctx)
	if err != nil {
		return "", err
	}
	level, err := h.Settings.LogLevel(ctx)
	if err != nil {
		return "", err
	}

	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	retentionLine := "off"
	if retention != nil {
		retentionLine = fmt.Sprintf("%dd", *retention)
	}
	return strings.Join([]string{
		"*Settings*",
		"• Direct messages: " + onOff(dm),
		"• Reminder DMs: " + onOff(dmReminder),
		"• Expiry DMs: " + onOff(dmExpiry),
		"• Channel announcements: " + onOff(announce),
		"• Command acknowledgements: " + onOff(acks),
		"• Reminder lead: " + utils.HumanizeSeconds(lead),
		"• Reminder min TTL: " + utils.HumanizeSeconds(minTTL),
		"• Default extension: " + utils.HumanizeSeconds(extend),
		"• Retention: " + retentionLine,
		"• Log level: " + level,
	}, "\n"), nil
}
