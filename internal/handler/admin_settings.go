package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"dibs/internal/repository"
)

// AdminSettingsHandler mirrors the chat settings verbs over REST.
type AdminSettingsHandler struct {
	Settings *repository.SettingsRepo
}

func NewAdminSettingsHandler(s *repository.SettingsRepo) *AdminSettingsHandler {
	return &AdminSettingsHandler{Settings: s}
}

type settingsPart struct {
	DMEnabled             bool   `json:"dm_enabled"`
	DMReminderEnabled     bool   `json:"dm_reminder_enabled"`
	DMExpiryEnabled       bool   `json:"dm_expiry_enabled"`
	AnnounceGlobalEnabled bool   `json:"announce_global_enabled"`
	CommandAcksEnabled    bool   `json:"command_acks_enabled"`
	ReminderLeadSeconds   int64  `json:"reminder_lead_seconds"`
	ReminderMinTTLSeconds int64  `json:"reminder_min_ttl_seconds"`
	DefaultExtendSeconds  int64  `json:"default_extend_seconds"`
	RetentionDays         *int64 `json:"retention_days"`
	LogLevel              string `json:"log_level"`
}

// Get returns the full current settings state.
func (h *AdminSettingsHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	var (
		out settingsPart
		err error
	)
	read := func(f func() error) {
		if err == nil {
			err = f()
		}
	}
	read(func() (e error) { out.DMEnabled, e = h.Settings.DMEnabled(ctx); return })
	read(func() (e error) { out.DMReminderEnabled, e = h.Settings.DMReminderEnabled(ctx); return })
	read(func() (e error) { out.DMExpiryEnabled, e = h.Settings.DMExpiryEnabled(ctx); return })
	read(func() (e error) { out.AnnounceGlobalEnabled, e = h.Settings.AnnounceGlobalEnabled(ctx); return })
	read(func() (e error) { out.CommandAcksEnabled, e = h.Settings.CommandAcksEnabled(ctx); return })
	read(func() (e error) { out.ReminderLeadSeconds, e = h.Settings.ReminderLeadSeconds(ctx); return })
	read(func() (e error) { out.ReminderMinTTLSeconds, e = h.Settings.ReminderMinTTLSeconds(ctx); return })
	read(func() (e error) { out.DefaultExtendSeconds, e = h.Settings.DefaultExtendSeconds(ctx); return })
	read(func() (e error) { out.RetentionDays, e = h.Settings.RetentionDays(ctx); return })
	read(func() (e error) { out.LogLevel, e = h.Settings.LogLevel(ctx); return })
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "settings read failed"})
	}
	return c.JSON(http.StatusOK, out)
}

type updateSettingsReq struct {
	DMEnabled             *bool   `json:"dm_enabled"`
	DMReminderEnabled     *bool   `json:"dm_reminder_enabled"`
	DMExpiryEnabled       *bool   `json:"dm_expiry_enabled"`
	AnnounceGlobalEnabled *bool   `json:"announce_global_enabled"`
	CommandAcksEnabled    *bool   `json:"command_acks_enabled"`
	ReminderLeadSeconds   *int64  `json:"reminder_lead_seconds"`
	ReminderMinTTLSeconds *int64  `json:"reminder_min_ttl_seconds"`
	DefaultExtendSeconds  *int64  `json:"default_extend_seconds"`
	RetentionDays         *int64  `json:"retention_days"`
	LogLevel              *string `json:"log_level"`
}

// Update applies any subset of settings changes and returns the new
// state.
func (h *AdminSettingsHandler) Update(c echo.Context) error {
	var req updateSettingsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	var err error
	write := func(f func() error) {
		if err == nil {
			err = f()
		}
	}
	if req.DMEnabled != nil {
		write(func() error { return h.Settings.SetDMEnabled(ctx, *req.DMEnabled) })
	}
	if req.DMReminderEnabled != nil {
		write(func() error { return h.Settings.SetDMReminderEnabled(ctx, *req.DMReminderEnabled) })
	}
	if req.DMExpiryEnabled != nil {
		write(func() error { return h.Settings.SetDMExpiryEnabled(ctx, *req.DMExpiryEnabled) })
	}
	if req.AnnounceGlobalEnabled != nil {
		write(func() error { return h.Settings.SetAnnounceGlobalEnabled(ctx, *req.AnnounceGlobalEnabled) })
	}
	if req.CommandAcksEnabled != nil {
		write(func() error { return h.Settings.SetCommandAcksEnabled(ctx, *req.CommandAcksEnabled) })
	}
	if req.ReminderLeadSeconds != nil {
		write(func() error { return h.Settings.SetReminderLeadSeconds(ctx, *req.ReminderLeadSeconds) })
	}
	if req.ReminderMinTTLSeconds != nil {
		write(func() error { return h.Settings.SetReminderMinTTLSeconds(ctx, *req.ReminderMinTTLSeconds) })
	}
	if req.DefaultExtendSeconds != nil {
		write(func() error { return h.Settings.SetDefaultExtendSeconds(ctx, *req.DefaultExtendSeconds) })
	}
	if req.RetentionDays != nil {
		write(func() error { return h.Settings.SetRetentionDays(ctx, *req.RetentionDays) })
	}
	if req.LogLevel != nil {
		write(func() error { return h.Settings.SetLogLevel(ctx, *req.LogLevel) })
	}
	if err != nil {
		if errors.Is(err, repository.ErrBadLogLevel) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "log level must be error, warning or info"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "settings write failed"})
	}
	return h.Get(c)
}
