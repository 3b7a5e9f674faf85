package router // route registration for the reservation service

import (
	"github.com/labstack/echo/v4"

	"dibs/internal/handler"
	"dibs/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterCommands wires the chat-facing surface.  Both endpoints are
// authenticated by the request signature, not by a session: the chat
// platform signs every delivery with the shared secret.
func RegisterCommands(e *echo.Echo, cmd *handler.CommandHandler, signingSecret string) {
	g := e.Group("/v1/commands")
	g.Use(middleware.VerifySignature(signingSecret))
	g.POST("", cmd.Handle)
	g.POST("/interact", cmd.Interact)
}

// RegisterAdmin wires the admin login plus the JWT-protected REST API
// for environments and settings.
func RegisterAdmin(e *echo.Echo, a *handler.AuthHandler,
	envs *handler.AdminEnvHandler, settings *handler.AdminSettingsHandler, jwtSecret string) {
	e.POST("/v1/auth/login", a.Login)

	admin := e.Group("/v1/admin")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole("ADMIN"))

	admin.GET("/envs", envs.List)
	admin.POST("/envs", envs.Create)
	admin.PATCH("/envs/:name", envs.Update)
	admin.POST("/envs/:name/force-release", envs.ForceRelease)
	admin.POST("/envs/:name/transfer", envs.Transfer)

	admin.GET("/settings", settings.Get)
	admin.PATCH("/settings", settings.Update)
}
