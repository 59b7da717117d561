package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/fathima-sithara/support-chat/internal/auth"
	"github.com/fathima-sithara/support-chat/internal/chat"
	"github.com/fathima-sithara/support-chat/internal/config"
	"github.com/fathima-sithara/support-chat/internal/metrics"
	"github.com/fathima-sithara/support-chat/internal/ratelimit"
	"github.com/fathima-sithara/support-chat/internal/ws"
)

// Deps carries everything the HTTP surface needs wired in.
type Deps struct {
	Service  *chat.Service
	Tokens   *auth.TokenManager
	Grants   auth.GrantStore
	Creds    auth.Credentials
	Streamer *ws.Streamer
	Log      *zap.Logger
}

func NewServer(cfg *config.Config, d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	// nothing propagates to the transport layer as an unhandled fault
	app.Use(recover.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	chatRL := ratelimit.New(cfg.RateLimits.Chat.Window(), cfg.RateLimits.Chat.Max,
		"chat", "Too many chat requests")
	adminRL := ratelimit.New(cfg.RateLimits.Admin.Window(), cfg.RateLimits.Admin.Max,
		"admin", "Too many admin requests")
	loginRL := ratelimit.New(cfg.RateLimits.Login.Window(), cfg.RateLimits.Login.Max,
		"login", "Too many login attempts")

	h := NewHandlers(d.Service, d.Tokens, d.Creds, d.Log)
	apiKey := APIKeyRequired(cfg.Auth.APIKey)
	adminOnly := AdminRequired(d.Tokens, d.Grants, d.Log)

	chatGrp := app.Group("/api/chat", apiKey)
	chatGrp.Post("/session", chatRL.Handler(d.Log), h.createSession)
	chatGrp.Post("/message", chatRL.Handler(d.Log), h.addMessage)
	chatGrp.Post("/webhook", chatRL.Handler(d.Log), h.webhook)
	chatGrp.Get("/session/:sessionId/messages", SessionIDRequired(), h.getMessages)
	chatGrp.Get("/session/:sessionId", SessionIDRequired(), h.getSession)
	chatGrp.Get("/session/:sessionId/stream", SessionIDRequired(), ws.UpgradeRequired, d.Streamer.MessageStream())

	adminGrp := app.Group("/api/admin")
	adminGrp.Post("/login", loginRL.Handler(d.Log), h.login)
	adminGrp.Get("/verify", adminOnly, h.verify)
	adminGrp.Get("/sessions/stream", AdminStreamRequired(d.Tokens, d.Grants, d.Log), ws.UpgradeRequired, d.Streamer.SessionStream())

	authed := adminGrp.Group("", adminRL.Handler(d.Log), adminOnly)
	authed.Get("/sessions", h.listSessions)
	authed.Get("/session/:sessionId", SessionIDRequired(), h.adminGetSession)
	authed.Post("/message", h.adminMessage)
	authed.Put("/session/:sessionId/status", SessionIDRequired(), h.updateStatus)
	authed.Get("/stats", h.stats)

	return app
}
