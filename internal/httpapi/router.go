package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/Abdulkalam0018/roadresq/internal/auth"
	"github.com/Abdulkalam0018/roadresq/internal/metrics"
	"github.com/Abdulkalam0018/roadresq/internal/middleware"
	"github.com/Abdulkalam0018/roadresq/internal/ws"
)

type RouterDeps struct {
	Chat       *ChatHandler
	WS         *ws.Handler
	Verifier   *auth.Verifier
	RateLimit  *middleware.RateLimiter
	CORSOrigin string
}

// Register mounts the full HTTP surface: the REST chat routes, the socket
// upgrade endpoint, health and metrics.
func Register(app *fiber.App, deps RouterDeps) {
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	if deps.CORSOrigin != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigin,
			AllowCredentials: true,
		}))
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	// The socket handshake carries its own credential; the JWT middleware
	// guards only the REST routes.
	app.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(deps.WS.Serve))

	api := app.Group("/api/v1", middleware.JWTAuth(deps.Verifier))

	chats := api.Group("/chats")
	chats.Get("/", deps.Chat.ListChats)
	chats.Get("/user/:userId", deps.Chat.GetOrCreateChat)
	chats.Get("/:chatId/messages", deps.Chat.ListMessages)
	if deps.RateLimit != nil {
		chats.Post("/message", deps.RateLimit.ByUser(), deps.Chat.SendMessage)
	} else {
		chats.Post("/message", deps.Chat.SendMessage)
	}
	chats.Post("/:chatId/mark-read", deps.Chat.MarkRead)

	api.Get("/users/:userId/presence", deps.Chat.GetPresence)
}
