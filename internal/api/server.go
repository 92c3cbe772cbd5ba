package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/sable-im/sable/internal/chat"
	"github.com/sable-im/sable/internal/config"
	"github.com/sable-im/sable/internal/group"
	"github.com/sable-im/sable/internal/identity"
	"github.com/sable-im/sable/internal/media"
	"github.com/sable-im/sable/internal/metrics"
	"github.com/sable-im/sable/internal/profile"
	"github.com/sable-im/sable/internal/roster"
	"github.com/sable-im/sable/internal/store"
	"github.com/sable-im/sable/internal/ws"
)

type Handlers struct {
	Identity *identity.Client
	Profiles *store.ProfileRepo
	Roster   *roster.Service
	Chat     *chat.Service
	Groups   *group.Service
	Profile  *profile.Service
	Media    *media.Service
}

func NewServer(cfg *config.Config, h *Handlers, verifier TokenVerifier, limiter *RateLimiter, wsrv *ws.Server) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		BodyLimit:    32 * 1024 * 1024, // uploads
	})
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())(c.Context())
		return nil
	})

	api := app.Group("/v1")
	if limiter != nil {
		api.Use(limiter.Middleware(func(c *fiber.Ctx) string {
			if id := callerID(c); id != "" {
				return id
			}
			return c.IP()
		}))
	}

	// session endpoints carry no token yet
	auth := api.Group("/auth")
	auth.Post("/signup", h.signUp)
	auth.Post("/signin", h.signIn)
	auth.Post("/signout", h.signOut)

	authed := api.Use(RequireAuth(verifier))

	authed.Get("/me", h.me)
	authed.Patch("/me", h.updateMe)
	authed.Put("/me/avatar", h.setAvatar)
	authed.Get("/profiles/:id", h.getProfile)

	authed.Get("/contacts", h.listContacts)
	authed.Get("/groups", h.listGroups)

	authed.Post("/messages", h.sendMessage)
	authed.Get("/messages/:peer_id", h.directHistory)
	authed.Post("/messages/:msg_id/read", h.markRead)

	authed.Post("/groups", h.createGroup)
	authed.Get("/groups/:id", h.getGroup)
	authed.Patch("/groups/:id", h.updateGroup)
	authed.Delete("/groups/:id", h.deleteGroup)
	authed.Post("/groups/:id/members", h.addMember)
	authed.Delete("/groups/:id/members/:user_id", h.removeMember)
	authed.Patch("/groups/:id/members/:user_id", h.setRole)
	authed.Post("/groups/:id/leave", h.leaveGroup)
	authed.Post("/groups/:id/read", h.markGroupRead)
	authed.Get("/groups/:id/messages", h.groupHistory)
	authed.Post("/groups/:id/messages", h.sendGroupMessage)

	authed.Post("/media", h.uploadMedia)
	authed.Get("/media/:id/url", h.mediaURL)

	app.Get("/ws", websocket.New(wsrv.Handler()))

	return app
}
