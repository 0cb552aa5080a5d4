package handlers

import (
	"time"

	"chirp/pkg/hub"
	"chirp/pkg/middleware"
	"chirp/pkg/models"
	"chirp/pkg/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type Deps struct {
	Auth          services.AuthService
	Posts         services.PostStore
	Hub           *hub.Hub
	MaxImageBytes int64
	// AuthRateLimit caps signup/login attempts per IP per minute; zero or negative disables.
	AuthRateLimit int
}

func Mount(app *fiber.App, d Deps) {
	auth := NewAuth(d.Auth, d.MaxImageBytes)
	social := NewSocial(d.Posts, d.Auth, d.MaxImageBytes)
	mentions := NewMentions(d.Auth)
	requireAuth := middleware.AuthMiddleware(d.Auth)

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", rateLimit(d.AuthRateLimit), auth.Signup)
	authGroup.Post("/login", rateLimit(d.AuthRateLimit), auth.Login)

	protected := authGroup.Group("", requireAuth)
	protected.Post("/logout", auth.Logout)
	protected.Get("/me", auth.Me)
	protected.Put("/profile", auth.UpdateProfile)

	posts := app.Group("/posts")
	posts.Get("/", middleware.OptionalAuth(d.Auth), social.Feed)
	posts.Get("/:id", middleware.OptionalAuth(d.Auth), social.Get)
	postsPriv := posts.Group("", requireAuth)
	postsPriv.Post("/", social.Create)
	postsPriv.Post("/:id/like", social.Like)
	postsPriv.Post("/:id/retweet", social.Retweet)
	postsPriv.Post("/:id/quote", social.Quote)
	postsPriv.Post("/:id/replies", social.Reply)
	postsPriv.Delete("/:id", social.Delete)

	app.Get("/mentions/suggest", mentions.Suggest)
	app.Post("/mentions/render", mentions.Render)

	if d.Hub != nil {
		NewCompose(d.Hub, d.Posts, d.Auth, d.MaxImageBytes).RegisterActions()

		app.Get("/hub/status", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"clients":       d.Hub.ClientCount(),
				"authenticated": d.Hub.AuthenticatedCount(),
			})
		})
		app.Use("/ws", wsIdentity(d.Auth))
		app.Get("/ws", websocket.New(func(c *websocket.Conn) {
			author, _ := c.Locals("author").(models.Author)
			d.Hub.HandleClientConn(c, author)
		}))
	}
}

func rateLimit(perMinute int) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	})
}

// wsIdentity resolves the socket user from the token before the upgrade.
// Connections without a valid token are accepted as anonymous.
func wsIdentity(auth services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		var author models.Author
		if tokenStr := middleware.BearerToken(c); tokenStr != "" {
			if claims, err := auth.ParseToken(tokenStr); err == nil {
				if user, ok := auth.User(claims.UserID); ok {
					author = user.Snapshot()
				}
			}
		}
		c.Locals("author", author)
		return c.Next()
	}
}
