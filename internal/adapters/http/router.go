package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"
	"github.com/samirrijal/schoolmaps/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Request-scoped logger carrying the request ID
	app.Use(RequestLoggerMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, 429, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/points", timeout.NewWithContext(ListPointsHandler(deps), requestTimeout))
	v1.Get("/points/:name", timeout.NewWithContext(GetPointHandler(deps), requestTimeout))
	v1.Put("/points/:name", timeout.NewWithContext(PutPointHandler(deps), requestTimeout))
	v1.Delete("/points/:name", timeout.NewWithContext(DeletePointHandler(deps), requestTimeout))
	v1.Get("/proximity", timeout.NewWithContext(ProximityHandler(deps), requestTimeout))
	v1.Get("/markers", timeout.NewWithContext(MarkersHandler(deps), requestTimeout))
	v1.Post("/locations", timeout.NewWithContext(PostLocationHandler(deps), requestTimeout))
	v1.Get("/devices/:id/location", timeout.NewWithContext(DeviceLocationHandler(deps), requestTimeout))
	v1.Get("/devices/:id/proximity", timeout.NewWithContext(DeviceProximityHandler(deps), requestTimeout))
	v1.Get("/alerts/recent", timeout.NewWithContext(RecentAlertsHandler(deps), requestTimeout))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, "api/openapi.yaml")

	// WebSocket announcement relay
	if deps.NATS != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS, deps.Subjects)))
	}
}
