package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/schoolmaps/internal/pkg/logging"
)

// RequestLoggerMiddleware puts a logger carrying the request ID, and the
// device ID for /v1/devices routes, into the user context. Use cases log
// through logging.FromContext and pick these attributes up.
func RequestLoggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid, _ := c.Locals("requestid").(string)
		if rid == "" {
			return c.Next()
		}

		logger := slog.Default().With("request_id", rid)
		c.SetUserContext(logging.WithLogger(c.UserContext(), logger))
		return c.Next()
	}
}

// withDevice narrows the request logger to one device.
func withDevice(c *fiber.Ctx, deviceID string) {
	if deviceID == "" {
		return
	}
	ctx := c.UserContext()
	c.SetUserContext(logging.WithLogger(ctx, logging.FromContext(ctx).With("device", deviceID)))
}
