package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	checkOK            = "ok"
	checkNotConfigured = "not configured"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
			"version": "dev",
		})
	}
}

// readinessCheck returns a status string and whether it should fail readiness.
type readinessCheck func(ctx context.Context) (string, bool)

func pingCheck(ping func(context.Context) error) readinessCheck {
	return func(ctx context.Context) (string, bool) {
		if err := ping(ctx); err != nil {
			return "error: " + err.Error(), false
		}
		return checkOK, true
	}
}

func readinessChecks(deps *Dependencies) map[string]readinessCheck {
	notConfigured := func(context.Context) (string, bool) { return checkNotConfigured, true }
	checks := map[string]readinessCheck{
		"database": notConfigured,
		"nats":     notConfigured,
		"cache":    notConfigured,
	}

	if deps.DB != nil {
		checks["database"] = pingCheck(deps.DB.Pool.Ping)
	}
	if deps.Cache != nil {
		checks["cache"] = pingCheck(deps.Cache.Ping)
	}
	if nc := deps.NATS; nc != nil {
		checks["nats"] = func(context.Context) (string, bool) {
			if !nc.IsConnected() {
				return "disconnected", false
			}
			return checkOK, true
		}
	}
	// an empty point set is legal but worth surfacing
	if deps.Points != nil {
		checks["points"] = func(ctx context.Context) (string, bool) {
			set, err := deps.Points.Set(ctx)
			switch {
			case err != nil:
				return "error: " + err.Error(), false
			case set.Len() == 0:
				return "empty", true
			default:
				return checkOK, true
			}
		}
	}
	return checks
}

// ReadyHandler runs the readiness checks. Components that are not
// configured do not fail readiness.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	checks := readinessChecks(deps)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		results := make(map[string]string, len(checks))
		ready := true
		for name, check := range checks {
			status, ok := check(ctx)
			results[name] = status
			ready = ready && ok
		}

		if !ready {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "checks": results})
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": results})
	}
}
