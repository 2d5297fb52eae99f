package web

import (
	"log/slog"

	"github.com/creditflow/workflowdoctor/pkg/log"
	"github.com/gofiber/fiber/v3"
)

// ScopedLogger carries a logger tagged with the request line and request ID in each request context,
// so service logs of one request can be correlated. Register it after the requestid middleware.
func ScopedLogger(base *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		scoped := base.With("method", c.Method(), "path", c.Path())
		if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
			scoped = scoped.With("request_id", id)
		}

		c.SetContext(log.WithLogger(c.Context(), scoped))

		return c.Next()
	}
}
