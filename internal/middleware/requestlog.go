package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tooling-tracker/internal/logger"
)

// RequestLogger assigns every request an X-Request-ID and writes one
// structured line when it completes.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			kv := []interface{}{
				"request_id", rid,
				"method", req.Method,
				"route", c.Path(),
				"status", status,
				"latency_ms", time.Since(start).Milliseconds(),
				"user", userKey(c),
			}
			switch {
			case status >= 500:
				log.Error("http request", append(kv, "error", err)...)
			case status >= 400:
				log.Warn("http request", kv...)
			default:
				log.Info("http request", kv...)
			}
			return nil
		}
	}
}
