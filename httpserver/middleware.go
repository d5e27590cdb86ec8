package httpserver

import (
	"chat-relay/auth"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const rateLimiterExpiry = 5 * time.Minute

// ErrorHandlingMiddleware turns typed errors into a JSON body and the matching status.
// Errors already carrying an HTTP status are left to echo.
func ErrorHandlingMiddleware(log *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			status := errors.HTTPStatus(err)
			logError(log, c, status, err)
			if err := c.JSON(status, event.FromError(err)); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

func logError(log *slog.Logger, c echo.Context, status int, err error) {
	attrs := []any{
		"code", errors.Code(err),
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", status,
		"error", err,
	}
	if userID := c.Get(auth.UserIDKey); userID != nil {
		attrs = append(attrs, "user_id", userID)
	}

	if status >= http.StatusInternalServerError {
		log.Error("Request failed", attrs...)
		return
	}
	log.Debug("Request rejected", attrs...)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			s.log.Info("Request", attrs...)
			return nil
		},
	})
}

func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, event.ErrorPayload{
				Code:    "rate_limited",
				Message: "rate limit exceeded",
			})
		},
	})
}
