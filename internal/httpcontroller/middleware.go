package httpcontroller

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/train-spotter/internal/logger"
)

// configureMiddleware sets up middleware for the server.
func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(s.requestIDMiddleware)
	s.Echo.Use(s.observeMiddleware)
}

// requestIDMiddleware tags every request with a short id and carries it
// in the request context for logging.
func (s *Server) requestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get(echo.HeaderXRequestID)
		if requestID == "" {
			requestID = uuid.New().String()[:8]
		}
		c.Response().Header().Set(echo.HeaderXRequestID, requestID)
		c.SetRequest(c.Request().WithContext(logger.WithTraceID(c.Request().Context(), requestID)))
		return next(c)
	}
}

// observeMiddleware logs requests at debug level and records request
// metrics by route template.
func (s *Server) observeMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		elapsed := time.Since(start)

		status := c.Response().Status
		s.log.WithContext(c.Request().Context()).Debug("request served",
			logger.String("method", c.Request().Method),
			logger.String("path", c.Request().URL.Path),
			logger.Int("status", status),
			logger.Duration("duration", elapsed))

		if s.metrics != nil {
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			s.metrics.HTTP.RecordRequest(c.Request().Method, path, strconv.Itoa(status), elapsed.Seconds())
		}
		return nil
	}
}
