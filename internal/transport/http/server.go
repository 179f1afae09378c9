package http

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/jmmolins87/NeuronIA-sub001/internal/app"
)

// Services bundles the application services the HTTP surface exposes.
type Services struct {
	Availability *app.AvailabilityService
	Reservation  *app.ReservationService
	Confirmation *app.ConfirmationService
	Cancellation *app.CancellationService
	Reschedule   *app.RescheduleService
}

type Options struct {
	CORSOrigins []string

	// AllowNowOverride lets callers pin the engine clock through the `now`
	// field. Test and staging environments only.
	AllowNowOverride bool

	// RateLimit, when non-nil, runs in front of every booking route.
	RateLimit echo.MiddlewareFunc
}

type Server struct {
	echo   *echo.Echo
	logger zerolog.Logger
}

func NewServer(svcs Services, logger zerolog.Logger, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))
	if len(opts.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: opts.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		}))
	}

	h := &handlers{svcs: svcs, allowNowOverride: opts.AllowNowOverride}

	e.GET("/health", h.health)

	api := e.Group("")
	if opts.RateLimit != nil {
		api.Use(opts.RateLimit)
	}
	api.GET("/availability", h.availability)
	api.POST("/bookings", h.reserve)
	api.POST("/bookings/confirm", h.confirm)
	api.POST("/bookings/cancel", h.cancel)
	api.POST("/bookings/reschedule", h.reschedule)

	return &Server{echo: e, logger: logger}
}

func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info().
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("duration", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")
			return nil
		}
	}
}
