package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
	"github.com/custodia-labs/supplymatch/internal/core/ports/driving"
	"github.com/custodia-labs/supplymatch/internal/logger"
)

// Ports are the services the API serves.
type Ports struct {
	Matching   driving.MatchingService
	Suggestion driving.SuggestionService
}

// Config tunes the server.
type Config struct {
	// BodyLimit caps request bodies in bytes. Zero uses 4 MiB.
	BodyLimit int

	// RequestsPerMinute rate-limits /api per client IP. Zero disables it.
	RequestsPerMinute int

	// AccessLog enables fiber's request logger.
	AccessLog bool
}

// Server is the HTTP adapter.
type Server struct {
	app   *fiber.App
	ports Ports
}

// New creates a server with routes registered.
func New(ports Ports, cfg Config) (*Server, error) {
	if ports.Matching == nil || ports.Suggestion == nil {
		return nil, errors.New("httpapi: matching and suggestion services are required")
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 4 << 20
	}

	s := &Server{ports: ports}
	s.app = fiber.New(fiber.Config{
		AppName:               "supplymatch",
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	if cfg.AccessLog {
		s.app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		}))
	}

	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api")
	if cfg.RequestsPerMinute > 0 {
		api.Use(limiter.New(limiter.Config{
			Max:        cfg.RequestsPerMinute,
			Expiration: time.Minute,
		}))
	}
	api.Post("/items", s.addItems)
	api.Patch("/items", s.modifyItems)
	api.Delete("/items", s.removeItems)
	api.Get("/search", s.search)
	api.Get("/offers/:id/suggestions", s.suggestForOffer)
	api.Post("/suggestions", s.suggest)

	return s, nil
}

// App returns the underlying fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()
	logger.Info("HTTP API listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// errorHandler writes domain errors as JSON. Internal errors are logged and
// replaced with a generic message.
func errorHandler(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	rid, _ := c.Locals("requestid").(string)

	msg := err.Error()
	if status >= fiber.StatusInternalServerError && status != fiber.StatusServiceUnavailable {
		logger.Error("%s %s [%s]: %v", c.Method(), c.Path(), rid, err)
		msg = "internal error"
	} else if status == fiber.StatusServiceUnavailable {
		logger.Warn("%s %s [%s]: %v", c.Method(), c.Path(), rid, err)
		msg = "embedding provider unavailable, retry later"
	}
	return c.Status(status).JSON(errorResponse{Error: msg, RequestID: rid})
}
