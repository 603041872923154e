package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	wabridge "github.com/goliatone/go-wabridge"
	"github.com/goliatone/go-wabridge/core"
)

const loggerName = "wabridge.http"

type serverBuilder struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	clock          core.Clock
	bodyLimit      int
}

type Option func(*serverBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *serverBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *serverBuilder) {
		b.loggerProvider = provider
	}
}

func WithClock(clock core.Clock) Option {
	return func(b *serverBuilder) {
		b.clock = clock
	}
}

// WithBodyLimit caps request bodies in bytes. Zero keeps the fiber default.
func WithBodyLimit(limit int) Option {
	return func(b *serverBuilder) {
		b.bodyLimit = limit
	}
}

// Server exposes the bridge commands and queries over HTTP.
type Server struct {
	app      *fiber.App
	commands wabridge.Commands
	queries  wabridge.Queries
	logger   core.Logger
	clock    core.Clock
}

func New(facade *wabridge.Facade, opts ...Option) (*Server, error) {
	if facade == nil {
		return nil, fmt.Errorf("httpapi: facade is required")
	}
	builder := serverBuilder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	_, logger := core.ResolveLogger(loggerName, builder.loggerProvider, builder.logger)

	server := &Server{
		commands: facade.Commands(),
		queries:  facade.Queries(),
		logger:   logger,
		clock:    builder.clock,
	}
	server.app = fiber.New(fiber.Config{
		AppName:               core.DefaultServiceName,
		BodyLimit:             builder.bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          server.handleError,
	})
	server.app.Use(recover.New())
	server.app.Use(server.logRequest)
	server.routes()
	return server, nil
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) routes() {
	s.app.Get("/health", s.health)
	s.app.Get("/sse/info", s.sseInfo)

	s.app.Get("/qr/:session?", s.getQRCode)
	s.app.Get("/status/:session?", s.getStatus)
	s.app.Post("/send", s.sendMessage)

	s.app.Get("/sessions", s.listSessions)
	s.app.Post("/sessions/:session?", s.createSession)
	s.app.Delete("/sessions/:session?", s.disconnectSession)
	s.app.Get("/contacts/:session?", s.getContacts)
	s.app.Get("/chats/:session?", s.getChats)
	s.app.Get("/messages/:session?", s.fetchMessages)

	s.app.Get("/webhooks", s.listWebhooks)
	s.app.Post("/webhooks", s.setWebhook)
	s.app.Delete("/webhooks", s.removeWebhook)
	s.app.Post("/webhooks/retry", s.processRetryQueue)
}

func (s *Server) logRequest(c *fiber.Ctx) error {
	startedAt := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			status = fiberErr.Code
		} else if mapped := core.MapError(err); mapped != nil && mapped.Code > 0 {
			status = mapped.Code
		}
	}
	s.logger.Debug("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)
	return err
}
