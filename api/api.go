package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
)

// Server is the API server for the memory service.
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
func NewServer(config Config, logger *slog.Logger) (*Server, error) {
	if config.Tool == nil {
		return nil, errors.New("tool handler is required")
	}
	if config.Retrieval == nil {
		return nil, errors.New("retrieval service is required")
	}
	if config.Injector == nil {
		return nil, errors.New("injector is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Post("/memory", s.handleMemory)
	v1.Post("/memory/search", s.handleSearch)
	v1.Post("/memory/inject", s.handleInject)
	v1.Post("/memory/prune", s.handlePrune)
	v1.Post("/session/record", s.handleRecord)
	v1.Get("/metrics", s.handleMetrics)

	if config.MCP != nil {
		mcpHandler := adaptor.HTTPHandler(config.MCP)
		app.All("/mcp", mcpHandler)
		app.All("/mcp/*", mcpHandler)
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Handler exposes the routes as a net/http handler.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.app)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
