package server

import (
	"context"

	"clarvis-be/internal/bootstrap"
	"clarvis-be/internal/config"
	"clarvis-be/internal/controller"
	"clarvis-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const (
	allowMethods = "GET, POST, PUT, DELETE, OPTIONS"
	allowHeaders = "Content-Type, Authorization"
)

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             10 * 1024 * 1024, // 10MB
		ErrorHandler:          serverutils.ErrorHandler,
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: allowHeaders,
		AllowMethods: allowMethods,
	}))
	app.Use(preflight)

	// OpenTelemetry tracing middleware (traces all HTTP requests)
	app.Use(otelfiber.Middleware())

	app.Use(serverutils.OptionalJwtMiddleware(cfg.App.JwtSecret))

	// Routes
	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

// preflight stamps the CORS headers on every response and answers OPTIONS
// with an empty 204 for any path.
func preflight(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	ctx.Set(fiber.HeaderAccessControlAllowMethods, allowMethods)
	ctx.Set(fiber.HeaderAccessControlAllowHeaders, allowHeaders)
	if ctx.Method() == fiber.MethodOptions {
		return ctx.SendStatus(fiber.StatusNoContent)
	}
	return ctx.Next()
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	s.container.Logger.Info("SERVER", "Server is running", map[string]interface{}{
		"url": "http://localhost:" + s.cfg.App.Port,
	})
	return s.app.Listen(":" + s.cfg.App.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	c.HealthController.RegisterRoutes(app)
	c.ChatbotController.RegisterRoutes(app)

	var extra []controller.RouteFunc
	if c.WatchHandler != nil {
		extra = append(extra, c.WatchHandler.RegisterRoutes)
	}
	c.StudyMaterialController.RegisterRoutes(app, extra...)

	c.HealthController.RegisterFallback(app)
}
