package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	RegisterFallback(r fiber.Router)
}

type healthController struct {
	version string
}

func NewHealthController(version string) IHealthController {
	return &healthController{version: version}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
	r.All("/favicon*", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{})
	})
}

// RegisterFallback answers every unmatched path with the API index. Register it last.
func (c *healthController) RegisterFallback(r fiber.Router) {
	r.Use(c.Index)
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func endpoint(path, method, description string) fiber.Map {
	return fiber.Map{"path": path, "method": method, "description": description}
}

func (c *healthController) Index(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"message": "Clarvis Backend API",
		"version": c.version,
		"endpoints": fiber.Map{
			"health": endpoint("/health", "GET", "Health check endpoint"),
			"chat": fiber.Map{
				"chat":    endpoint("/agent/chat/{agentId}/chat", "POST", "Send a message to the chat agent"),
				"history": endpoint("/agent/chat/{agentId}/history", "GET", "Get chat history"),
				"clear":   endpoint("/agent/chat/{agentId}/clear", "POST", "Clear chat history"),
				"state":   endpoint("/agent/chat/{agentId}/state", "GET", "Get the last recorded agent state"),
			},
			"studyMaterials": fiber.Map{
				"generate": endpoint("/study-materials/generate", "POST", "Generate study materials from page content"),
				"status":   endpoint("/study-materials/status/{instanceId}", "GET", "Get workflow status and progress"),
				"watch":    endpoint("/study-materials/watch/{instanceId}", "GET", "Websocket stream of workflow progress"),
				"list":     endpoint("/study-materials/list", "GET", "List workflow instances, newest first"),
			},
		},
	})
}
