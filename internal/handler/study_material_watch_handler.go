package handler

import (
	"context"
	"errors"

	"clarvis-be/internal/pkg/logger"
	"clarvis-be/internal/pkg/serverutils"
	"clarvis-be/internal/service"
	internalWS "clarvis-be/internal/websocket"
	"clarvis-be/pkg/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WatchHandler streams a run's progress over a websocket until it ends.
type WatchHandler struct {
	engine *workflow.Engine
	hub    *internalWS.Hub
	labels []string
	logger logger.ILogger
}

func NewWatchHandler(engine *workflow.Engine, hub *internalWS.Hub, labels []string, log logger.ILogger) *WatchHandler {
	return &WatchHandler{
		engine: engine,
		hub:    hub,
		labels: labels,
		logger: log,
	}
}

func (h *WatchHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/watch/:instanceId", h.ServeWs)
}

func (h *WatchHandler) ServeWs(c *fiber.Ctx) error {
	instanceID := c.Params("instanceId")
	if _, err := h.engine.Status(c.UserContext(), instanceID); err != nil {
		if errors.Is(err, workflow.ErrRunNotFound) {
			return serverutils.NotFound("Workflow instance not found", err)
		}
		return err
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Debug("WatchHandler", "Watch session started", map[string]interface{}{"instance_id": instanceID})
		internalWS.ServeWs(h.hub, conn, instanceID, func() ([]byte, bool, error) {
			run, err := h.engine.Status(context.Background(), instanceID)
			if err != nil {
				return nil, false, err
			}
			data, err := service.ProgressMessage(run, h.labels)
			return data, run.Status.Terminal(), err
		})
		h.logger.Debug("WatchHandler", "Watch session ended", map[string]interface{}{"instance_id": instanceID})
	})(c)
}
