package controller

import (
	"bufio"
	"errors"
	"io"

	"clarvis-be/internal/dto"
	"clarvis-be/internal/pkg/logger"
	"clarvis-be/internal/pkg/serverutils"
	"clarvis-be/internal/service"
	"clarvis-be/pkg/sse"

	"github.com/gofiber/fiber/v2"
)

type IChatbotController interface {
	RegisterRoutes(r fiber.Router)
	Chat(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Clear(ctx *fiber.Ctx) error
	State(ctx *fiber.Ctx) error
}

type chatbotController struct {
	chatbotService service.IChatbotService
	logger         logger.ILogger
}

func NewChatbotController(chatbotService service.IChatbotService, logger logger.ILogger) IChatbotController {
	return &chatbotController{
		chatbotService: chatbotService,
		logger:         logger,
	}
}

func (c *chatbotController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/agent/chat")
	h.Post(":agentId/chat", c.Chat)
	h.Get(":agentId/history", c.History)
	h.Post(":agentId/clear", c.Clear)
	h.Get(":agentId/state", c.State)

	r.All("/agent/*", func(ctx *fiber.Ctx) error {
		return serverutils.NotFound("Invalid agent endpoint", nil)
	})
}

func (c *chatbotController) Chat(ctx *fiber.Ctx) error {
	agentId := ctx.Params("agentId")

	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("invalid request body", err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	reply, err := c.chatbotService.Chat(ctx.UserContext(), agentId, &req)
	if err != nil {
		var invocationErr *service.ModelInvocationError
		switch {
		case errors.Is(err, service.ErrEmptyMessages):
			return serverutils.BadRequest(err.Error(), err)
		case errors.As(err, &invocationErr):
			return serverutils.NewAppError(fiber.StatusBadGateway, invocationErr.Error(), err)
		}
		return err
	}

	ctx.Set(fiber.HeaderContentType, sse.ContentType)
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer reply.Close()
		sw := sse.NewWriter(w)
		for {
			chunk, err := reply.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				c.logger.Error("CHAT", "Reply stream failed", map[string]interface{}{
					"agent_id": agentId,
					"error":    err.Error(),
				})
				break
			}
			if err := sw.WriteChunk(chunk); err != nil {
				// client went away
				return
			}
		}
		if reply.Guided() {
			c.logger.Warn("CHAT", "Reply stream failed, ended with guidance", map[string]interface{}{
				"agent_id": agentId,
			})
		}
		sw.WriteDone()
	})
	return nil
}

func (c *chatbotController) History(ctx *fiber.Ctx) error {
	res, err := c.chatbotService.History(ctx.UserContext(), ctx.Params("agentId"))
	if err != nil {
		return err
	}
	return ctx.JSON(res)
}

func (c *chatbotController) Clear(ctx *fiber.Ctx) error {
	if err := c.chatbotService.Clear(ctx.UserContext(), ctx.Params("agentId")); err != nil {
		return err
	}
	return ctx.JSON(dto.ClearHistoryResponse{Success: true})
}

func (c *chatbotController) State(ctx *fiber.Ctx) error {
	state, err := c.chatbotService.State(ctx.UserContext(), ctx.Params("agentId"))
	if err != nil {
		return err
	}
	if state == nil {
		return serverutils.NotFound("No state recorded for agent", nil)
	}
	return ctx.JSON(fiber.Map{
		"lastMessage": state.LastMessage,
		"pageContext": state.PageContext,
		"cleared":     state.Cleared,
		"timestamp":   state.UpdatedAt,
	})
}
