package controller

import (
	"errors"

	"clarvis-be/internal/dto"
	"clarvis-be/internal/pkg/logger"
	"clarvis-be/internal/pkg/serverutils"
	"clarvis-be/internal/service"
	"clarvis-be/pkg/workflow"

	"github.com/gofiber/fiber/v2"
)

type IStudyMaterialController interface {
	RegisterRoutes(r fiber.Router, extra ...RouteFunc)
	Generate(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
}

// RouteFunc lets other handlers mount routes inside the controller's group.
type RouteFunc func(r fiber.Router)

type studyMaterialController struct {
	studyMaterialService service.IStudyMaterialService
	logger               logger.ILogger
}

func NewStudyMaterialController(studyMaterialService service.IStudyMaterialService, logger logger.ILogger) IStudyMaterialController {
	return &studyMaterialController{
		studyMaterialService: studyMaterialService,
		logger:               logger,
	}
}

func (c *studyMaterialController) RegisterRoutes(r fiber.Router, extra ...RouteFunc) {
	h := r.Group("/study-materials")
	h.Post("/generate", c.Generate)
	h.Get("/status/:instanceId", c.Status)
	h.Get("/status", func(ctx *fiber.Ctx) error {
		return serverutils.BadRequest("Instance ID required", nil)
	})
	h.Get("/list", c.List)
	h.Get("/records", c.Records)
	for _, fn := range extra {
		fn(h)
	}

	h.All("/*", func(ctx *fiber.Ctx) error {
		return serverutils.NotFound("Invalid study materials endpoint", nil)
	})
}

func (c *studyMaterialController) Generate(ctx *fiber.Ctx) error {
	var req dto.GenerateStudyMaterialRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.BadRequest("invalid request body", err)
	}
	if req.PageContext == nil {
		return serverutils.BadRequest("Page context is required", service.ErrMissingPageContext)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.studyMaterialService.Start(ctx.UserContext(), serverutils.UserID(ctx), &req)
	if err != nil {
		c.logger.Error("STUDY_MATERIAL", "Failed to start generation", map[string]interface{}{"error": err.Error()})
		return serverutils.NewAppError(fiber.StatusInternalServerError, "Failed to start study material generation", err)
	}
	return ctx.JSON(res)
}

func (c *studyMaterialController) Status(ctx *fiber.Ctx) error {
	status, err := c.studyMaterialService.Status(ctx.UserContext(), ctx.Params("instanceId"))
	if err != nil {
		if errors.Is(err, workflow.ErrRunNotFound) {
			return serverutils.NotFound("Workflow instance not found", err)
		}
		return err
	}
	return ctx.JSON(dto.StudyMaterialStatusResponse{Status: status})
}

func (c *studyMaterialController) List(ctx *fiber.Ctx) error {
	res, err := c.studyMaterialService.List(ctx.UserContext(), dto.StudyMaterialListQuery{
		Status: ctx.Query("status"),
		Limit:  ctx.QueryInt("limit", 0),
		Offset: ctx.QueryInt("offset", 0),
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatus) {
			return serverutils.BadRequest(err.Error(), err)
		}
		return err
	}
	return ctx.JSON(res)
}

// Records lists produced materials for ?userId=, or for the bearer identity.
func (c *studyMaterialController) Records(ctx *fiber.Ctx) error {
	userId := ctx.Query("userId", serverutils.UserID(ctx))
	res, err := c.studyMaterialService.Records(ctx.UserContext(), userId, ctx.QueryInt("limit", 0), ctx.QueryInt("offset", 0))
	if err != nil {
		if errors.Is(err, service.ErrMissingUserId) {
			return serverutils.BadRequest("User ID required", err)
		}
		return err
	}
	return ctx.JSON(res)
}
