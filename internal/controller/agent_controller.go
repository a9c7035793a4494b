package controller

import (
	"errors"

	"ai-sales-agent-be/internal/dto"
	"ai-sales-agent-be/internal/pkg/mailer"
	"ai-sales-agent-be/internal/pkg/serverutils"
	"ai-sales-agent-be/internal/service"
	"ai-sales-agent-be/pkg/agent"
	"ai-sales-agent-be/pkg/profile"

	"github.com/gofiber/fiber/v2"
)

type IAgentController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	Initiate(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Transcript(ctx *fiber.Ctx) error
	Dispatch(ctx *fiber.Ctx) error
	Classify(ctx *fiber.Ctx) error
	Retrieve(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type agentController struct {
	agentService service.IAgentService
}

func NewAgentController(agentService service.IAgentService) IAgentController {
	return &agentController{
		agentService: agentService,
	}
}

func (c *agentController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	r.Get("/health", c.Health)

	h := r.Group("/agent")
	h.Use(auth)
	h.Post("classify", c.Classify)
	h.Post("retrieve", c.Retrieve)
	h.Post("sessions/:userId/initiate", c.Initiate)
	h.Post("sessions/:userId/messages", c.SendMessage)
	h.Get("sessions/:userId/history", c.History)
	h.Get("sessions/:userId/transcript", c.Transcript)
	h.Post("sessions/:userId/dispatch", c.Dispatch)
}

func (c *agentController) Initiate(ctx *fiber.Ctx) error {
	res, err := c.agentService.Initiate(ctx.UserContext(), ctx.Params("userId"))
	if err != nil {
		return mapAgentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Session initiated", res))
}

func (c *agentController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.agentService.Respond(ctx.UserContext(), ctx.Params("userId"), &req)
	if err != nil {
		return mapAgentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Message answered", res))
}

func (c *agentController) History(ctx *fiber.Ctx) error {
	res, err := c.agentService.History(ctx.UserContext(), ctx.Params("userId"))
	if err != nil {
		return mapAgentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show history", res))
}

func (c *agentController) Transcript(ctx *fiber.Ctx) error {
	limit := ctx.QueryInt("limit", 50)
	res, err := c.agentService.Transcript(ctx.UserContext(), ctx.Params("userId"), limit)
	if err != nil {
		return mapAgentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show transcript", res))
}

func (c *agentController) Dispatch(ctx *fiber.Ctx) error {
	var req dto.DispatchRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.agentService.Dispatch(ctx.UserContext(), ctx.Params("userId"), &req)
	if err != nil {
		return mapAgentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Reply dispatched", res))
}

func (c *agentController) Classify(ctx *fiber.Ctx) error {
	var req dto.ClassifyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.agentService.Classify(ctx.UserContext(), &req)
	if err != nil {
		return mapAgentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success classify", res))
}

func (c *agentController) Retrieve(ctx *fiber.Ctx) error {
	var req dto.RetrieveRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.agentService.Retrieve(ctx.UserContext(), &req)
	if err != nil {
		return mapAgentError(err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success retrieve", res))
}

func (c *agentController) Health(ctx *fiber.Ctx) error {
	res := c.agentService.Health(ctx.UserContext())
	body := serverutils.SuccessResponse(res.Status, res)
	if res.Status != "ok" {
		body.Success = false
		body.Code = fiber.StatusServiceUnavailable
	}
	return ctx.Status(body.Code).JSON(body)
}

func mapAgentError(err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		status = fiber.StatusBadRequest
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, agent.ErrSessionNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, agent.ErrAlreadyInitiated), errors.Is(err, agent.ErrNoReplyToDispatch):
		status = fiber.StatusConflict
	case errors.Is(err, agent.ErrSessionTerminated):
		status = fiber.StatusGone
	case errors.Is(err, service.ErrNoRecipient):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, agent.ErrGeneration), errors.Is(err, profile.ErrUnavailable):
		status = fiber.StatusBadGateway
	case errors.Is(err, mailer.ErrNotConfigured), errors.Is(err, service.ErrTranscriptsUnavailable):
		status = fiber.StatusServiceUnavailable
	}
	return fiber.NewError(status, err.Error())
}
