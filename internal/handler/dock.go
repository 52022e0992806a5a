package handler

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/proteindock/api/internal/model"
	"github.com/proteindock/api/internal/registry"
	"github.com/proteindock/api/internal/service"
	"github.com/proteindock/api/pkg/response"
)

type DockHandler struct {
	service   *service.DockService
	validator *validator.Validate
}

func NewDockHandler(svc *service.DockService, v *validator.Validate) *DockHandler {
	return &DockHandler{service: svc, validator: v}
}

// Start handles POST /api/dock/start
func (h *DockHandler) Start(c *fiber.Ctx) error {
	var req model.DockStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	resp, err := h.service.Start(c.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrJobAlreadyRunning):
			return response.JobAlreadyRunning(c, "A docking job is already running for this project")
		case errors.Is(err, service.ErrTooManyReplicates):
			return response.ValidationError(c, err.Error(), nil)
		case errors.Is(err, service.ErrComplexMissing):
			return response.NotFound(c, "No merged complex found for this project; merge structures first")
		default:
			log.Printf("Failed to start docking job: %v", err)
			return response.ServiceError(c, "Failed to start docking job")
		}
	}

	return response.Accepted(c, resp)
}

// Cancel handles POST /api/dock/cancel/:project
func (h *DockHandler) Cancel(c *fiber.Ctx) error {
	project := c.Params("project")
	if err := h.validator.Var(project, "required,projectid"); err != nil {
		return response.ValidationError(c, "Invalid project id", nil)
	}

	return response.OK(c, h.service.Cancel(c.Context(), project))
}

// Status handles GET /api/dock/status/:project
func (h *DockHandler) Status(c *fiber.Ctx) error {
	project := c.Params("project")
	if err := h.validator.Var(project, "required,projectid"); err != nil {
		return response.ValidationError(c, "Invalid project id", nil)
	}

	job, err := h.service.Status(c.Context(), project)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "No docking job found for this project")
		}
		log.Printf("Failed to read job status: %v", err)
		return response.ServiceError(c, "Failed to read job status")
	}

	return response.OK(c, job)
}

// Results handles GET /api/dock/results/:project
func (h *DockHandler) Results(c *fiber.Ctx) error {
	project := c.Params("project")
	if err := h.validator.Var(project, "required,projectid"); err != nil {
		return response.ValidationError(c, "Invalid project id", nil)
	}

	results, err := h.service.Results(c.Context(), project)
	if err != nil {
		if errors.Is(err, service.ErrResultsNotFound) {
			return response.NotFound(c, "No results found for this project")
		}
		log.Printf("Failed to read results: %v", err)
		return response.ServiceError(c, "Failed to read results")
	}

	return response.OK(c, results)
}
