package handler

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/proteindock/api/internal/merge"
	"github.com/proteindock/api/internal/model"
	"github.com/proteindock/api/internal/pdb"
	"github.com/proteindock/api/internal/service"
	"github.com/proteindock/api/pkg/response"
)

type MergeHandler struct {
	service   *service.MergeService
	validator *validator.Validate
}

func NewMergeHandler(svc *service.MergeService, v *validator.Validate) *MergeHandler {
	return &MergeHandler{service: svc, validator: v}
}

// Merge handles POST /api/structures/merge
func (h *MergeHandler) Merge(c *fiber.Ctx) error {
	var req model.MergeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	resp, err := h.service.Merge(&req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInputNotFound):
			return response.NotFound(c, err.Error())
		case errors.Is(err, pdb.ErrInvalidStructure):
			return response.InvalidStructure(c, err.Error())
		case errors.Is(err, merge.ErrPlacementFailed):
			return response.PlacementFailed(c, err.Error())
		default:
			log.Printf("Failed to merge structures: %v", err)
			return response.ServiceError(c, "Failed to merge structures")
		}
	}

	return response.OK(c, resp)
}
