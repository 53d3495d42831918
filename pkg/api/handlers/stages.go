package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	apierrors "github.com/leadboard/leadboard/pkg/api/errors"
	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/middleware"
	"github.com/leadboard/leadboard/pkg/models"
	"github.com/leadboard/leadboard/pkg/ordering"
	"github.com/leadboard/leadboard/pkg/stages"
)

// StageHandler handles pipeline stage lifecycle and ordering
type StageHandler struct {
	stageService *stages.Service
	ordering     *ordering.Controller
	validator    *validator.Validate
}

// NewStageHandler creates a new stage handler
func NewStageHandler(stageService *stages.Service, orderingController *ordering.Controller) *StageHandler {
	return &StageHandler{
		stageService: stageService,
		ordering:     orderingController,
		validator:    validator.New(),
	}
}

// ListStages godoc
// @Summary List the caller's pipeline stages in board order
// @Tags Stages
// @Produce json
// @Success 200 {object} map[string]interface{} "Stages with total count"
// @Failure 500 {object} models.ErrorResponse
// @Router /stages [get]
func (h *StageHandler) ListStages(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	result, err := h.stageService.List(ctx, userID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"stages": result,
		"total":  len(result),
	})
}

// CreateStage godoc
// @Summary Create a pipeline stage
// @Description The stage is appended at the end of the board. Stage names are unique per user.
// @Tags Stages
// @Accept json
// @Produce json
// @Param request body models.StageCreateRequest true "Stage label and optional name"
// @Success 201 {object} schema.Stage
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /stages [post]
func (h *StageHandler) CreateStage(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.StageCreateRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	stage, err := h.stageService.Create(ctx, userID, req.Label, req.Name)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusCreated, stage)
}

// UpdateStage godoc
// @Summary Update a stage's label, color or name
// @Description A name change first rewrites every lead referencing the old name, then commits the stage itself.
// @Tags Stages
// @Accept json
// @Produce json
// @Param id path string true "Stage ID"
// @Param request body models.StageUpdateRequest true "Changed fields"
// @Success 200 {object} schema.Stage
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /stages/{id} [put]
func (h *StageHandler) UpdateStage(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)
	stageID := c.Param("id")

	var req models.StageUpdateRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	if req.Name != nil {
		stage, err := h.stageService.Rename(ctx, userID, stageID, *req.Name)
		if err != nil {
			return apierrors.FromDomain(c, err)
		}
		if req.Label == nil && req.Color == nil {
			return c.JSON(http.StatusOK, stage)
		}
	}

	stage, err := h.stageService.Update(ctx, userID, stageID, stages.StagePatch{
		Label: req.Label,
		Color: req.Color,
	})
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, stage)
}

// DeleteStage godoc
// @Summary Delete an empty stage
// @Description Refused with 409 while leads still reference the stage; reallocate them first.
// @Tags Stages
// @Produce json
// @Param id path string true "Stage ID"
// @Success 200 {object} models.MessageResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /stages/{id} [delete]
func (h *StageHandler) DeleteStage(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	if err := h.stageService.Delete(ctx, userID, c.Param("id")); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Stage deleted"})
}

// ReallocateAndDelete godoc
// @Summary Move a stage's leads to another stage, then delete it
// @Tags Stages
// @Accept json
// @Produce json
// @Param id path string true "Stage ID"
// @Param request body models.ReallocateRequest true "Target stage name"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /stages/{id}/reallocate [post]
func (h *StageHandler) ReallocateAndDelete(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.ReallocateRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	if err := h.stageService.ReallocateAndDelete(ctx, userID, c.Param("id"), req.TargetStage); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Stage deleted"})
}

// ReorderStages godoc
// @Summary Move a stage from one board position to another
// @Description Persists an order index per stage. On any write failure the authoritative order is re-fetched and returned.
// @Tags Stages
// @Accept json
// @Produce json
// @Param request body models.ReorderRequest true "From and to positions"
// @Success 200 {object} map[string]interface{} "Stages in their new order"
// @Failure 400 {object} models.ErrorResponse
// @Router /stages/reorder [post]
func (h *StageHandler) ReorderStages(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.ReorderRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	current, err := h.stageService.List(ctx, userID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}

	reordered, err := h.ordering.ReorderStages(ctx, userID, current, req.FromIndex, req.ToIndex)
	if err != nil {
		if domain.IsBadRequest(err) {
			return apierrors.FromDomain(c, err)
		}
		// The returned slice is the authoritative order after a resync,
		// so the client can recover without a second round trip.
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "reorder_failed",
			"stages": reordered,
			"total":  len(reordered),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"stages": reordered,
		"total":  len(reordered),
	})
}
