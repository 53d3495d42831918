package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	apierrors "github.com/leadboard/leadboard/pkg/api/errors"
	"github.com/leadboard/leadboard/pkg/crmsync"
	"github.com/leadboard/leadboard/pkg/leads"
	"github.com/leadboard/leadboard/pkg/middleware"
	"github.com/leadboard/leadboard/pkg/models"
	"github.com/leadboard/leadboard/pkg/optimistic"
)

// LeadHandler handles lead CRUD, kanban moves and bulk board actions
type LeadHandler struct {
	leadService *leads.Service
	boards      *optimistic.Manager
	syncService *crmsync.Service
	validator   *validator.Validate
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(leadService *leads.Service, boards *optimistic.Manager, syncService *crmsync.Service) *LeadHandler {
	return &LeadHandler{
		leadService: leadService,
		boards:      boards,
		syncService: syncService,
		validator:   validator.New(),
	}
}

// ListLeads godoc
// @Summary List the caller's leads
// @Tags Leads
// @Produce json
// @Success 200 {object} map[string]interface{} "Leads with total count"
// @Failure 500 {object} models.ErrorResponse
// @Router /leads [get]
func (h *LeadHandler) ListLeads(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	result, err := h.leadService.List(ctx, userID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"leads": result,
		"total": len(result),
	})
}

// GetLead godoc
// @Summary Get a lead by ID
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} schema.Lead
// @Failure 404 {object} models.ErrorResponse
// @Router /leads/{id} [get]
func (h *LeadHandler) GetLead(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	lead, err := h.leadService.Get(ctx, userID, c.Param("id"))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, lead)
}

// CreateLead godoc
// @Summary Create a lead
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body models.LeadRequest true "Lead fields"
// @Success 201 {object} schema.Lead
// @Failure 400 {object} models.ErrorResponse
// @Router /leads [post]
func (h *LeadHandler) CreateLead(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.LeadRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	lead, err := h.leadService.Create(ctx, userID, req)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusCreated, lead)
}

// UpdateLead godoc
// @Summary Update lead fields
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param request body models.LeadRequest true "Changed fields"
// @Success 200 {object} schema.Lead
// @Failure 404 {object} models.ErrorResponse
// @Router /leads/{id} [put]
func (h *LeadHandler) UpdateLead(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.LeadRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	lead, err := h.leadService.Update(ctx, userID, c.Param("id"), req)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, lead)
}

// DeleteLead godoc
// @Summary Delete a lead
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} models.MessageResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /leads/{id} [delete]
func (h *LeadHandler) DeleteLead(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	if err := h.leadService.Delete(ctx, userID, c.Param("id")); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Lead deleted"})
}

// MoveLead godoc
// @Summary Move a lead to another kanban stage
// @Description Applies the move immediately on the caller's board and rolls it back if the write fails.
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body models.MoveLeadRequest true "Lead and target stage"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /leads/move [post]
func (h *LeadHandler) MoveLead(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.MoveLeadRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	board, err := h.boards.Board(ctx, userID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	if err := board.MoveToStage(ctx, req.LeadID, req.TargetStage); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Lead moved"})
}

// SetSelection godoc
// @Summary Replace the board selection
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body models.SelectionRequest true "Selected lead IDs"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /leads/selection [put]
func (h *LeadHandler) SetSelection(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.SelectionRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	board, err := h.boards.Board(ctx, userID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	board.SetSelection(req.IDs)
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Selection updated"})
}

// BulkSetStage godoc
// @Summary Move the selected leads to a stage
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body models.BulkStageRequest true "Lead IDs and target stage"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /leads/bulk/stage [post]
func (h *LeadHandler) BulkSetStage(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.BulkStageRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	board, err := h.boards.Board(ctx, userID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	board.SetSelection(req.IDs)
	if err := board.BulkSetStage(ctx, req.Status); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Leads updated"})
}

// BulkAssignAgent godoc
// @Summary Assign the selected leads to an agent
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body models.BulkAgentRequest true "Lead IDs and agent"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /leads/bulk/agent [post]
func (h *LeadHandler) BulkAssignAgent(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.BulkAgentRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	board, err := h.boards.Board(ctx, userID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	board.SetSelection(req.IDs)
	if err := board.BulkAssignAgent(ctx, req.AgentID); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Leads updated"})
}

// BulkSetRating godoc
// @Summary Rate the selected leads
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body models.BulkRatingRequest true "Lead IDs and rating"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /leads/bulk/rating [post]
func (h *LeadHandler) BulkSetRating(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.BulkRatingRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	board, err := h.boards.Board(ctx, userID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	board.SetSelection(req.IDs)
	if err := board.BulkSetRating(ctx, req.Rating); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Leads updated"})
}

// BulkSetCategory godoc
// @Summary Categorize the selected leads
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body models.BulkCategoryRequest true "Lead IDs and category"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /leads/bulk/category [post]
func (h *LeadHandler) BulkSetCategory(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.BulkCategoryRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	board, err := h.boards.Board(ctx, userID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	board.SetSelection(req.IDs)
	if err := board.BulkSetCategory(ctx, req.Category); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Leads updated"})
}

// BulkDelete godoc
// @Summary Delete the selected leads
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body models.BulkDeleteRequest true "Lead IDs"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /leads/bulk/delete [post]
func (h *LeadHandler) BulkDelete(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.BulkDeleteRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	board, err := h.boards.Board(ctx, userID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	board.SetSelection(req.IDs)
	if err := board.BulkDelete(ctx); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Leads deleted"})
}

// SyncLead godoc
// @Summary Push a lead to the external CRM
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} models.MessageResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /leads/{id}/sync [post]
func (h *LeadHandler) SyncLead(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	lead, err := h.leadService.Get(ctx, userID, c.Param("id"))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	if err := h.syncService.SyncLead(ctx, *lead); err != nil {
		return c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "sync_failed",
			Message: "The CRM did not accept the lead. It will be retried automatically.",
		})
	}
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Lead synced"})
}
