package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierrors "github.com/leadboard/leadboard/pkg/api/errors"
	"github.com/leadboard/leadboard/pkg/export"
	"github.com/leadboard/leadboard/pkg/leads"
	"github.com/leadboard/leadboard/pkg/middleware"
	"github.com/leadboard/leadboard/pkg/models"
	"github.com/leadboard/leadboard/pkg/tableconfig"
)

// ExportHandler streams the caller's leads as CSV or XLSX
type ExportHandler struct {
	exportService *export.Service
	leadService   *leads.Service
	configService *tableconfig.Service
}

// NewExportHandler creates a new export handler
func NewExportHandler(exportService *export.Service, leadService *leads.Service, configService *tableconfig.Service) *ExportHandler {
	return &ExportHandler{
		exportService: exportService,
		leadService:   leadService,
		configService: configService,
	}
}

// ExportLeads godoc
// @Summary Export the caller's leads
// @Description Columns follow the caller's visible columns in their configured order. Format is csv or xlsx.
// @Tags Export
// @Produce octet-stream
// @Param format query string false "csv or xlsx (default csv)"
// @Success 200 {file} file
// @Failure 400 {object} models.ErrorResponse
// @Router /leads/export [get]
func (h *ExportHandler) ExportLeads(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	format := c.QueryParam("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "unsupported_format",
			Message: "Only csv and xlsx exports are supported.",
		})
	}

	result, err := h.leadService.List(ctx, userID)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	cfg, err := h.configService.Load(ctx, userID, "leads")
	if err != nil {
		return apierrors.FromDomain(c, err)
	}

	if format == "xlsx" {
		c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="leads.xlsx"`)
		c.Response().WriteHeader(http.StatusOK)
		return h.exportService.WriteXLSX(c.Response(), result, cfg)
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="leads.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	return h.exportService.WriteCSV(c.Response(), result, cfg)
}
