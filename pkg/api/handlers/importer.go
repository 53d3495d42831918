package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	apierrors "github.com/leadboard/leadboard/pkg/api/errors"
	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/importer"
	"github.com/leadboard/leadboard/pkg/mapping"
	"github.com/leadboard/leadboard/pkg/metrics"
	"github.com/leadboard/leadboard/pkg/middleware"
	"github.com/leadboard/leadboard/pkg/models"
)

// ImportHandler handles radar searches, file uploads and the mapping
// preview/confirm flow that lands records in the lead table
type ImportHandler struct {
	importService *importer.Service
	search        domain.SearchClient
	validator     *validator.Validate
}

// NewImportHandler creates a new import handler
func NewImportHandler(importService *importer.Service, search domain.SearchClient) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		search:        search,
		validator:     validator.New(),
	}
}

// RadarSearch godoc
// @Summary Search businesses around a coordinate
// @Description Returns raw results plus an inferred field mapping and a short preview, ready for the confirm step.
// @Tags Import
// @Accept json
// @Produce json
// @Param request body models.RadarSearchRequest true "Keyword and search area"
// @Success 200 {object} map[string]interface{} "Records, inferred mapping and preview"
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /radar/search [post]
func (h *ImportHandler) RadarSearch(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.RadarSearchRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	records, err := h.search.Search(ctx, req.Keyword, req.Lat, req.Lng, req.RadiusKm)
	if err != nil {
		return c.JSON(http.StatusBadGateway, models.ErrorResponse{
			Error:   "search_failed",
			Message: "The search engine did not respond. Please try again later.",
		})
	}

	return c.JSON(http.StatusOK, previewPayload(records))
}

// UploadFile godoc
// @Summary Parse a CSV or XLSX file into records
// @Description Returns the parsed records plus an inferred field mapping and a short preview, ready for the confirm step.
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Success 200 {object} map[string]interface{} "Records, inferred mapping and preview"
// @Failure 400 {object} models.ErrorResponse
// @Router /import/file [post]
func (h *ImportHandler) UploadFile(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apierrors.ValidationError(c, err)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return apierrors.InternalError(c, err)
	}
	defer src.Close()

	cfg := importer.DefaultFileConfig()
	var records []map[string]any
	switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
	case ".csv":
		records, err = importer.ReadCSV(src, cfg)
	case ".xlsx":
		records, err = importer.ReadXLSX(src, cfg)
	default:
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "unsupported_format",
			Message: "Only CSV and XLSX files are supported.",
		})
	}
	if err != nil {
		return apierrors.ValidationError(c, err)
	}
	if len(records) == 0 {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "empty_file",
			Message: "The file contains no records.",
		})
	}

	return c.JSON(http.StatusOK, previewPayload(records))
}

// PreviewImport godoc
// @Summary Preview a mapping against raw records
// @Description Applies the mapping to the first few records only, so overrides can be checked before committing.
// @Tags Import
// @Accept json
// @Produce json
// @Param request body models.ImportPreviewRequest true "Mapping and records"
// @Success 200 {object} map[string]interface{} "Mapped preview"
// @Failure 400 {object} models.ErrorResponse
// @Router /import/preview [post]
func (h *ImportHandler) PreviewImport(c echo.Context) error {
	var req models.ImportPreviewRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	m := mapping.Mapping(req.Mapping)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"preview": m.Preview(req.Records),
		"total":   len(req.Records),
	})
}

// ConfirmImport godoc
// @Summary Apply a mapping to the full record set and upsert the leads
// @Description Re-importing the same records updates the existing leads instead of duplicating them.
// @Tags Import
// @Accept json
// @Produce json
// @Param request body models.ImportConfirmRequest true "Mapping and records"
// @Success 200 {object} importer.ImportResult
// @Failure 400 {object} models.ErrorResponse
// @Router /import/confirm [post]
func (h *ImportHandler) ConfirmImport(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.ImportConfirmRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	result, err := h.importService.ImportMapped(ctx, userID, mapping.Mapping(req.Mapping), req.Records)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}

	metrics.RecordImport("imported", result.SuccessCount)
	metrics.RecordImport("failed", result.FailureCount)
	return c.JSON(http.StatusOK, result)
}

func previewPayload(records []map[string]any) map[string]interface{} {
	m := mapping.Infer(sourceKeys(records))
	return map[string]interface{}{
		"records": records,
		"mapping": m,
		"preview": m.Preview(records),
		"total":   len(records),
	}
}

// sourceKeys is the first record's key set. The first record defines the
// mapping dialog's columns; keys appearing only in later records stay
// unmapped until explicitly overridden.
func sourceKeys(records []map[string]any) []string {
	if len(records) == 0 {
		return nil
	}
	keys := make([]string, 0, len(records[0]))
	for key := range records[0] {
		keys = append(keys, key)
	}
	return keys
}
