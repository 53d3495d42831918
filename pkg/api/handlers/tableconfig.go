package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	apierrors "github.com/leadboard/leadboard/pkg/api/errors"
	"github.com/leadboard/leadboard/pkg/middleware"
	"github.com/leadboard/leadboard/pkg/models"
	"github.com/leadboard/leadboard/pkg/ordering"
	"github.com/leadboard/leadboard/pkg/schema"
	"github.com/leadboard/leadboard/pkg/tableconfig"
)

// ConfigHandler handles per-user table configuration and column layout
type ConfigHandler struct {
	configService *tableconfig.Service
	ordering      *ordering.Controller
	validator     *validator.Validate
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(configService *tableconfig.Service, orderingController *ordering.Controller) *ConfigHandler {
	return &ConfigHandler{
		configService: configService,
		ordering:      orderingController,
		validator:     validator.New(),
	}
}

// GetConfig godoc
// @Summary Get the caller's configuration for a table
// @Description Missing configuration yields defaults; the stored column order is reconciled against the current column universe.
// @Tags Config
// @Produce json
// @Param table path string true "Table name"
// @Success 200 {object} schema.ColumnConfig
// @Failure 500 {object} models.ErrorResponse
// @Router /config/{table} [get]
func (h *ConfigHandler) GetConfig(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	cfg, err := h.configService.Load(ctx, userID, c.Param("table"))
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}

// SaveConfig godoc
// @Summary Patch the caller's configuration for a table
// @Description Only the provided parts change; unrelated configuration keys stored by other features survive the write.
// @Tags Config
// @Accept json
// @Produce json
// @Param table path string true "Table name"
// @Param request body models.ConfigSaveRequest true "Configuration patch"
// @Success 200 {object} schema.ColumnConfig
// @Failure 400 {object} models.ErrorResponse
// @Router /config/{table} [put]
func (h *ConfigHandler) SaveConfig(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)
	table := c.Param("table")

	var req models.ConfigSaveRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	err := h.configService.Save(ctx, userID, table, tableconfig.Patch{
		VisibleColumns: req.VisibleColumns,
		ColumnOrder:    req.ColumnOrder,
	})
	if err != nil {
		return apierrors.FromDomain(c, err)
	}

	cfg, err := h.configService.Load(ctx, userID, table)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, cfg)
}

// AddCustomField godoc
// @Summary Add a custom field to a table
// @Description The field key is derived from the label. The new column lands at the end of the order but stays hidden until made visible.
// @Tags Config
// @Accept json
// @Produce json
// @Param table path string true "Table name"
// @Param request body models.CustomFieldRequest true "Field label and type"
// @Success 201 {object} schema.CustomField
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /config/{table}/fields [post]
func (h *ConfigHandler) AddCustomField(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.CustomFieldRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	fieldType := schema.FieldType(req.Type)
	if req.Type == "" {
		fieldType = schema.FieldText
	}
	if !fieldType.Valid() {
		return apierrors.ValidationError(c, nil)
	}

	field, err := h.configService.AddCustomField(ctx, userID, c.Param("table"), req.Label, fieldType)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusCreated, field)
}

// RemoveCustomField godoc
// @Summary Remove a custom field from a table
// @Description Lead metadata is left untouched; only the field definition and its column disappear.
// @Tags Config
// @Produce json
// @Param table path string true "Table name"
// @Param key path string true "Field key"
// @Success 200 {object} models.MessageResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /config/{table}/fields/{key} [delete]
func (h *ConfigHandler) RemoveCustomField(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	if err := h.configService.RemoveCustomField(ctx, userID, c.Param("table"), c.Param("key")); err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, models.MessageResponse{Message: "Custom field removed"})
}

// ReorderColumns godoc
// @Summary Move a column from one position to another
// @Tags Config
// @Accept json
// @Produce json
// @Param table path string true "Table name"
// @Param request body models.ReorderRequest true "From and to positions"
// @Success 200 {object} map[string]interface{} "Columns in their new order"
// @Failure 400 {object} models.ErrorResponse
// @Router /config/{table}/columns/reorder [post]
func (h *ConfigHandler) ReorderColumns(c echo.Context) error {
	ctx := c.Request().Context()
	userID := middleware.UserID(c)

	var req models.ReorderRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	columns, err := h.ordering.ReorderColumns(ctx, userID, c.Param("table"), req.FromIndex, req.ToIndex)
	if err != nil {
		return apierrors.FromDomain(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"column_order": columns,
	})
}
