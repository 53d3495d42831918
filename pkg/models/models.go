package models

// ErrorResponse is the uniform error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// MessageResponse carries a transient notification back to the caller
type MessageResponse struct {
	Message string `json:"message"`
}

// LeadRequest creates or updates a lead; open-shaped because predefined
// fields and metadata travel together
type LeadRequest map[string]any

// BulkStageRequest moves the selected leads to a stage
type BulkStageRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1"`
	Status string   `json:"status" validate:"required"`
}

// BulkAgentRequest assigns the selected leads to an agent; empty unassigns
type BulkAgentRequest struct {
	IDs     []string `json:"ids" validate:"required,min=1"`
	AgentID string   `json:"agent_id"`
}

// BulkRatingRequest rates the selected leads
type BulkRatingRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1"`
	Rating int      `json:"rating" validate:"min=0,max=5"`
}

// BulkCategoryRequest categorizes the selected leads
type BulkCategoryRequest struct {
	IDs      []string `json:"ids" validate:"required,min=1"`
	Category string   `json:"category" validate:"required"`
}

// BulkDeleteRequest deletes the selected leads
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// MoveLeadRequest is the kanban drag gesture
type MoveLeadRequest struct {
	LeadID      string `json:"lead_id" validate:"required"`
	TargetStage string `json:"target_stage" validate:"required"`
}

// StageCreateRequest creates a pipeline stage
type StageCreateRequest struct {
	Label string `json:"label" validate:"required"`
	Name  string `json:"name"`
}

// StageUpdateRequest relabels, recolors or renames a stage. A name change
// cascades to every referencing lead.
type StageUpdateRequest struct {
	Label *string `json:"label"`
	Color *string `json:"color"`
	Name  *string `json:"name"`
}

// ReorderRequest moves an element from one position to another
type ReorderRequest struct {
	FromIndex int `json:"from_index" validate:"min=0"`
	ToIndex   int `json:"to_index" validate:"min=0"`
}

// ReallocateRequest names the stage leads are moved to before deletion
type ReallocateRequest struct {
	TargetStage string `json:"target_stage" validate:"required"`
}

// ConfigSaveRequest patches the per-user table configuration; nil parts
// are left unchanged
type ConfigSaveRequest struct {
	VisibleColumns []string `json:"visible_columns"`
	ColumnOrder    []string `json:"column_order"`
}

// CustomFieldRequest creates a custom field from a label and a type
type CustomFieldRequest struct {
	Label string `json:"label" validate:"required"`
	Type  string `json:"type"`
}

// RadarSearchRequest runs a business search around a coordinate
type RadarSearchRequest struct {
	Keyword  string  `json:"keyword" validate:"required"`
	Lat      float64 `json:"lat" validate:"min=-90,max=90"`
	Lng      float64 `json:"lng" validate:"min=-180,max=180"`
	RadiusKm float64 `json:"radius" validate:"gt=0"`
}

// ImportPreviewRequest previews a mapping against raw records
type ImportPreviewRequest struct {
	Mapping map[string]string `json:"mapping" validate:"required"`
	Records []map[string]any  `json:"records" validate:"required,min=1"`
}

// ImportConfirmRequest applies a mapping to the full record set
type ImportConfirmRequest struct {
	Mapping map[string]string `json:"mapping" validate:"required"`
	Records []map[string]any  `json:"records" validate:"required,min=1"`
}

// SelectionRequest replaces the board selection
type SelectionRequest struct {
	IDs []string `json:"ids"`
}
