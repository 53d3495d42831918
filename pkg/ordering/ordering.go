// Package ordering maintains the ordered stage and column sequences under
// drag-and-drop style reordering: local splice-move first for immediate
// feedback, then asynchronous persistence.
package ordering

import (
	"context"
	"errors"
	"fmt"

	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/leadboard/leadboard/pkg/schema"
	"github.com/leadboard/leadboard/pkg/store"
	"github.com/leadboard/leadboard/pkg/tableconfig"
)

// Subject identifies what a reorder command operates on
type Subject string

const (
	SubjectStage      Subject = "stage"
	SubjectColumn     Subject = "column"
	SubjectKanbanLead Subject = "kanban_lead"
)

// ReorderCommand is the device-independent form of a drag gesture. Stage
// and column moves carry indices; kanban lead moves carry the dragged lead
// and the stage it was dropped on.
type ReorderCommand struct {
	Subject     Subject `json:"subject"`
	FromIndex   int     `json:"from_index"`
	ToIndex     int     `json:"to_index"`
	LeadID      string  `json:"lead_id,omitempty"`
	TargetStage string  `json:"target_stage,omitempty"`
}

// Move removes the element at from and reinserts it at to in the
// post-removal sequence. The result is always a permutation of the input.
func Move[T any](items []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(items) || to < 0 || to >= len(items) {
		return nil, domain.NewBadRequestError("reorder index out of range")
	}
	if from == to {
		out := make([]T, len(items))
		copy(out, items)
		return out, nil
	}

	out := make([]T, 0, len(items))
	out = append(out, items[:from]...)
	out = append(out, items[from+1:]...)

	out = append(out, *new(T))
	copy(out[to+1:], out[to:])
	out[to] = items[from]
	return out, nil
}

// Controller reorders stages and columns and persists the result
type Controller struct {
	store  store.Store
	config *tableconfig.Service
	logger logger.Logger
}

// NewController creates a new ordering controller
func NewController(st store.Store, config *tableconfig.Service, log logger.Logger) *Controller {
	return &Controller{store: st, config: config, logger: log}
}

// ReorderStages applies a stage move locally, then writes each stage's new
// positional order_index. Every write is attempted so a single failure
// cannot hide behind an earlier one; on any failure the authoritative order
// is re-fetched and returned, since local state has already diverged.
func (c *Controller) ReorderStages(ctx context.Context, userID string, stages []schema.Stage, from, to int) ([]schema.Stage, error) {
	reordered, err := Move(stages, from, to)
	if err != nil {
		return stages, err
	}

	var writeErrs []error
	for idx, stage := range reordered {
		_, err := c.store.Update(ctx, "lead_stages",
			store.Row{"order_index": idx},
			store.Where(store.Eq("id", stage.ID)),
		)
		if err != nil {
			writeErrs = append(writeErrs, fmt.Errorf("stage %s: %w", stage.ID, err))
			continue
		}
		reordered[idx].OrderIndex = idx
	}

	if len(writeErrs) > 0 {
		c.logger.Error("stage reorder partially failed, resyncing", "errors", len(writeErrs))
		authoritative, fetchErr := c.FetchStages(ctx, userID)
		if fetchErr != nil {
			return reordered, errors.Join(append(writeErrs, fetchErr)...)
		}
		return authoritative, errors.Join(writeErrs...)
	}

	return reordered, nil
}

// ReorderColumns applies a column move locally and persists the full new
// order in a single configuration write.
func (c *Controller) ReorderColumns(ctx context.Context, userID, tableName string, from, to int) ([]string, error) {
	cfg, err := c.config.Load(ctx, userID, tableName)
	if err != nil {
		return nil, err
	}

	reordered, err := Move(cfg.ColumnOrder, from, to)
	if err != nil {
		return cfg.ColumnOrder, err
	}

	if err := c.config.Save(ctx, userID, tableName, tableconfig.Patch{ColumnOrder: reordered}); err != nil {
		return cfg.ColumnOrder, err
	}
	return reordered, nil
}

// FetchStages loads the authoritative stage order
func (c *Controller) FetchStages(ctx context.Context, userID string) ([]schema.Stage, error) {
	rows, err := c.store.Select(ctx, "lead_stages",
		store.Where(store.Eq("user_id", userID)),
		store.Asc("order_index"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stages: %w", err)
	}

	stages := make([]schema.Stage, len(rows))
	for i, row := range rows {
		stages[i] = schema.StageFromRow(row)
	}
	return stages, nil
}
