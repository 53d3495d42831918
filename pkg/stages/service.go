// Package stages manages the pipeline stage lifecycle. A stage's name is
// the foreign key leads reference, so renames cascade to every referencing
// lead before the stage record itself changes, and deletion of a stage that
// still has members requires reallocating them first.
package stages

import (
	"context"
	"fmt"

	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/leadboard/leadboard/pkg/schema"
	"github.com/leadboard/leadboard/pkg/store"
)

const (
	stagesTable = "lead_stages"
	leadsTable  = "leads"
)

// Service handles stage lifecycle operations
type Service struct {
	store  store.Store
	boards domain.BoardInvalidator
	logger logger.Logger
}

// NewService creates a new stage service
func NewService(st store.Store, log logger.Logger) *Service {
	return &Service{store: st, logger: log}
}

// AttachBoards registers the board view to resync after operations that
// rewrite lead rows (renames and reallocations). Set once at wiring time.
func (s *Service) AttachBoards(boards domain.BoardInvalidator) {
	s.boards = boards
}

// List returns the user's stages in display order
func (s *Service) List(ctx context.Context, userID string) ([]schema.Stage, error) {
	rows, err := s.store.Select(ctx, stagesTable,
		store.Where(store.Eq("user_id", userID)),
		store.Asc("order_index"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}

	stages := make([]schema.Stage, len(rows))
	for i, row := range rows {
		stages[i] = schema.StageFromRow(row)
	}
	return stages, nil
}

// Get returns a single stage by id
func (s *Service) Get(ctx context.Context, userID, stageID string) (*schema.Stage, error) {
	rows, err := s.store.Select(ctx, stagesTable, store.Where(
		store.Eq("user_id", userID),
		store.Eq("id", stageID),
	), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.NewNotFoundError("stage")
	}
	stage := schema.StageFromRow(rows[0])
	return &stage, nil
}

// Create adds a stage at the end of the pipeline. The slug defaults to the
// slugified label; a slug already held by another of the user's stages is
// rejected, since leads reference stages by name.
func (s *Service) Create(ctx context.Context, userID, label, slug string) (*schema.Stage, error) {
	if label == "" {
		return nil, domain.NewValidationError("stage label is required")
	}
	if slug == "" {
		slug = schema.Slugify(label)
	}

	existing, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	maxOrder := -1
	for _, st := range existing {
		if st.Name == slug {
			return nil, domain.NewConflictError("a stage with this name already exists")
		}
		if st.OrderIndex > maxOrder {
			maxOrder = st.OrderIndex
		}
	}

	stage := schema.Stage{
		UserID:     userID,
		Name:       slug,
		Label:      label,
		Color:      "default",
		OrderIndex: maxOrder + 1,
	}

	row := stage.Row()
	delete(row, "id")
	if err := s.store.Insert(ctx, stagesTable, []store.Row{row}); err != nil {
		return nil, fmt.Errorf("failed to create stage: %w", err)
	}

	created, err := s.findByName(ctx, userID, slug)
	if err != nil {
		return &stage, nil
	}
	return created, nil
}

// Rename changes a stage's slug. All leads referencing the old name are
// updated first; the stage record is only touched once that cascade
// succeeded, so a failed cascade leaves both sides unchanged.
func (s *Service) Rename(ctx context.Context, userID, stageID, newName string) (*schema.Stage, error) {
	if newName == "" {
		return nil, domain.NewValidationError("stage name is required")
	}

	stage, err := s.Get(ctx, userID, stageID)
	if err != nil {
		return nil, err
	}
	if stage.Name == newName {
		return stage, nil
	}

	siblings, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, sib := range siblings {
		if sib.ID != stageID && sib.Name == newName {
			return nil, domain.NewConflictError("a stage with this name already exists")
		}
	}

	_, err = s.store.Update(ctx, leadsTable,
		store.Row{"status": newName},
		store.Where(store.Eq("user_id", userID), store.Eq("status", stage.Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update leads referencing stage %q: %w", stage.Name, err)
	}

	_, err = s.store.Update(ctx, stagesTable,
		store.Row{"name": newName},
		store.Where(store.Eq("id", stageID)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to rename stage: %w", err)
	}

	if s.boards != nil {
		s.boards.InvalidateBoard(ctx, userID)
	}
	stage.Name = newName
	return stage, nil
}

// StagePatch is a partial stage update for the fields that need no cascade
type StagePatch struct {
	Label *string
	Color *string
}

// Update changes a stage's label and/or color
func (s *Service) Update(ctx context.Context, userID, stageID string, patch StagePatch) (*schema.Stage, error) {
	stage, err := s.Get(ctx, userID, stageID)
	if err != nil {
		return nil, err
	}

	row := store.Row{}
	if patch.Label != nil {
		if *patch.Label == "" {
			return nil, domain.NewValidationError("stage label is required")
		}
		row["label"] = *patch.Label
		stage.Label = *patch.Label
	}
	if patch.Color != nil {
		row["color"] = *patch.Color
		stage.Color = *patch.Color
	}
	if len(row) == 0 {
		return stage, nil
	}

	if _, err := s.store.Update(ctx, stagesTable, row, store.Where(store.Eq("id", stageID))); err != nil {
		return nil, fmt.Errorf("failed to update stage: %w", err)
	}
	return stage, nil
}

// Delete removes a stage that no lead references. When leads still point at
// it, deletion is refused with a stage-in-use error and the caller must go
// through ReallocateAndDelete.
func (s *Service) Delete(ctx context.Context, userID, stageID string) error {
	stage, err := s.Get(ctx, userID, stageID)
	if err != nil {
		return err
	}

	count, err := s.countLeads(ctx, userID, stage.Name)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.NewStageInUseError(stage.Name, count)
	}

	if _, err := s.store.Delete(ctx, stagesTable, store.Where(store.Eq("id", stageID))); err != nil {
		return fmt.Errorf("failed to delete stage: %w", err)
	}
	return nil
}

// ReallocateAndDelete moves every lead out of the stage into the target
// stage, then removes the stage. If the reallocation fails the stage
// remains; the two steps behave as one logical transaction.
func (s *Service) ReallocateAndDelete(ctx context.Context, userID, stageID, targetName string) error {
	stage, err := s.Get(ctx, userID, stageID)
	if err != nil {
		return err
	}
	if targetName == "" || targetName == stage.Name {
		return domain.NewValidationError("a different target stage is required")
	}

	target, err := s.findByName(ctx, userID, targetName)
	if err != nil {
		return err
	}

	_, err = s.store.Update(ctx, leadsTable,
		store.Row{"status": target.Name},
		store.Where(store.Eq("user_id", userID), store.Eq("status", stage.Name)),
	)
	if err != nil {
		return fmt.Errorf("failed to reallocate leads from stage %q: %w", stage.Name, err)
	}

	if _, err := s.store.Delete(ctx, stagesTable, store.Where(store.Eq("id", stageID))); err != nil {
		return fmt.Errorf("failed to delete stage after reallocation: %w", err)
	}

	if s.boards != nil {
		s.boards.InvalidateBoard(ctx, userID)
	}
	return nil
}

// LeadCount reports how many leads currently reference the stage
func (s *Service) LeadCount(ctx context.Context, userID, stageID string) (int, error) {
	stage, err := s.Get(ctx, userID, stageID)
	if err != nil {
		return 0, err
	}
	return s.countLeads(ctx, userID, stage.Name)
}

func (s *Service) countLeads(ctx context.Context, userID, stageName string) (int, error) {
	rows, err := s.store.Select(ctx, leadsTable, store.Where(
		store.Eq("user_id", userID),
		store.Eq("status", stageName),
	), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count leads in stage: %w", err)
	}
	return len(rows), nil
}

func (s *Service) findByName(ctx context.Context, userID, name string) (*schema.Stage, error) {
	rows, err := s.store.Select(ctx, stagesTable, store.Where(
		store.Eq("user_id", userID),
		store.Eq("name", name),
	), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to find stage: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.NewNotFoundError("stage")
	}
	stage := schema.StageFromRow(rows[0])
	return &stage, nil
}
