package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/leadboard/leadboard/pkg/schema"
	"github.com/leadboard/leadboard/pkg/store"
)

const leadsTable = "leads"

// Service handles lead business logic
type Service struct {
	store       store.Store
	cache       domain.CacheRepository
	boards      domain.BoardInvalidator
	logger      logger.Logger
	phoneRegion string
}

// NewService creates a new lead service
func NewService(st store.Store, cache domain.CacheRepository, log logger.Logger, phoneRegion string) *Service {
	return &Service{store: st, cache: cache, logger: log, phoneRegion: phoneRegion}
}

// AttachBoards registers the board view to resync on every write. Set once
// at wiring time; the board manager itself reads leads through the store,
// so the dependency only runs in this direction.
func (s *Service) AttachBoards(boards domain.BoardInvalidator) {
	s.boards = boards
}

// List returns the user's leads, newest first
func (s *Service) List(ctx context.Context, userID string) ([]schema.Lead, error) {
	cacheKey := fmt.Sprintf("leads:%s", userID)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
			var leads []schema.Lead
			if err := json.Unmarshal([]byte(cached), &leads); err == nil {
				return leads, nil
			}
		}
	}

	rows, err := s.store.Select(ctx, leadsTable,
		store.Where(store.Eq("user_id", userID)),
		store.Desc("created_at"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}

	leads := make([]schema.Lead, len(rows))
	for i, row := range rows {
		leads[i] = schema.LeadFromRow(row)
	}

	if s.cache != nil {
		if payload, err := json.Marshal(leads); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, 2*time.Minute); err != nil {
				s.logger.Warn("failed to cache leads", "error", err)
			}
		}
	}
	return leads, nil
}

// Get returns a single lead by id
func (s *Service) Get(ctx context.Context, userID, leadID string) (*schema.Lead, error) {
	rows, err := s.store.Select(ctx, leadsTable, store.Where(
		store.Eq("user_id", userID),
		store.Eq("id", leadID),
	), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	if len(rows) == 0 {
		return nil, domain.NewNotFoundError("lead")
	}
	lead := schema.LeadFromRow(rows[0])
	return &lead, nil
}

// Create inserts a manually entered lead. The row is normalized at this
// boundary: title coerced to a string, metadata guaranteed present, phone
// formatted when parseable. Status defaults to "new".
func (s *Service) Create(ctx context.Context, userID string, fields map[string]any) (*schema.Lead, error) {
	row := schema.NormalizeRow(fields, s.phoneRegion)
	if schema.CoerceTitle(row["title"]) == "" {
		return nil, domain.NewValidationError("lead title is required")
	}

	row["id"] = uuid.NewString()
	row["user_id"] = userID
	if status, _ := row["status"].(string); status == "" {
		row["status"] = "new"
	}
	if _, ok := row["synced"]; !ok {
		row["synced"] = false
	}
	if _, ok := row["created_at"]; !ok {
		row["created_at"] = time.Now().UTC()
	}

	if err := s.store.Insert(ctx, leadsTable, []store.Row{row}); err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	s.invalidate(ctx, userID)
	lead := schema.LeadFromRow(row)
	return &lead, nil
}

// Update patches a lead's fields. Writing values identical to the current
// ones is a no-op: no remote write is issued.
func (s *Service) Update(ctx context.Context, userID, leadID string, fields map[string]any) (*schema.Lead, error) {
	current, err := s.Get(ctx, userID, leadID)
	if err != nil {
		return nil, err
	}

	patch := schema.NormalizeRow(fields, s.phoneRegion)
	delete(patch, "id")
	delete(patch, "user_id")
	delete(patch, "created_at")

	currentRow := current.Row()
	changed := store.Row{}
	for k, v := range patch {
		if k == "metadata" {
			if m, ok := v.(map[string]any); ok && len(m) == 0 {
				// NormalizeRow seeds an empty metadata bucket; an empty
				// patch value means "unchanged", not "clear".
				continue
			}
		}
		if !sameValue(currentRow[k], v) {
			changed[k] = v
		}
	}
	if len(changed) == 0 {
		return current, nil
	}

	if _, err := s.store.Update(ctx, leadsTable, changed, store.Where(store.Eq("id", leadID))); err != nil {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}

	s.invalidate(ctx, userID)
	return s.Get(ctx, userID, leadID)
}

// Delete removes a single lead
func (s *Service) Delete(ctx context.Context, userID, leadID string) error {
	count, err := s.store.Delete(ctx, leadsTable, store.Where(
		store.Eq("user_id", userID),
		store.Eq("id", leadID),
	))
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if count == 0 {
		return domain.NewNotFoundError("lead")
	}
	s.invalidate(ctx, userID)
	return nil
}

// MarkSynced persists the lead's synced flag after a successful CRM sync
func (s *Service) MarkSynced(ctx context.Context, userID, leadID string) error {
	_, err := s.store.Update(ctx, leadsTable,
		store.Row{"synced": true},
		store.Where(store.Eq("user_id", userID), store.Eq("id", leadID)),
	)
	if err != nil {
		return fmt.Errorf("failed to mark lead synced: %w", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// Unsynced returns leads not yet pushed to the CRM
func (s *Service) Unsynced(ctx context.Context, limit int) ([]schema.Lead, error) {
	rows, err := s.store.Select(ctx, leadsTable,
		store.Where(store.Eq("synced", false)),
		store.Asc("created_at"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced leads: %w", err)
	}

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	leads := make([]schema.Lead, len(rows))
	for i, row := range rows {
		leads[i] = schema.LeadFromRow(row)
	}
	return leads, nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, fmt.Sprintf("leads:%s", userID)); err != nil {
			s.logger.Warn("failed to invalidate leads cache", "error", err)
		}
	}
	if s.boards != nil {
		s.boards.InvalidateBoard(ctx, userID)
	}
}

func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
