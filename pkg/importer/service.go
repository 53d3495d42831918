// Package importer lands normalized lead payloads in the record store.
// The confirm step upserts on (user_id, title, address), so re-importing
// the same business at the same address updates the existing lead instead
// of duplicating it.
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/leadboard/leadboard/pkg/mapping"
	"github.com/leadboard/leadboard/pkg/schema"
	"github.com/leadboard/leadboard/pkg/store"
)

const leadsTable = "leads"

// ConflictKeys make the import idempotent per (user, title, address)
var ConflictKeys = []string{"user_id", "title", "address"}

// Service handles bulk import of leads
type Service struct {
	store       store.Store
	boards      domain.BoardInvalidator
	logger      logger.Logger
	phoneRegion string
}

// NewService creates a new import service
func NewService(st store.Store, log logger.Logger, phoneRegion string) *Service {
	return &Service{store: st, logger: log, phoneRegion: phoneRegion}
}

// AttachBoards registers the board view to resync after an import lands
func (s *Service) AttachBoards(boards domain.BoardInvalidator) {
	s.boards = boards
}

// ImportResult holds the outcome of an import operation
type ImportResult struct {
	TotalRows    int           `json:"total_rows"`
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	Errors       []ImportError `json:"errors,omitempty"`
	Duration     string        `json:"duration"`
}

// ImportError represents an error during import
type ImportError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ImportMapped applies a mapping to raw records and upserts the resulting
// lead payloads for the user. Each payload is stamped with the user id, a
// "new" status and a creation timestamp, then normalized at the boundary.
func (s *Service) ImportMapped(ctx context.Context, userID string, m mapping.Mapping, raw []map[string]any) (*ImportResult, error) {
	if len(raw) == 0 {
		return nil, domain.NewValidationError("no records to import")
	}

	start := time.Now()
	result := &ImportResult{TotalRows: len(raw)}

	normalized := m.Apply(raw)
	rows := make([]store.Row, 0, len(normalized))
	for i, record := range normalized {
		row := schema.NormalizeRow(record, s.phoneRegion)
		if schema.CoerceTitle(row["title"]) == "" {
			result.FailureCount++
			result.Errors = append(result.Errors, ImportError{
				Row:     i + 1,
				Field:   "title",
				Message: "record has no title after mapping",
			})
			continue
		}
		row["user_id"] = userID
		row["status"] = "new"
		// Imported data supersedes whatever was pushed before, so the
		// lead goes back into the sync queue
		row["synced"] = false
		row["created_at"] = time.Now().UTC()
		rows = append(rows, row)
	}

	if len(rows) > 0 {
		if err := s.store.Upsert(ctx, leadsTable, rows, ConflictKeys); err != nil {
			return nil, fmt.Errorf("failed to upsert imported leads: %w", err)
		}
		result.SuccessCount = len(rows)
		if s.boards != nil {
			s.boards.InvalidateBoard(ctx, userID)
		}
	}

	result.Duration = time.Since(start).String()
	s.logger.Info("import completed",
		"user_id", userID,
		"success", result.SuccessCount,
		"failures", result.FailureCount,
	)
	return result, nil
}
