// Package export writes a user's leads to CSV or XLSX, honoring the
// per-user column order and visibility, custom fields included.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/leadboard/leadboard/pkg/schema"
	"github.com/xuri/excelize/v2"
)

// Service handles lead exports
type Service struct {
	storagePath string
	logger      logger.Logger
}

// NewService creates a new export service
func NewService(storagePath string, log logger.Logger) *Service {
	return &Service{storagePath: storagePath, logger: log}
}

// Columns resolves the exported column set: the configured order filtered
// to visible columns
func Columns(cfg *schema.ColumnConfig) []string {
	visible := make(map[string]bool, len(cfg.VisibleColumns))
	for _, c := range cfg.VisibleColumns {
		visible[c] = true
	}
	out := make([]string, 0, len(cfg.ColumnOrder))
	for _, c := range cfg.ColumnOrder {
		if visible[c] {
			out = append(out, c)
		}
	}
	return out
}

// WriteCSV streams leads as CSV
func (s *Service) WriteCSV(w io.Writer, leads []schema.Lead, cfg *schema.ColumnConfig) error {
	columns := Columns(cfg)
	writer := csv.NewWriter(w)

	if err := writer.Write(headerLabels(columns, cfg.CustomFields)); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, lead := range leads {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = cellValue(lead, col)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteXLSX streams leads as an XLSX workbook
func (s *Service) WriteXLSX(w io.Writer, leads []schema.Lead, cfg *schema.ColumnConfig) error {
	columns := Columns(cfg)

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Leads"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, label := range headerLabels(columns, cfg.CustomFields) {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, label); err != nil {
			return err
		}
	}

	for rowIdx, lead := range leads {
		for colIdx, col := range columns {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, cellValue(lead, col)); err != nil {
				return err
			}
		}
	}

	return f.Write(w)
}

// Export writes leads to a timestamped file under the storage path and
// returns the file's path. Format is "csv" or "xlsx".
func (s *Service) Export(ctx context.Context, userID string, leads []schema.Lead, cfg *schema.ColumnConfig, format string) (string, error) {
	if format != "csv" && format != "xlsx" {
		return "", domain.NewValidationError("format must be csv or xlsx")
	}

	if err := os.MkdirAll(s.storagePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	name := fmt.Sprintf("leads_%s_%d.%s", userID, time.Now().Unix(), format)
	path := filepath.Join(s.storagePath, name)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	if format == "csv" {
		err = s.WriteCSV(file, leads, cfg)
	} else {
		err = s.WriteXLSX(file, leads, cfg)
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}

	s.logger.Info("export written", "path", path, "leads", len(leads))
	return path, nil
}

func headerLabels(columns []string, customFields []schema.CustomField) []string {
	labels := make([]string, len(columns))
	for i, col := range columns {
		labels[i] = col
		if key, ok := strings.CutPrefix(col, "meta_"); ok {
			for _, cf := range customFields {
				if cf.Key == key {
					labels[i] = cf.Label
					break
				}
			}
		}
	}
	return labels
}

func cellValue(lead schema.Lead, column string) string {
	if key, ok := strings.CutPrefix(column, "meta_"); ok {
		if v, ok := lead.Metadata[key]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
		return ""
	}

	switch column {
	case "title":
		return lead.Title
	case "status":
		return lead.Status
	case "phone_number":
		return lead.PhoneNumber
	case "email":
		return lead.Email
	case "address":
		return lead.Address
	case "category":
		return lead.Category
	case "owner_name":
		return lead.OwnerName
	case "agent_assigned":
		if lead.AgentAssigned != nil {
			return *lead.AgentAssigned
		}
		return ""
	case "country":
		return lead.Country
	case "city":
		return lead.City
	case "rating":
		return fmt.Sprintf("%d", lead.Rating)
	case "website":
		return lead.Website
	case "created_at":
		if lead.CreatedAt.IsZero() {
			return ""
		}
		return lead.CreatedAt.Format(time.RFC3339)
	default:
		return ""
	}
}
