package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// FileConfig bounds file-based imports
type FileConfig struct {
	MaxRows int // 0 = unlimited
}

// DefaultFileConfig limits a single file import to 10k rows
func DefaultFileConfig() FileConfig {
	return FileConfig{MaxRows: 10000}
}

// ReadCSV parses a CSV stream into raw records keyed by header name. The
// output feeds the same mapping pipeline as radar results.
func ReadCSV(r io.Reader, config FileConfig) ([]map[string]any, error) {
	csvReader := csv.NewReader(r)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	headers, err := csvReader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	var records []map[string]any
	for {
		if config.MaxRows > 0 && len(records) >= config.MaxRows {
			break
		}

		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", len(records)+2, err)
		}

		record := make(map[string]any, len(headers))
		for i, header := range headers {
			if header == "" || i >= len(row) {
				continue
			}
			record[header] = strings.TrimSpace(row[i])
		}
		if len(record) > 0 {
			records = append(records, record)
		}
	}

	return records, nil
}

// ReadXLSX parses the first sheet of an XLSX stream into raw records keyed
// by the header row
func ReadXLSX(r io.Reader, config FileConfig) ([]map[string]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("XLSX has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read XLSX rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := rows[0]
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	var records []map[string]any
	for _, row := range rows[1:] {
		if config.MaxRows > 0 && len(records) >= config.MaxRows {
			break
		}

		record := make(map[string]any, len(headers))
		for i, header := range headers {
			if header == "" || i >= len(row) {
				continue
			}
			record[header] = strings.TrimSpace(row[i])
		}
		if len(record) > 0 {
			records = append(records, record)
		}
	}

	return records, nil
}
