package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Postgres implements Store over database/sql with the lib/pq driver.
// Map and slice values are stored as jsonb and decoded back on read.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool against the given database URL
func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Close closes the underlying connection pool
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping checks the database connection
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Select returns all rows matching the filter
func (p *Postgres) Select(ctx context.Context, table string, filter Filter, order *Order) ([]Row, error) {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(pq.QuoteIdentifier(table))

	args := appendWhere(&sb, filter, nil)

	if order != nil {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(pq.QuoteIdentifier(order.Column))
		if order.Desc {
			sb.WriteString(" DESC")
		}
	}

	rows, err := p.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = decodeValue(values[i])
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

// Insert writes each row in a single transaction
func (p *Postgres) Insert(ctx context.Context, table string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert into %s: %w", table, err)
	}

	for _, row := range rows {
		query, args := buildInsert(table, row, nil)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	return tx.Commit()
}

// Update applies the patch to every matching row
func (p *Postgres) Update(ctx context.Context, table string, patch Row, filter Filter) (int, error) {
	if len(patch) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(pq.QuoteIdentifier(table))
	sb.WriteString(" SET ")

	var args []any
	for i, col := range sortedKeys(patch) {
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, encodeValue(patch[col]))
		sb.WriteString(fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(col), len(args)))
	}

	args = appendWhere(&sb, filter, args)

	res, err := p.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// Delete removes every matching row
func (p *Postgres) Delete(ctx context.Context, table string, filter Filter) (int, error) {
	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(pq.QuoteIdentifier(table))

	args := appendWhere(&sb, filter, nil)

	res, err := p.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// Upsert inserts each row, updating the non-key columns on conflict
func (p *Postgres) Upsert(ctx context.Context, table string, rows []Row, conflictKeys []string) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert into %s: %w", table, err)
	}

	for _, row := range rows {
		query, args := buildInsert(table, row, conflictKeys)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert into %s: %w", table, err)
		}
	}

	return tx.Commit()
}

func buildInsert(table string, row Row, conflictKeys []string) (string, []any) {
	cols := sortedKeys(row)

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(pq.QuoteIdentifier(table))
	sb.WriteString(" (")

	var args []any
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(pq.QuoteIdentifier(col))
		args = append(args, encodeValue(row[col]))
	}
	sb.WriteString(") VALUES (")
	for i := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("$%d", i+1))
	}
	sb.WriteString(")")

	if len(conflictKeys) > 0 {
		sb.WriteString(" ON CONFLICT (")
		for i, key := range conflictKeys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(pq.QuoteIdentifier(key))
		}
		sb.WriteString(") DO UPDATE SET ")

		conflict := make(map[string]bool, len(conflictKeys))
		for _, k := range conflictKeys {
			conflict[k] = true
		}
		first := true
		for _, col := range cols {
			if conflict[col] || col == "id" {
				continue
			}
			if !first {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s = EXCLUDED.%s", pq.QuoteIdentifier(col), pq.QuoteIdentifier(col)))
			first = false
		}
	}

	return sb.String(), args
}

func appendWhere(sb *strings.Builder, filter Filter, args []any) []any {
	if len(filter) == 0 {
		return args
	}

	sb.WriteString(" WHERE ")
	for i, cond := range filter {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		col := pq.QuoteIdentifier(cond.Column)
		switch cond.Op {
		case OpEq:
			args = append(args, encodeValue(cond.Value))
			sb.WriteString(fmt.Sprintf("%s = $%d", col, len(args)))
		case OpIn:
			args = append(args, pq.Array(cond.Values))
			sb.WriteString(fmt.Sprintf("%s = ANY($%d)", col, len(args)))
		case OpIsNull:
			sb.WriteString(fmt.Sprintf("%s IS NULL", col))
		}
	}
	return args
}

// encodeValue maps JSON-shaped values to their jsonb wire form
func encodeValue(v any) any {
	switch v.(type) {
	case map[string]any, []any, []string:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return b
	default:
		return v
	}
}

// decodeValue restores jsonb columns to maps/slices; other byte slices
// come back as strings
func decodeValue(v any) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	trimmed := strings.TrimSpace(string(b))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded any
		if err := json.Unmarshal(b, &decoded); err == nil {
			return decoded
		}
	}
	return string(b)
}

func sortedKeys(row Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
