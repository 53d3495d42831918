package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory Store used in tests and as a stand-in when no
// database is configured. Rows are copied on the way in and out so callers
// never alias internal state.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]Row
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Row)}
}

// Select returns copies of all rows matching the filter
func (m *Memory) Select(ctx context.Context, table string, filter Filter, order *Order) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Row
	for _, row := range m.tables[table] {
		if matches(row, filter) {
			out = append(out, cloneRow(row))
		}
	}

	if order != nil {
		col, desc := order.Column, order.Desc
		sort.SliceStable(out, func(i, j int) bool {
			if desc {
				return less(out[j][col], out[i][col])
			}
			return less(out[i][col], out[j][col])
		})
	}

	return out, nil
}

// Insert appends rows, assigning an id when the row carries none
func (m *Memory) Insert(ctx context.Context, table string, rows []Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range rows {
		m.tables[table] = append(m.tables[table], withID(cloneRow(row)))
	}
	return nil
}

// Update applies the patch to every matching row and reports how many changed
func (m *Memory) Update(ctx context.Context, table string, patch Row, filter Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, row := range m.tables[table] {
		if matches(row, filter) {
			for k, v := range patch {
				row[k] = cloneValue(v)
			}
			count++
		}
	}
	return count, nil
}

// Delete removes every matching row and reports how many were removed
func (m *Memory) Delete(ctx context.Context, table string, filter Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.tables[table][:0]
	count := 0
	for _, row := range m.tables[table] {
		if matches(row, filter) {
			count++
			continue
		}
		kept = append(kept, row)
	}
	m.tables[table] = kept
	return count, nil
}

// Upsert inserts rows, replacing the non-key columns of an existing row when
// every conflict key matches
func (m *Memory) Upsert(ctx context.Context, table string, rows []Row, conflictKeys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range rows {
		existing := m.findByKeys(table, row, conflictKeys)
		if existing != nil {
			for k, v := range row {
				existing[k] = cloneValue(v)
			}
			continue
		}
		m.tables[table] = append(m.tables[table], withID(cloneRow(row)))
	}
	return nil
}

// Count reports the number of rows matching the filter
func (m *Memory) Count(ctx context.Context, table string, filter Filter) (int, error) {
	rows, err := m.Select(ctx, table, filter, nil)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (m *Memory) findByKeys(table string, row Row, keys []string) Row {
	if len(keys) == 0 {
		return nil
	}
	for _, candidate := range m.tables[table] {
		match := true
		for _, k := range keys {
			if !valueEq(candidate[k], row[k]) {
				match = false
				break
			}
		}
		if match {
			return candidate
		}
	}
	return nil
}

func withID(row Row) Row {
	if _, ok := row["id"]; !ok {
		row["id"] = uuid.NewString()
	}
	return row
}

func matches(row Row, filter Filter) bool {
	for _, cond := range filter {
		switch cond.Op {
		case OpEq:
			if !valueEq(row[cond.Column], cond.Value) {
				return false
			}
		case OpIn:
			found := false
			for _, v := range cond.Values {
				if valueEq(row[cond.Column], v) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case OpIsNull:
			if v, ok := row[cond.Column]; ok && v != nil {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// valueEq compares loosely so that e.g. int(4) stored through JSON as
// float64(4) still matches.
func valueEq(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func less(a, b any) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Before(bt)
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}

func cloneRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}
