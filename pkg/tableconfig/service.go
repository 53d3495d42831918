// Package tableconfig persists per-user table configuration: visible
// columns, custom fields and column order, stored as one record per
// (user, table). The free-form config blob is always read-merge-written so
// keys owned by other features survive every save.
package tableconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/leadboard/leadboard/pkg/schema"
	"github.com/leadboard/leadboard/pkg/store"
)

const configTable = "user_table_config"

// Service handles per-user table configuration
type Service struct {
	store  store.Store
	cache  domain.CacheRepository
	logger logger.Logger
}

// NewService creates a new table configuration service
func NewService(st store.Store, cache domain.CacheRepository, log logger.Logger) *Service {
	return &Service{store: st, cache: cache, logger: log}
}

// Patch is a partial configuration update; nil slices leave the
// corresponding part unchanged.
type Patch struct {
	VisibleColumns []string
	CustomFields   []schema.CustomField
	ColumnOrder    []string
}

// Load returns the user's configuration for a table, reconciled against the
// current custom field set. A missing record yields the defaults.
func (s *Service) Load(ctx context.Context, userID, tableName string) (*schema.ColumnConfig, error) {
	if cached := s.fromCache(ctx, userID, tableName); cached != nil {
		return cached, nil
	}

	rows, err := s.store.Select(ctx, configTable, store.Where(
		store.Eq("user_id", userID),
		store.Eq("table_name", tableName),
	), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load table config: %w", err)
	}

	cfg := schema.DefaultColumnConfig()
	if len(rows) > 0 {
		cfg = parseConfigRow(rows[0])
	}

	cfg.ColumnOrder = schema.ReconcileColumnOrder(cfg.ColumnOrder, cfg.CustomFields)
	cfg.VisibleColumns = restrictTo(cfg.VisibleColumns, cfg.ColumnOrder)

	s.toCache(ctx, userID, tableName, cfg)
	return cfg, nil
}

// Save applies a partial patch on top of the stored configuration. The
// config blob is fetched and merged first so unrelated keys are preserved;
// there is no whole-blob overwrite path.
func (s *Service) Save(ctx context.Context, userID, tableName string, patch Patch) error {
	current, err := s.Load(ctx, userID, tableName)
	if err != nil {
		return err
	}

	if patch.VisibleColumns != nil {
		current.VisibleColumns = patch.VisibleColumns
	}
	if patch.CustomFields != nil {
		current.CustomFields = patch.CustomFields
	}
	if patch.ColumnOrder != nil {
		current.ColumnOrder = patch.ColumnOrder
	}
	current.ColumnOrder = schema.ReconcileColumnOrder(current.ColumnOrder, current.CustomFields)

	configBlob := make(map[string]any, len(current.Extra)+2)
	for k, v := range current.Extra {
		configBlob[k] = v
	}
	configBlob["column_order"] = toAnySlice(current.ColumnOrder)
	configBlob["last_updated_by"] = "leadboard"

	row := store.Row{
		"user_id":         userID,
		"table_name":      tableName,
		"visible_columns": toAnySlice(current.VisibleColumns),
		"custom_fields":   customFieldsToAny(current.CustomFields),
		"config":          configBlob,
		"updated_at":      time.Now().UTC(),
	}

	if err := s.store.Upsert(ctx, configTable, []store.Row{row}, []string{"user_id", "table_name"}); err != nil {
		return fmt.Errorf("failed to save table config: %w", err)
	}

	s.invalidate(ctx, userID, tableName)
	return nil
}

// AddCustomField creates a custom field and appends its column to the end
// of the order. The new column is not made visible automatically.
func (s *Service) AddCustomField(ctx context.Context, userID, tableName, label string, fieldType schema.FieldType) (*schema.CustomField, error) {
	if label == "" {
		return nil, domain.NewValidationError("field name is required")
	}
	if fieldType == "" {
		fieldType = schema.FieldText
	}
	if !fieldType.Valid() {
		return nil, domain.NewValidationError("unknown field type")
	}

	cfg, err := s.Load(ctx, userID, tableName)
	if err != nil {
		return nil, err
	}

	key := schema.Slugify(label)
	for _, f := range cfg.CustomFields {
		if f.Key == key {
			return nil, domain.NewConflictError("a field with this name already exists")
		}
	}

	field := schema.CustomField{Key: key, Label: label, Type: fieldType}
	fields := append(cfg.CustomFields, field)
	order := append(cfg.ColumnOrder, field.Column())

	if err := s.Save(ctx, userID, tableName, Patch{CustomFields: fields, ColumnOrder: order}); err != nil {
		return nil, err
	}
	return &field, nil
}

// RemoveCustomField deletes a custom field, purging its column from both
// the visibility set and the order. Values already stored under the key in
// lead metadata are left untouched.
func (s *Service) RemoveCustomField(ctx context.Context, userID, tableName, key string) error {
	cfg, err := s.Load(ctx, userID, tableName)
	if err != nil {
		return err
	}

	fields := make([]schema.CustomField, 0, len(cfg.CustomFields))
	found := false
	for _, f := range cfg.CustomFields {
		if f.Key == key {
			found = true
			continue
		}
		fields = append(fields, f)
	}
	if !found {
		return domain.NewNotFoundError("custom field")
	}

	column := schema.MetaColumn(key)
	visible := make([]string, 0, len(cfg.VisibleColumns))
	for _, c := range cfg.VisibleColumns {
		if c != column {
			visible = append(visible, c)
		}
	}
	order := make([]string, 0, len(cfg.ColumnOrder))
	for _, c := range cfg.ColumnOrder {
		if c != column {
			order = append(order, c)
		}
	}

	return s.Save(ctx, userID, tableName, Patch{
		VisibleColumns: visible,
		CustomFields:   fields,
		ColumnOrder:    order,
	})
}

func parseConfigRow(row store.Row) *schema.ColumnConfig {
	cfg := schema.DefaultColumnConfig()

	if visible := toStringSlice(row["visible_columns"]); visible != nil {
		cfg.VisibleColumns = visible
	}
	if fields := parseCustomFields(row["custom_fields"]); fields != nil {
		cfg.CustomFields = fields
	}

	if blob, ok := row["config"].(map[string]any); ok {
		cfg.Extra = make(map[string]any, len(blob))
		for k, v := range blob {
			if k == "column_order" || k == "last_updated_by" {
				continue
			}
			cfg.Extra[k] = v
		}
		if order := toStringSlice(blob["column_order"]); order != nil {
			cfg.ColumnOrder = order
		}
	}

	return cfg
}

func parseCustomFields(v any) []schema.CustomField {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	fields := make([]schema.CustomField, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		field := schema.CustomField{Type: schema.FieldText}
		if key, ok := m["key"].(string); ok {
			field.Key = key
		}
		if label, ok := m["label"].(string); ok {
			field.Label = label
		}
		if ft, ok := m["type"].(string); ok && schema.FieldType(ft).Valid() {
			field.Type = schema.FieldType(ft)
		}
		if field.Key != "" {
			fields = append(fields, field)
		}
	}
	return fields
}

func customFieldsToAny(fields []schema.CustomField) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = map[string]any{"key": f.Key, "label": f.Label, "type": string(f.Type)}
	}
	return out
}

func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

func toStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func restrictTo(columns, universe []string) []string {
	allowed := make(map[string]bool, len(universe))
	for _, c := range universe {
		allowed[c] = true
	}
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if allowed[c] {
			out = append(out, c)
		}
	}
	return out
}

func (s *Service) cacheKey(userID, tableName string) string {
	return fmt.Sprintf("tablecfg:%s:%s", userID, tableName)
}

func (s *Service) fromCache(ctx context.Context, userID, tableName string) *schema.ColumnConfig {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, s.cacheKey(userID, tableName))
	if err != nil || raw == "" {
		return nil
	}
	var cached cachedConfig
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil
	}
	return &schema.ColumnConfig{
		VisibleColumns: cached.VisibleColumns,
		CustomFields:   cached.CustomFields,
		ColumnOrder:    cached.ColumnOrder,
		Extra:          cached.Extra,
	}
}

func (s *Service) toCache(ctx context.Context, userID, tableName string, cfg *schema.ColumnConfig) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(cachedConfig{
		VisibleColumns: cfg.VisibleColumns,
		CustomFields:   cfg.CustomFields,
		ColumnOrder:    cfg.ColumnOrder,
		Extra:          cfg.Extra,
	})
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(userID, tableName), payload, 10*time.Minute); err != nil {
		s.logger.Warn("failed to cache table config", "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, userID, tableName string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(userID, tableName)); err != nil {
		s.logger.Warn("failed to invalidate table config cache", "error", err)
	}
}

type cachedConfig struct {
	VisibleColumns []string             `json:"visible_columns"`
	CustomFields   []schema.CustomField `json:"custom_fields"`
	ColumnOrder    []string             `json:"column_order"`
	Extra          map[string]any       `json:"extra"`
}
