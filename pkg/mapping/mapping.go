// Package mapping turns heterogeneous flat records into normalized
// lead-shaped payloads: a heuristic inference step proposes a source-key to
// target-field mapping, the caller may override it, and a pure apply step
// produces the output used for both the preview and the final import.
package mapping

import (
	"errors"
	"strings"

	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/schema"
)

// PreviewSize bounds how many records the live preview processes
const PreviewSize = 3

// ErrNoRecords is returned when a mapping session is opened with no input
var ErrNoRecords = errors.New("no records to map")

// Mapping assigns each source key a target field: a predefined field, a
// custom field key, the metadata bucket, or ignore. It is transient,
// rebuilt per import session.
type Mapping map[string]string

// Infer proposes a mapping for the given source keys. First matching rule
// wins; inference never chooses ignore, metadata is the fallback.
func Infer(sourceKeys []string) Mapping {
	m := make(Mapping, len(sourceKeys))
	for _, key := range sourceKeys {
		m[key] = inferTarget(key)
	}
	return m
}

func inferTarget(key string) string {
	lower := strings.ToLower(key)
	switch {
	case lower == "title" || lower == "name":
		return "title"
	case strings.Contains(lower, "phone"):
		return "phone_number"
	case strings.Contains(lower, "mail"):
		return "email"
	case lower == "address" || lower == "location":
		return "address"
	case lower == "website" || lower == "url":
		return "website"
	case lower == "category" || lower == "type":
		return "category"
	case lower == "rating":
		return "rating"
	case strings.Contains(lower, "review"):
		return "reviews_count"
	default:
		return schema.TargetMetadata
	}
}

// Apply maps every record through the mapping. Each output record starts
// with an empty metadata bucket, so records with no overflow fields still
// carry metadata == {}. Source keys absent from the mapping are ignored.
func (m Mapping) Apply(records []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, record := range records {
		mapped := map[string]any{"metadata": map[string]any{}}
		meta := mapped["metadata"].(map[string]any)

		for sourceKey, target := range m {
			value, ok := record[sourceKey]
			if !ok || target == schema.TargetIgnore {
				continue
			}
			switch {
			case schema.IsPredefinedField(target):
				mapped[target] = value
			case target == schema.TargetMetadata:
				meta[sourceKey] = value
			default:
				meta[target] = value
			}
		}
		out = append(out, mapped)
	}
	return out
}

// Preview applies the mapping to a bounded prefix of the input
func (m Mapping) Preview(records []map[string]any) []map[string]any {
	if len(records) > PreviewSize {
		records = records[:PreviewSize]
	}
	return m.Apply(records)
}

// Session is one interactive import-mapping session: the inferred mapping,
// the caller's overrides, and any custom fields created inline.
type Session struct {
	records  []map[string]any
	mapping  Mapping
	created  []schema.CustomField
	existing map[string]bool
}

// NewSession infers an initial mapping from the first record's key set.
// existingFields are the user's current custom fields, guarded against key
// collisions when new fields are created inline.
func NewSession(records []map[string]any, existingFields []schema.CustomField) (*Session, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	keys := make([]string, 0, len(records[0]))
	for k := range records[0] {
		keys = append(keys, k)
	}

	existing := make(map[string]bool, len(existingFields))
	for _, f := range existingFields {
		existing[f.Key] = true
	}

	return &Session{
		records:  records,
		mapping:  Infer(keys),
		existing: existing,
	}, nil
}

// Mapping returns a copy of the session's current mapping
func (s *Session) Mapping() Mapping {
	out := make(Mapping, len(s.mapping))
	for k, v := range s.mapping {
		out[k] = v
	}
	return out
}

// Override reassigns a source key to a new target
func (s *Session) Override(sourceKey, target string) {
	s.mapping[sourceKey] = target
}

// CreatedFields returns the custom fields created during this session
func (s *Session) CreatedFields() []schema.CustomField {
	return append([]schema.CustomField(nil), s.created...)
}

// AddCustomField creates a custom field inline from a user-entered label.
// A duplicate key is rejected without touching the existing field set.
func (s *Session) AddCustomField(label string, fieldType schema.FieldType) (*schema.CustomField, error) {
	if strings.TrimSpace(label) == "" {
		return nil, domain.NewValidationError("field name is required")
	}
	if fieldType == "" {
		fieldType = schema.FieldText
	}
	if !fieldType.Valid() {
		return nil, domain.NewValidationError("unknown field type")
	}

	key := schema.Slugify(label)
	if s.existing[key] {
		return nil, domain.NewConflictError("a field with this name already exists")
	}

	field := schema.CustomField{Key: key, Label: label, Type: fieldType}
	s.existing[key] = true
	s.created = append(s.created, field)
	return &field, nil
}

// Preview applies the current mapping to the session's preview prefix
func (s *Session) Preview() []map[string]any {
	return s.mapping.Preview(s.records)
}

// Confirm applies the current mapping to the full input
func (s *Session) Confirm() []map[string]any {
	return s.mapping.Apply(s.records)
}
