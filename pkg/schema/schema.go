// Package schema holds the central entity definitions and validation helpers
// shared by every other component. It has no side effects and no collaborators.
package schema

import (
	"fmt"
	"strings"
	"time"
)

// Predefined target fields for import mapping, plus the two sentinels.
// TargetIgnore drops a source key entirely; TargetMetadata routes it into the
// lead's open metadata bucket.
const (
	TargetIgnore   = "ignore"
	TargetMetadata = "metadata"
)

// PredefinedFields is the canonical list of first-class mapping targets
var PredefinedFields = []string{
	"title",
	"phone_number",
	"email",
	"address",
	"website",
	"category",
	"rating",
	"reviews_count",
	"owner_name",
	"country",
}

// StandardColumns is the fixed table-column universe; custom fields extend it
// with a meta_<key> identifier each
var StandardColumns = []string{
	"title",
	"status",
	"phone_number",
	"email",
	"address",
	"category",
	"owner_name",
	"agent_assigned",
	"country",
	"city",
	"rating",
	"website",
	"created_at",
}

// DefaultVisibleColumns is the first-time-user visibility set
var DefaultVisibleColumns = []string{
	"title", "status", "phone_number", "email", "owner_name", "agent_assigned", "country", "city",
}

// IsPredefinedField reports whether name is a first-class mapping target
func IsPredefinedField(name string) bool {
	for _, f := range PredefinedFields {
		if f == name {
			return true
		}
	}
	return false
}

// Lead is a prospective customer record, the primary entity of the system.
// Metadata is always non-nil after normalization.
type Lead struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	Title         string         `json:"title"`
	Status        string         `json:"status"`
	PhoneNumber   string         `json:"phone_number"`
	Email         string         `json:"email"`
	Address       string         `json:"address"`
	Category      string         `json:"category"`
	OwnerName     string         `json:"owner_name"`
	Country       string         `json:"country"`
	City          string         `json:"city"`
	Website       string         `json:"website"`
	Rating        int            `json:"rating"`
	ReviewsCount  int            `json:"reviews_count"`
	AgentAssigned *string        `json:"agent_assigned"`
	Synced        bool           `json:"synced"`
	CreatedAt     time.Time      `json:"created_at"`
	Metadata      map[string]any `json:"metadata"`
}

// Stage is a named pipeline step. Name is a stable external identifier:
// leads reference a stage by Name, not by ID, so renaming a stage is a
// migration-like operation that must cascade to every referencing lead.
type Stage struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Label      string `json:"label"`
	Color      string `json:"color"`
	OrderIndex int    `json:"order_index"`
}

// FieldType enumerates the value types a custom field can carry
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldNumber      FieldType = "number"
	FieldBoolean     FieldType = "boolean"
	FieldDate        FieldType = "date"
	FieldDatetime    FieldType = "datetime"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multi_select"
	FieldRating      FieldType = "rating"
	FieldFile        FieldType = "file"
	FieldCurrency    FieldType = "currency"
	FieldEmail       FieldType = "email"
	FieldURL         FieldType = "url"
	FieldPhone       FieldType = "phone"
	FieldFullName    FieldType = "full_name"
	FieldAddress     FieldType = "address"
)

// FieldTypes lists every valid custom field type
var FieldTypes = []FieldType{
	FieldText, FieldNumber, FieldBoolean, FieldDate, FieldDatetime,
	FieldSelect, FieldMultiSelect, FieldRating, FieldFile, FieldCurrency,
	FieldEmail, FieldURL, FieldPhone, FieldFullName, FieldAddress,
}

// Valid reports whether t is a known field type
func (t FieldType) Valid() bool {
	for _, ft := range FieldTypes {
		if ft == t {
			return true
		}
	}
	return false
}

// CustomField is a user-defined schema extension. Values live inside
// Lead.Metadata under Key; the table addresses it as meta_<Key>.
type CustomField struct {
	Key   string    `json:"key"`
	Label string    `json:"label"`
	Type  FieldType `json:"type"`
}

// Column returns the column identifier for the field
func (f CustomField) Column() string {
	return MetaColumn(f.Key)
}

// MetaColumn derives the column identifier for a custom field key
func MetaColumn(key string) string {
	return "meta_" + key
}

// ColumnConfig is the per-user persisted table state. Every identifier in
// VisibleColumns also appears in ColumnOrder; Extra carries any unrelated
// keys already stored in the config blob, preserved verbatim on save.
type ColumnConfig struct {
	VisibleColumns []string       `json:"visible_columns"`
	CustomFields   []CustomField  `json:"custom_fields"`
	ColumnOrder    []string       `json:"column_order"`
	Extra          map[string]any `json:"-"`
}

// DefaultColumnConfig returns the first-time-user configuration
func DefaultColumnConfig() *ColumnConfig {
	return &ColumnConfig{
		VisibleColumns: append([]string(nil), DefaultVisibleColumns...),
		ColumnOrder:    append([]string(nil), StandardColumns...),
		Extra:          map[string]any{},
	}
}

// Slugify lower-cases a label and collapses whitespace runs to single
// underscores, producing stage names and custom field keys.
func Slugify(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(label))), "_")
}

// ColumnUniverse is the set of identifiers currently valid in a column
// order: the standard columns plus meta_<key> for each custom field.
func ColumnUniverse(customFields []CustomField) []string {
	universe := append([]string(nil), StandardColumns...)
	for _, cf := range customFields {
		universe = append(universe, cf.Column())
	}
	return universe
}

// ReconcileColumnOrder keeps the entries of order that are still valid, in
// their existing relative order, then appends any valid identifiers not yet
// present. Identifiers matching neither a standard column nor a current
// custom field are silently dropped. Idempotent.
func ReconcileColumnOrder(order []string, customFields []CustomField) []string {
	universe := ColumnUniverse(customFields)
	valid := make(map[string]bool, len(universe))
	for _, id := range universe {
		valid[id] = true
	}

	out := make([]string, 0, len(universe))
	seen := make(map[string]bool, len(universe))
	for _, id := range order {
		if valid[id] && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	for _, id := range universe {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// CoerceTitle resolves the historically duck-typed title value (a plain
// string, or an object carrying a nested "title") to a string, once, at the
// ingestion boundary.
func CoerceTitle(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		if nested, ok := t["title"]; ok {
			return CoerceTitle(nested)
		}
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
