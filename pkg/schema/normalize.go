package schema

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nyaruka/phonenumbers"
)

// NormalizeRow resolves the shape ambiguities a raw lead row may carry
// before it enters the system: title coerced to a plain string, metadata
// always present, phone formatted when parseable. The input map is mutated
// and returned.
func NormalizeRow(row map[string]any, phoneRegion string) map[string]any {
	if row == nil {
		row = map[string]any{}
	}
	if title, ok := row["title"]; ok {
		row["title"] = CoerceTitle(title)
	}
	if _, ok := row["metadata"]; !ok || row["metadata"] == nil {
		row["metadata"] = map[string]any{}
	}
	if phone, ok := row["phone_number"].(string); ok && phone != "" {
		row["phone_number"] = NormalizePhone(phone, phoneRegion)
	}
	return row
}

// NormalizePhone formats a phone number to E.164 when it parses as a valid
// number for the given region; anything else passes through unchanged.
func NormalizePhone(raw, region string) string {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// LeadFromRow builds a Lead from a store row, tolerating the loose typing
// of jsonb round-trips (numbers as float64, timestamps as strings).
func LeadFromRow(row map[string]any) Lead {
	lead := Lead{
		ID:           asString(row["id"]),
		UserID:       asString(row["user_id"]),
		Title:        CoerceTitle(row["title"]),
		Status:       asString(row["status"]),
		PhoneNumber:  asString(row["phone_number"]),
		Email:        asString(row["email"]),
		Address:      asString(row["address"]),
		Category:     asString(row["category"]),
		OwnerName:    asString(row["owner_name"]),
		Country:      asString(row["country"]),
		City:         asString(row["city"]),
		Website:      asString(row["website"]),
		Rating:       asInt(row["rating"]),
		ReviewsCount: asInt(row["reviews_count"]),
		Synced:       asBool(row["synced"]),
		CreatedAt:    asTime(row["created_at"]),
		Metadata:     asMetadata(row["metadata"]),
	}
	if agent := asString(row["agent_assigned"]); agent != "" {
		lead.AgentAssigned = &agent
	}
	return lead
}

// Row converts the lead back to its store representation
func (l Lead) Row() map[string]any {
	row := map[string]any{
		"id":            l.ID,
		"user_id":       l.UserID,
		"title":         l.Title,
		"status":        l.Status,
		"phone_number":  l.PhoneNumber,
		"email":         l.Email,
		"address":       l.Address,
		"category":      l.Category,
		"owner_name":    l.OwnerName,
		"country":       l.Country,
		"city":          l.City,
		"website":       l.Website,
		"rating":        l.Rating,
		"reviews_count": l.ReviewsCount,
		"synced":        l.Synced,
		"created_at":    l.CreatedAt,
		"metadata":      l.Metadata,
	}
	if row["metadata"] == nil {
		row["metadata"] = map[string]any{}
	}
	if l.AgentAssigned != nil {
		row["agent_assigned"] = *l.AgentAssigned
	} else {
		row["agent_assigned"] = nil
	}
	return row
}

// StageFromRow builds a Stage from a store row
func StageFromRow(row map[string]any) Stage {
	return Stage{
		ID:         asString(row["id"]),
		UserID:     asString(row["user_id"]),
		Name:       asString(row["name"]),
		Label:      asString(row["label"]),
		Color:      asString(row["color"]),
		OrderIndex: asInt(row["order_index"]),
	}
}

// Row converts the stage back to its store representation
func (s Stage) Row() map[string]any {
	return map[string]any{
		"id":          s.ID,
		"user_id":     s.UserID,
		"name":        s.Name,
		"label":       s.Label,
		"color":       s.Color,
		"order_index": s.OrderIndex,
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "t"
	default:
		return false
	}
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
		if parsed, err := time.Parse("2006-01-02 15:04:05", t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func asMetadata(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
