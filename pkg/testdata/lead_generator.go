// Package testdata generates realistic lead and stage fixtures for local
// development and demos.
package testdata

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/leadboard/leadboard/pkg/schema"
	"github.com/leadboard/leadboard/pkg/store"
)

// GeneratorConfig configures lead generation parameters
type GeneratorConfig struct {
	UserID        string
	Count         int
	Country       string
	EmailChance   float64 // 0.0-1.0 probability of having an email
	PhoneChance   float64
	WebsiteChance float64
}

// DefaultStages is the pipeline every fresh user starts with
var DefaultStages = []struct {
	Name  string
	Label string
	Color string
}{
	{"new", "New", "default"},
	{"contacted", "Contacted", "blue"},
	{"qualified", "Qualified", "purple"},
	{"proposal", "Proposal", "orange"},
	{"won", "Won", "green"},
	{"lost", "Lost", "red"},
}

var categories = []string{
	"Restaurant", "Tattoo Studio", "Beauty Salon", "Barber Shop",
	"Gym", "Spa", "Nail Salon", "Dental Clinic", "Pharmacy", "Bakery",
}

// businessName builds a plausible business name from a category
func businessName(category string) string {
	return fmt.Sprintf("%s %s", gofakeit.LastName(), category)
}

// GenerateLead produces a single fake lead row for the user
func GenerateLead(cfg GeneratorConfig, stageNames []string) store.Row {
	category := categories[rand.Intn(len(categories))]

	row := store.Row{
		"id":         uuid.New().String(),
		"user_id":    cfg.UserID,
		"title":      businessName(category),
		"address":    gofakeit.Street() + ", " + gofakeit.City(),
		"category":   category,
		"country":    cfg.Country,
		"status":     stageNames[rand.Intn(len(stageNames))],
		"rating":     rand.Intn(6),
		"metadata":   map[string]any{},
		"created_at": gofakeit.DateRange(time.Now().AddDate(0, -6, 0), time.Now()),
	}

	if rand.Float64() < cfg.EmailChance {
		row["email"] = gofakeit.Email()
	}
	if rand.Float64() < cfg.PhoneChance {
		row["phone_number"] = gofakeit.Phone()
	}
	if rand.Float64() < cfg.WebsiteChance {
		row["website"] = "https://" + gofakeit.DomainName()
	}
	return row
}

// SeedStages inserts the default pipeline for the user
func SeedStages(ctx context.Context, st store.Store, userID string) ([]string, error) {
	rows := make([]store.Row, len(DefaultStages))
	names := make([]string, len(DefaultStages))
	for i, s := range DefaultStages {
		names[i] = s.Name
		rows[i] = store.Row{
			"id":          uuid.New().String(),
			"user_id":     userID,
			"name":        s.Name,
			"label":       s.Label,
			"color":       s.Color,
			"order_index": i,
		}
	}
	if err := st.Insert(ctx, "lead_stages", rows); err != nil {
		return nil, fmt.Errorf("failed to seed stages: %w", err)
	}
	return names, nil
}

// SeedLeads inserts cfg.Count fake leads spread over the given stages
func SeedLeads(ctx context.Context, st store.Store, cfg GeneratorConfig, stageNames []string) error {
	rows := make([]store.Row, cfg.Count)
	for i := range rows {
		rows[i] = GenerateLead(cfg, stageNames)
	}
	if err := st.Insert(ctx, "leads", rows); err != nil {
		return fmt.Errorf("failed to seed leads: %w", err)
	}
	return nil
}

// NormalizedLead is GenerateLead followed by the ingestion-boundary
// normalization applied to imported records
func NormalizedLead(cfg GeneratorConfig, stageNames []string, phoneRegion string) store.Row {
	return schema.NormalizeRow(GenerateLead(cfg, stageNames), phoneRegion)
}
