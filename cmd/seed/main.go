package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/leadboard/leadboard/config"
	"github.com/leadboard/leadboard/pkg/store"
	"github.com/leadboard/leadboard/pkg/testdata"
)

func main() {
	userID := flag.String("user", "", "user id to seed data for (required)")
	count := flag.Int("count", 200, "number of leads to generate")
	country := flag.String("country", "CO", "country code for generated leads")
	flag.Parse()

	if *userID == "" {
		log.Fatal("missing required -user flag")
	}

	cfg := config.Load()
	db, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stageNames, err := testdata.SeedStages(ctx, db, *userID)
	if err != nil {
		log.Fatalf("failed to seed stages: %v", err)
	}
	log.Printf("seeded %d stages", len(stageNames))

	genCfg := testdata.GeneratorConfig{
		UserID:        *userID,
		Count:         *count,
		Country:       *country,
		EmailChance:   0.7,
		PhoneChance:   0.9,
		WebsiteChance: 0.5,
	}
	if err := testdata.SeedLeads(ctx, db, genCfg, stageNames); err != nil {
		log.Fatalf("failed to seed leads: %v", err)
	}
	log.Printf("seeded %d leads for user %s", *count, *userID)
}
