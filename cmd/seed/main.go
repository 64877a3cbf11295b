// Package main seeds the locations catalog and the blocked-user list for
// local development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/plusmaps/atlas/internal/app/domain/location"
	"github.com/plusmaps/atlas/internal/platform/migrations"
)

const upsertLocation = `
INSERT INTO locations (id, name, country, state, description, svg_link, rating)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    name        = EXCLUDED.name,
    country     = EXCLUDED.country,
    state       = EXCLUDED.state,
    description = EXCLUDED.description,
    svg_link    = EXCLUDED.svg_link,
    rating      = EXCLUDED.rating`

const blockUser = `
INSERT INTO blocked_users (userid) VALUES ($1)
ON CONFLICT (userid) DO NOTHING`

func main() {
	var (
		file    = flag.String("file", "seed/locations.json", "Path to a JSON array of locations")
		blocked = flag.String("blocked", "", "Comma-separated user ids to insert into blocked_users")
		envFile = flag.String("env", "", "Optional .env file providing DATABASE_URL")
		migrate = flag.Bool("migrate", false, "Apply migrations before seeding")
	)
	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("load env (%s): %v", *envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL not set")
	}

	ctx := context.Background()

	if *migrate {
		if err := migrations.Apply(dsn, nil); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	locs, err := readLocations(*file)
	if err != nil {
		log.Fatalf("read locations: %v", err)
	}

	for _, loc := range locs {
		if loc.ID == "" || loc.Name == "" {
			log.Fatalf("location needs id and name: %+v", loc)
		}
		if _, err := db.ExecContext(ctx, upsertLocation,
			loc.ID, loc.Name, loc.Country, loc.State, loc.Description, loc.SVGLink, loc.Rating); err != nil {
			log.Fatalf("insert %s: %v", loc.ID, err)
		}
	}
	fmt.Printf("seeded %d locations\n", len(locs))

	users := splitIDs(*blocked)
	for _, userID := range users {
		if _, err := db.ExecContext(ctx, blockUser, userID); err != nil {
			log.Fatalf("block %s: %v", userID, err)
		}
	}
	if len(users) > 0 {
		fmt.Printf("blocked %d users\n", len(users))
	}
}

func readLocations(path string) ([]location.Location, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var locs []location.Location
	if err := json.Unmarshal(data, &locs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return locs, nil
}

func splitIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
