package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"route-pricing/internal/app"
	"route-pricing/internal/config"
	"route-pricing/pkg/database"
	"route-pricing/pkg/logging"
	"route-pricing/pkg/metrics"
)

const schemaTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// migration is one numbered SQL file, e.g. 001_create_schema.up.sql
type migration struct {
	Version string
	Path    string
}

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	dir := flag.String("dir", "migrations", "Directory containing NNN_name.up.sql / .down.sql files")
	steps := flag.Int("steps", 0, "Number of migrations to apply, 0 means all (down defaults to 1)")
	flag.Parse()

	if *direction != "up" && *direction != "down" {
		fmt.Fprintf(os.Stderr, "Invalid direction %q, expected up or down\n", *direction)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "route-pricing-migrate")
	ctx := context.Background()

	// DDL may outlast the per-query budget
	dbConfig := app.DatabaseConfig(cfg)
	dbConfig.QueryTimeout = 0

	db, err := database.NewPostgresDB(dbConfig, logger, metrics.NewCollector("route_pricing_migrate"))
	if err != nil {
		logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "migrate_init", schemaTable); err != nil {
		logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to create schema_migrations", logging.Fields{}, err)
	}

	var versions []string
	if err := db.SelectContext(ctx, "migrate_applied", &versions, "SELECT version FROM schema_migrations"); err != nil {
		logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to read applied migrations", logging.Fields{}, err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	files, err := filepath.Glob(filepath.Join(*dir, "*."+*direction+".sql"))
	if err != nil {
		logger.Fatal(ctx, "[MIGRATE_ERROR] Failed to list migrations", logging.Fields{"dir": *dir}, err)
	}

	pending := plan(files, applied, *direction, *steps)
	if len(pending) == 0 {
		fmt.Println("No migrations to run")
		return
	}

	for _, m := range pending {
		fmt.Printf("Running migration: %s\n", m.Path)
		if err := apply(ctx, db, m, *direction); err != nil {
			logger.Fatal(ctx, "[MIGRATE_ERROR] Migration failed", logging.Fields{
				"version": m.Version,
				"path":    m.Path,
			}, err)
		}
		logger.Info(ctx, "[MIGRATE] Migration applied", logging.Fields{
			"version":   m.Version,
			"direction": *direction,
		})
	}

	fmt.Println("Migration completed successfully")
}

// plan selects the migrations to run: unapplied ones in ascending order for
// up, applied ones in descending order for down
func plan(files []string, applied map[string]bool, direction string, steps int) []migration {
	suffix := "." + direction + ".sql"

	var out []migration
	for _, f := range files {
		version := strings.TrimSuffix(filepath.Base(f), suffix)
		if applied[version] == (direction == "up") {
			continue
		}
		out = append(out, migration{Version: version, Path: f})
	}

	sort.Slice(out, func(i, j int) bool {
		if direction == "down" {
			return out[i].Version > out[j].Version
		}
		return out[i].Version < out[j].Version
	})

	if direction == "down" && steps == 0 {
		steps = 1
	}
	if steps > 0 && len(out) > steps {
		out = out[:steps]
	}
	return out
}

// apply runs one file and records it in a single transaction
func apply(ctx context.Context, db *database.PostgresDB, m migration, direction string) error {
	content, err := os.ReadFile(m.Path)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}

	record := "INSERT INTO schema_migrations (version) VALUES ($1)"
	if direction == "down" {
		record = "DELETE FROM schema_migrations WHERE version = $1"
	}
	if _, err := tx.ExecContext(ctx, record, m.Version); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
