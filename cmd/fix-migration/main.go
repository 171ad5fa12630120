// Package main is a repair tool for dirty migration state. Dirty state occurs
// when the golang-migrate runner marks a version as in-progress but the
// process was interrupted before it completed. This tool clears the dirty
// flag in schema_migrations so the runner can retry cleanly on the next
// server startup instead of failing with a "Dirty database version" error.
package main

import (
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
	"github.com/portr-admin/portr-admin/internal/config"
	"github.com/portr-admin/portr-admin/internal/db"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to read migration state: %v", err)
	}
	if !dirty {
		fmt.Printf("Schema version %d is clean, nothing to do\n", version)
		return
	}

	if _, err := database.Exec(`UPDATE schema_migrations SET dirty = false WHERE version = $1`, version); err != nil {
		log.Fatalf("Failed to clear dirty flag: %v", err)
	}
	fmt.Printf("Cleared dirty flag for schema version %d\n", version)
}
