// Package main is a diagnostic tool for checking database connectivity and
// inspecting live data. It connects using the same configuration as the
// server, queries the users, teams and connections tables, and prints a
// summary to stdout. The binary exits non-zero on any failure so it can gate
// deployments on a reachable, migrated database.
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
		log.Fatalf("Failed to connect: %v", err)
	}
	defer database.Close()

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		log.Fatalf("Failed to read migration version: %v", err)
	}
	fmt.Printf("Schema version: %d (dirty: %v)\n", version, dirty)

	for _, table := range []string{"users", "teams", "team_users", "connections", "sessions"} {
		var count int
		if err := database.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			log.Fatalf("Failed to count %s: %v", table, err)
		}
		fmt.Printf("%-12s %d\n", table, count)
	}

	fmt.Println("Database OK")
}
