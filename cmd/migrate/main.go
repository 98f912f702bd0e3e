package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"filmbox/config"
	"filmbox/pkg/database"
)

const usage = `
Filmbox - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Run GORM migrations
  status      Show database connection status
  reset       Drop all tables and re-run migrations (DANGEROUS)

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go status
  go run cmd/migrate/main.go reset
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	database.Connect(cfg)
	defer database.Close()

	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		showStatus()
	case "reset":
		runReset()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp() {
	log.Println("Running migrations...")

	if err := database.Migrate(); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migrations completed successfully")
}

func showStatus() {
	log.Println("Checking database status...")

	if err := database.HealthCheck(); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	tables := []string{"upload_sessions"}
	for _, table := range tables {
		exists, err := database.TableExists(table)
		if err != nil {
			log.Printf("Error checking table %s: %v", table, err)
			continue
		}
		if exists {
			log.Printf("Table %-20s exists", table)
		} else {
			log.Printf("Table %-20s does not exist", table)
		}
	}
}

func runReset() {
	log.Println("WARNING: This will DROP all tables and re-run migrations!")

	if err := database.Reset(); err != nil {
		log.Fatalf("Reset failed: %v", err)
	}

	log.Println("Database reset completed")
}
