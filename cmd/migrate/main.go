package main

// Run database migrations:
//   go run ./cmd/migrate            # apply all
//   go run ./cmd/migrate -cmd down  # roll back one
//   go run ./cmd/migrate -cmd status
//   go run ./cmd/migrate -cmd to -version 1
//   go run ./cmd/migrate -cmd version

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"tender-evaluator/internal/shared/config"
	"tender-evaluator/internal/shared/storage/db"
)

func main() {
	command := flag.String("cmd", "up", "migration command: up, down, to, status or version")
	target := flag.Int64("version", -1, "target schema version for -cmd to")
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFor(db.ProfileMigrate)
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	switch *command {
	case "up":
		err = db.RunMigrations(ctx, sqlDB)
	case "down":
		err = db.RollbackMigration(ctx, sqlDB)
	case "to":
		if *target < 0 {
			log.Printf("-version is required with -cmd to")
			os.Exit(2)
		}
		err = db.MigrateTo(ctx, sqlDB, *target)
	case "status":
		err = db.MigrationStatus(ctx, sqlDB)
	case "version":
		var current, latest int64
		current, latest, err = db.SchemaVersion(sqlDB)
		if err == nil {
			fmt.Printf("schema version %d (latest embedded %d)\n", current, latest)
		}
	default:
		log.Printf("unknown command %q", *command)
		os.Exit(2)
	}
	if err != nil {
		log.Printf("migrate %s failed: %v", *command, err)
		os.Exit(1)
	}
}
