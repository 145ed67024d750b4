package main

import (
	"log"
	"os"

	"github.com/tutorly/tutorly-backend/internal/account"
	"github.com/tutorly/tutorly-backend/internal/catalog"
	"github.com/tutorly/tutorly-backend/internal/config"
	"github.com/tutorly/tutorly-backend/internal/db"
	"github.com/tutorly/tutorly-backend/internal/scheduling"
)

// Seeds the status and role catalogs. Safe to run repeatedly.
func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg := config.MustLoad(configPath)

	conn, err := db.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := account.Init(conn); err != nil {
		log.Fatalf("Failed to init accounts module: %v", err)
	}
	if err := catalog.Init(conn); err != nil {
		log.Fatalf("Failed to init catalog module: %v", err)
	}
	if err := scheduling.Init(conn); err != nil {
		log.Fatalf("Failed to init scheduling module: %v", err)
	}

	if err := account.SeedRoles(conn); err != nil {
		log.Fatalf("Seeding roles failed: %v", err)
	}
	if err := scheduling.SeedStatuses(conn); err != nil {
		log.Fatalf("Seeding statuses failed: %v", err)
	}

	log.Println("Seeded role and status catalogs")
}
