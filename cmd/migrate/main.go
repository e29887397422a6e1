package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	dbpostgres "github.com/gnd-labs/scooter-saga/pkg/db/postgres"
)

var services = []string{"scooter", "billing", "notification"}

func setupDatabase(service string) error {
	cfg := dbpostgres.NewPostgresConfig(service)

	adminURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/postgres?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port,
	)

	db, err := sql.Open("postgres", adminURL)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer db.Close()

	log.Printf("Creating database '%s' if not exists...", cfg.DBName)
	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", cfg.DBName))
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			log.Printf("Database '%s' already exists, skipping creation", cfg.DBName)
		} else {
			return fmt.Errorf("failed to create database: %w", err)
		}
	}

	migrationsURL := fmt.Sprintf("file://migrations/%s", service)
	dbURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
	)

	m, err := migrate.New(migrationsURL, dbURL)
	if err != nil {
		return fmt.Errorf("failed to init migrate: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Printf("Migrations applied for '%s'", service)
	return nil
}

func main() {
	service := flag.String("service", "", "service database to migrate (default: all)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	targets := services
	if *service != "" {
		targets = []string{*service}
	}

	for _, svc := range targets {
		if err := setupDatabase(svc); err != nil {
			log.Fatalf("migration failed for %s: %v", svc, err)
		}
	}
}
