package main

import (
	"context"

	"useradmin/internal/auth"
	"useradmin/internal/config"
	"useradmin/internal/db"
	"useradmin/internal/logger"
	"useradmin/internal/model"
	"useradmin/internal/repository"
	"useradmin/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	log.Info("Starting seed script...")

	// Connect to database
	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Info("Connected to database")

	// Run migrations to ensure schema is up to date
	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	seedService := service.NewSeedService(
		repository.NewUserRepository(gormDB),
		auth.NewBcryptHasher(cfg.BcryptCost),
		log,
	)

	result, err := seedService.SeedDemoUsers(context.Background())
	if err != nil {
		log.Fatalf("Failed to seed users after %d created: %v", result.Created, err)
	}

	log.Info("Seed completed successfully!")
	log.Infof("  - New users created: %d", result.Created)
	log.Infof("  - Existing users skipped: %d", result.Skipped)
}
