package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"useradmin/docs"
	"useradmin/internal/auth"
	"useradmin/internal/cache"
	"useradmin/internal/config"
	"useradmin/internal/db"
	"useradmin/internal/handler"
	"useradmin/internal/logger"
	"useradmin/internal/metrics"
	"useradmin/internal/model"
	"useradmin/internal/repository"
	"useradmin/internal/router"
	"useradmin/internal/service"
)

// @title User Admin API
// @version 1.0
// @description Administrative user management: list, create, edit, delete and export users.
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	e := echo.New()
	e.HideBanner = true
	e.Logger = log

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	if cfg.ResetDB {
		log.Warn("RESET_DB=true detected, dropping the users table...")
		if err := gormDB.Migrator().DropTable(&model.User{}); err != nil {
			log.Warnf("failed to drop users table (may not exist): %v", err)
		}
	}

	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := cacheClient.Ping(pingCtx); err != nil {
		log.Warnf("redis unavailable at %s, running without cache: %v", cfg.RedisAddr, err)
	}
	cancel()

	metrics.Init()

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)

	// Initialize auth components
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Initialize services
	userService := service.NewUserService(userRepo, hasher, cacheClient, log, cfg.PageSize)
	exportService := service.NewExportService(userRepo, cfg.ExportDir, log)
	seedService := service.NewSeedService(userRepo, hasher, log)
	authService := service.NewAuthService(userRepo, hasher, jwtService, tokenStore, log)

	// Register routes
	router.Register(
		e,
		cfg,
		handler.NewUserHandler(userService, exportService),
		handler.NewAuthHandler(authService),
		handler.NewSeedHandler(seedService),
		userService,
		authService,
	)

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}
	log.Infof("Swagger documentation available at: %s", swaggerURL(cfg))

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}

// swaggerURL builds the docs address; SwaggerHost may already carry a scheme.
func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}
