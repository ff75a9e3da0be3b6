package main

import (
	"log"
	"net/http"
	"os"

	_ "todoapi/docs" // swagger docs

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"todoapi/internal/auth"
	"todoapi/internal/cache"
	"todoapi/internal/config"
	"todoapi/internal/db"
	"todoapi/internal/handler"
	"todoapi/internal/model"
	"todoapi/internal/repository"
	"todoapi/internal/router"
	"todoapi/internal/service"
)

// @title Todo API
// @version 1.0
// @description Multi-tenant to-do backend with JWT authentication and per-user task isolation.
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	e := echo.New()
	e.Debug = cfg.Debug
	e.Use(middleware.RequestID())

	gormDB, err := db.NewMySQL(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	// Drop tables if RESET_DB environment variable is set
	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, dropping all tables...")
		for _, table := range []interface{}{&model.Task{}, &model.User{}} {
			if err := gormDB.Migrator().DropTable(table); err != nil {
				log.Printf("Warning: Failed to drop table (may not exist): %v", err)
			}
		}
		log.Println("Tables dropped")
	}

	if err := gormDB.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	userRepo := repository.NewUserRepository(gormDB)
	taskRepo := repository.NewTaskRepository(gormDB)

	jwtService := auth.NewJWTService(cfg.JWTSecret)

	authService := service.NewAuthService(userRepo, jwtService)
	taskService := service.NewTaskService(taskRepo, cacheClient)

	authHandler := handler.NewAuthHandler(authService)
	taskHandler := handler.NewTaskHandler(taskService)

	router.Register(e, cfg, authHandler, taskHandler)

	swaggerHost := cfg.SwaggerHost
	if swaggerHost == "" {
		swaggerHost = "http://localhost:" + cfg.ServerPort
	}
	log.Printf("Swagger documentation available at: %s/swagger/index.html", swaggerHost)

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
