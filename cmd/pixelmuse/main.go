package main

import (
	"fmt"
	"log"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pixelmuse/PixelMuse/internal/pkg/cache"
	"github.com/pixelmuse/PixelMuse/internal/pkg/config"
	"github.com/pixelmuse/PixelMuse/internal/pkg/database"
	"github.com/pixelmuse/PixelMuse/internal/pkg/env"
	"github.com/pixelmuse/PixelMuse/internal/pkg/router"
)

func main() {
	app, cfg := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", cfg.AppHost, cfg.AppPort))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *config.Config) {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	database.SetupDatabase()
	cache.SetupCache()

	app := fiber.New(fiber.Config{
		BodyLimit: 1048576, // webhook payloads are small; 1 MiB is generous
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app, cfg)

	return app, cfg
}
