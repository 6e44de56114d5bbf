package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/pixelmuse/PixelMuse/app/controllers"
	"github.com/pixelmuse/PixelMuse/internal/pkg/config"
	"github.com/pixelmuse/PixelMuse/internal/pkg/middleware"
)

type ApiRouter struct {
	cfg *config.Config
}

func NewApiRouter(cfg *config.Config) *ApiRouter {
	return &ApiRouter{cfg: cfg}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// Internal read API, consumed by the generation service and the web app.
	v1 := api.Group("/v1", middleware.ServiceTokenAuth(h.cfg.ServiceToken))
	v1.Get("/entitlements/:user_id", controllers.HandleGetEntitlement)
}
