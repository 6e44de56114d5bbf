package router

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/pixelmuse/PixelMuse/app/controllers"
	"github.com/pixelmuse/PixelMuse/internal/pkg/billing"
	"github.com/pixelmuse/PixelMuse/internal/pkg/config"
	"github.com/pixelmuse/PixelMuse/internal/pkg/database"
)

type HttpRouter struct {
	cfg *config.Config
}

func NewHttpRouter(cfg *config.Config) *HttpRouter {
	return &HttpRouter{cfg: cfg}
}

func (h *HttpRouter) InstallRouter(app *fiber.App) {
	svc := billing.NewServiceFromDB(database.GetDB())

	// A missing webhook secret is a startup-fatal configuration error, never
	// a per-request fallback to unsigned processing.
	if err := controllers.InitializeWebhookController(svc, h.cfg.WebhookSecret); err != nil {
		log.Fatalf("webhook controller setup failed: %v", err)
	}
	controllers.InitializeEntitlementController(svc)

	// Billing provider webhooks (no CSRF, signature-verified in controller)
	app.Post("/webhooks/creem", controllers.HandleCreemWebhook)
}
