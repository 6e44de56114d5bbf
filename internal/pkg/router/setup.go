package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pixelmuse/PixelMuse/internal/pkg/config"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter wires all routes. HttpRouter initializes the billing
// controllers first; ApiRouter registers the internal read API on top.
func InstallRouter(app *fiber.App, cfg *config.Config) {
	setup(app, NewHttpRouter(cfg), NewApiRouter(cfg))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
