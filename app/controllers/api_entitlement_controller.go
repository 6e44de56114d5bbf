package controllers

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pixelmuse/PixelMuse/internal/pkg/billing"
	"github.com/pixelmuse/PixelMuse/internal/pkg/cache"
)

const entitlementCacheTTL = 30 * time.Second

var entitlementService *billing.Service

// InitializeEntitlementController wires the read API with its store handle.
func InitializeEntitlementController(svc *billing.Service) {
	entitlementService = svc
}

func entitlementCacheKey(userID string) string {
	return "entitlement:" + userID
}

// HandleGetEntitlement returns the materialized entitlement state for a user:
// credit balance plus subscription record, if any. Responses are cached
// briefly; webhook mutations invalidate the cache eagerly.
func HandleGetEntitlement(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("user_id"))
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "user_id missing"})
	}
	if entitlementService == nil {
		log.Print("entitlement api: controller not initialized")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	key := entitlementCacheKey(userID)
	if cached, err := cache.Get(key); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).SendString(cached)
	} else if err != nil && !cache.IsNil(err) {
		log.Printf("entitlement api: cache read for user %s failed: %v", userID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ent, err := entitlementService.GetUserEntitlement(ctx, userID)
	if err != nil {
		log.Printf("entitlement api: lookup for user %s failed: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "entitlement_lookup_failed"})
	}

	if body, err := json.Marshal(ent); err == nil {
		if err := cache.Set(key, string(body), entitlementCacheTTL); err != nil {
			log.Printf("entitlement api: cache write for user %s failed: %v", userID, err)
		}
	}

	return c.Status(fiber.StatusOK).JSON(ent)
}
