package controllers

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pixelmuse/PixelMuse/internal/pkg/billing"
	"github.com/pixelmuse/PixelMuse/internal/pkg/cache"
)

const creemSignatureHeader = "creem-signature"

// WebhookController owns the ingestion endpoint for provider deliveries. It
// is constructed once at startup with an explicit store handle and secret;
// a missing secret fails construction so the route never accepts traffic
// in an effectively-unsigned mode.
type WebhookController struct {
	svc    *billing.Service
	secret string
}

func NewWebhookController(svc *billing.Service, webhookSecret string) (*WebhookController, error) {
	if svc == nil {
		return nil, errors.New("billing service is required")
	}
	if strings.TrimSpace(webhookSecret) == "" {
		return nil, errors.New("CREEM_WEBHOOK_SECRET is not configured")
	}
	return &WebhookController{svc: svc, secret: webhookSecret}, nil
}

var webhookController *WebhookController

// InitializeWebhookController wires the package-level handler used by the
// router. Must be called during startup, before routes are served.
func InitializeWebhookController(svc *billing.Service, webhookSecret string) error {
	wc, err := NewWebhookController(svc, webhookSecret)
	if err != nil {
		return err
	}
	webhookController = wc
	return nil
}

func HandleCreemWebhook(c *fiber.Ctx) error {
	if webhookController == nil {
		log.Print("webhook: controller not initialized")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_not_configured"})
	}
	return webhookController.Handle(c)
}

// Handle runs verify → decode → process on one delivery. The body is never
// parsed before the signature verifies, and nothing below 200 touches
// persisted state.
func (wc *WebhookController) Handle(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get(creemSignatureHeader))
	traceID := uuid.NewString()

	if strings.TrimSpace(wc.secret) == "" {
		// Constructor enforces this; kept as a guard against misuse.
		log.Printf("webhook %s: missing webhook secret", traceID)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "webhook_not_configured"})
	}

	if !billing.VerifyWebhookSignature(rawBody, signature, wc.secret) {
		log.Printf("webhook %s: invalid or missing signature", traceID)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ev, err := billing.DecodeEvent(rawBody)
	if err != nil {
		log.Printf("webhook %s: decode failed: %v", traceID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	outcome, err := wc.svc.ProcessEvent(ctx, ev, rawBody)
	if err != nil {
		log.Printf("webhook %s: event %s failed: %v", traceID, ev.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event_processing_failed"})
	}

	switch outcome {
	case billing.OutcomeDuplicate:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "duplicate": true})
	case billing.OutcomeIgnored:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "ignored": true})
	default:
		// Entitlements changed; drop the cached read-side view best-effort.
		if ev.UserID != "" {
			if err := cache.Delete(entitlementCacheKey(ev.UserID)); err != nil {
				log.Printf("webhook %s: cache invalidation for user %s failed: %v", traceID, ev.UserID, err)
			}
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
}
