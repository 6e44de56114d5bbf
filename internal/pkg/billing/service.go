package billing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pixelmuse/PixelMuse/app/models"
	"github.com/pixelmuse/PixelMuse/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// Outcome classifies an accepted delivery for the HTTP layer.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeDuplicate
	OutcomeIgnored
)

// Service applies decoded provider events to entitlement state exactly once
// per event id.
type Service struct {
	repo Repository
}

// NewService creates a billing service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// ProcessEvent runs the idempotency guard and the reconciler as one atomic
// unit: the idempotency record and the entitlement mutation commit together
// or not at all. A replayed event id short-circuits without re-invoking the
// reconciler. On storage failure nothing is recorded, so the provider's
// redelivery retries the whole effect safely.
func (s *Service) ProcessEvent(ctx context.Context, ev *Event, rawBody []byte) (Outcome, error) {
	_ = ctx
	if ev == nil {
		return OutcomeIgnored, fmt.Errorf("nil event")
	}

	outcome := OutcomeApplied
	err := s.repo.Transaction(func(tx Repository) error {
		now := time.Now()
		created, err := tx.CreateWebhookEventIfNotExists(&models.WebhookEvent{
			Provider:        models.BillingProviderCreem,
			ProviderEventID: ev.ID,
			EventType:       ev.Type,
			UserID:          ev.UserID,
			PayloadJSON:     string(rawBody),
			ProcessedAt:     &now,
		})
		if err != nil {
			return err
		}
		if !created {
			outcome = OutcomeDuplicate
			return nil
		}
		if ev.Kind == KindUnhandled {
			outcome = OutcomeIgnored
		}
		return s.apply(tx, ev, now)
	})
	if err != nil {
		return outcome, fmt.Errorf("process event %s: %w", ev.ID, err)
	}
	return outcome, nil
}

func (s *Service) apply(tx Repository, ev *Event, now time.Time) error {
	switch ev.Kind {
	case KindCheckoutCompleted:
		if ev.Credits == 0 {
			// Pure payment receipt, no entitlement effect.
			log.Printf("billing: checkout %s for user %s carries no credits, no-op", ev.ID, ev.UserID)
			return nil
		}
		return tx.IncrementCreditBalance(ev.UserID, ev.Credits)

	case KindSubscriptionActivated:
		cycle := entitlements.NormalizeCycle(ev.BillingCycle)
		periodEnd := PeriodEnd(now, cycle)
		return tx.UpsertSubscription(&models.UserSubscription{
			UserID:                 ev.UserID,
			Provider:               models.BillingProviderCreem,
			ProviderSubscriptionID: ev.SubscriptionRef,
			PlanName:               string(entitlements.NormalizePlan(ev.PlanName)),
			BillingCycle:           cycle,
			Status:                 models.SubscriptionStatusActive,
			CurrentPeriodStart:     &now,
			CurrentPeriodEnd:       &periodEnd,
		})

	case KindSubscriptionDeactivated:
		status := models.SubscriptionStatusCanceled
		if ev.Deactivation == DeactivationExpired {
			status = models.SubscriptionStatusExpired
		}
		updated, err := tx.UpdateSubscriptionStatus(ev.UserID, status)
		if err != nil {
			return err
		}
		if !updated {
			// Provider can deliver out of order; nothing to deactivate yet.
			log.Printf("billing: deactivation %s for user %s without subscription row", ev.ID, ev.UserID)
		}
		return nil

	case KindUnhandled:
		log.Printf("billing: unhandled event type %s (%s), accepted without effect", ev.Type, ev.ID)
		return nil

	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

// UserEntitlement is the read-side view consumed by the rest of the product.
type UserEntitlement struct {
	UserID        string                   `json:"user_id"`
	CreditBalance int64                    `json:"credit_balance"`
	Subscription  *models.UserSubscription `json:"subscription,omitempty"`
}

// GetUserEntitlement reads the materialized entitlement state for a user.
func (s *Service) GetUserEntitlement(ctx context.Context, userID string) (*UserEntitlement, error) {
	_ = ctx
	balance, err := s.repo.GetCreditBalance(userID)
	if err != nil {
		return nil, err
	}

	ent := &UserEntitlement{UserID: userID, CreditBalance: balance}
	sub, err := s.repo.GetSubscription(userID)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	} else {
		ent.Subscription = sub
	}
	return ent, nil
}
