package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Provider event type strings as delivered by Creem.
const (
	ProviderEventCheckoutCompleted    = "checkout.completed"
	ProviderEventSubscriptionActive   = "subscription.active"
	ProviderEventSubscriptionTrialing = "subscription.trialing"
	ProviderEventSubscriptionCanceled = "subscription.canceled"
	ProviderEventSubscriptionExpired  = "subscription.expired"
)

// EventKind is the closed internal variant set. New provider event types land
// in KindUnhandled instead of silently disappearing inside business logic.
type EventKind string

const (
	KindCheckoutCompleted       EventKind = "checkout_completed"
	KindSubscriptionActivated   EventKind = "subscription_activated"
	KindSubscriptionDeactivated EventKind = "subscription_deactivated"
	KindUnhandled               EventKind = "unhandled"
)

// Deactivation reasons carried by KindSubscriptionDeactivated.
const (
	DeactivationCanceled = "canceled"
	DeactivationExpired  = "expired"
)

var (
	ErrMalformedEvent = errors.New("malformed webhook event")
	ErrMissingUserID  = errors.New("missing userId in event metadata")
)

// Event is an immutable, decoded provider notification. It is created per
// request and discarded after processing.
type Event struct {
	ID              string
	Kind            EventKind
	Type            string // raw provider event type
	UserID          string
	CustomerRef     string
	ProductRef      string
	SubscriptionRef string
	Amount          int64
	Credits         int64 // checkout top-up count, 0 for pure payment receipts
	PlanName        string
	BillingCycle    string
	Deactivation    string // canceled or expired
	Metadata        map[string]string
}

type wireEvent struct {
	ID    string   `json:"id"`
	Event string   `json:"event"`
	Data  wireData `json:"data"`
}

type wireData struct {
	ID             string            `json:"id"`
	SessionID      string            `json:"session_id"`
	SubscriptionID string            `json:"subscription_id"`
	Customer       wireRef           `json:"customer"`
	Product        wireRef           `json:"product"`
	Amount         int64             `json:"amount"`
	Metadata       map[string]string `json:"metadata"`
}

// wireRef accepts both "cus_123" and {"id":"cus_123"} encodings, which the
// provider mixes across event types.
type wireRef struct {
	ID string
}

func (r *wireRef) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		r.ID = s
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	r.ID = obj.ID
	return nil
}

// DecodeEvent parses verified raw bytes into the closed variant set. It must
// only be called after VerifyWebhookSignature has accepted the payload.
// An event without a provider id gets a deterministic fallback id derived
// from the payload hash so redeliveries still deduplicate.
func DecodeEvent(raw []byte) (*Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	eventType := strings.TrimSpace(w.Event)
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
	}

	ev := &Event{
		ID:          strings.TrimSpace(w.ID),
		Type:        eventType,
		CustomerRef: strings.TrimSpace(w.Data.Customer.ID),
		ProductRef:  strings.TrimSpace(w.Data.Product.ID),
		Amount:      w.Data.Amount,
		Metadata:    w.Data.Metadata,
	}
	if ev.ID == "" {
		sum := sha256.Sum256(raw)
		ev.ID = "hash:" + hex.EncodeToString(sum[:])
	}

	switch eventType {
	case ProviderEventCheckoutCompleted:
		ev.Kind = KindCheckoutCompleted
	case ProviderEventSubscriptionActive, ProviderEventSubscriptionTrialing:
		ev.Kind = KindSubscriptionActivated
	case ProviderEventSubscriptionCanceled:
		ev.Kind = KindSubscriptionDeactivated
		ev.Deactivation = DeactivationCanceled
	case ProviderEventSubscriptionExpired:
		ev.Kind = KindSubscriptionDeactivated
		ev.Deactivation = DeactivationExpired
	default:
		ev.Kind = KindUnhandled
		return ev, nil
	}

	// The subject is threaded through checkout metadata; it is never guessed.
	ev.UserID = strings.TrimSpace(ev.Metadata["userId"])
	if ev.UserID == "" {
		return nil, fmt.Errorf("%w: event %s type %s", ErrMissingUserID, ev.ID, eventType)
	}

	if ev.Kind == KindCheckoutCompleted {
		if creditsRaw := strings.TrimSpace(ev.Metadata["credits"]); creditsRaw != "" {
			credits, err := strconv.ParseInt(creditsRaw, 10, 64)
			if err != nil || credits < 0 {
				return nil, fmt.Errorf("%w: invalid credits value %q", ErrMalformedEvent, creditsRaw)
			}
			ev.Credits = credits
		}
	}

	if ev.Kind == KindSubscriptionActivated {
		ev.PlanName = strings.TrimSpace(ev.Metadata["planName"])
		ev.BillingCycle = strings.TrimSpace(ev.Metadata["billingCycle"])
	}

	ev.SubscriptionRef = strings.TrimSpace(w.Data.SubscriptionID)
	if ev.SubscriptionRef == "" && strings.HasPrefix(eventType, "subscription.") {
		ev.SubscriptionRef = strings.TrimSpace(w.Data.ID)
	}

	return ev, nil
}
