package models

import "time"

// WebhookEvent records one processed provider delivery. The unique
// (provider, provider_event_id) pair is the idempotency key: the row is
// inserted in the same transaction as the entitlement mutation, so an event
// either committed with its full effect or left no trace at all.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_webhook_events_provider_event,unique,priority:1" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;index:ux_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	UserID          string     `gorm:"type:varchar(64);not null;default:'';index" json:"user_id"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
