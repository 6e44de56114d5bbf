package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderCreem = "creem"
)

const (
	BillingCycleMonthly = "monthly"
	BillingCycleYearly  = "yearly"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusExpired  = "expired"
)

// UserSubscription holds the single live subscription record per user.
// Re-activation overwrites plan/cycle/period fields in place (last writer
// wins); the row is never deleted by the billing engine.
type UserSubscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_subscriptions_user" json:"user_id"`
	Provider               string     `gorm:"type:varchar(20);not null;default:'creem'" json:"provider"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;default:'';index" json:"provider_subscription_id"`
	PlanName               string     `gorm:"type:varchar(50);not null;default:''" json:"plan_name"`
	BillingCycle           string     `gorm:"type:varchar(16);not null;default:'monthly'" json:"billing_cycle"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
