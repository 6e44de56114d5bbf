package billing

import (
	"time"

	"github.com/pixelmuse/PixelMuse/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service. Transaction
// returns a Repository bound to the transaction so every entitlement mutation
// and the idempotency record commit or roll back together.
type Repository interface {
	Transaction(fn func(Repository) error) error

	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, error)
	IncrementCreditBalance(userID string, delta int64) error
	GetCreditBalance(userID string) (int64, error)
	UpsertSubscription(sub *models.UserSubscription) error
	UpdateSubscriptionStatus(userID, status string) (bool, error)
	GetSubscription(userID string) (*models.UserSubscription, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

// CreateWebhookEventIfNotExists inserts the idempotency record. It reports
// false when the (provider, provider_event_id) pair was already committed by
// an earlier delivery.
func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// IncrementCreditBalance applies an atomic read-modify-write upsert so
// concurrent top-ups for the same user serialize at the storage layer.
func (r *gormRepository) IncrementCreditBalance(userID string, delta int64) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": time.Now(),
		}),
	}).Create(&models.UserCredit{UserID: userID, Balance: delta}).Error
}

func (r *gormRepository) GetCreditBalance(userID string) (int64, error) {
	var uc models.UserCredit
	err := r.db.Where("user_id = ?", userID).First(&uc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return uc.Balance, nil
}

func (r *gormRepository) UpsertSubscription(sub *models.UserSubscription) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider",
			"provider_subscription_id",
			"plan_name",
			"billing_cycle",
			"status",
			"current_period_start",
			"current_period_end",
			"updated_at",
		}),
	}).Create(sub).Error
}

// UpdateSubscriptionStatus flips the status on an existing row. It reports
// false when the user has no subscription row to update.
func (r *gormRepository) UpdateSubscriptionStatus(userID, status string) (bool, error) {
	tx := r.db.Model(&models.UserSubscription{}).
		Where("user_id = ?", userID).
		Update("status", status)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) GetSubscription(userID string) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	if err := r.db.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}
