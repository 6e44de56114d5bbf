package models

import "time"

// UserCredit is the eagerly materialized credit balance per user. The balance
// is only ever adjusted through atomic `balance = balance + ?` upserts; this
// engine never decrements it (consumption happens in the generation service).
type UserCredit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_credits_user" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0" json:"balance"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
