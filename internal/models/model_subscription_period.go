package models

import (
	"time"

	"github.com/fatflowers/paysync/pkg/types"
)

// SubscriptionPeriod is one contiguous entitlement interval of a user on a plan.
// At most one row per user is active, and a payment id backs at most one row.
type SubscriptionPeriod struct {
	ID        string                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string                   `gorm:"column:user_id;type:varchar(64);not null;index:idx_period_user_end,priority:1;uniqueIndex:uniq_period_user_active,where:status = 'active'" json:"user_id"`
	PlanID    string                   `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	Status    types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	StartDate time.Time                `gorm:"column:start_date;not null" json:"start_date"`
	EndDate   time.Time                `gorm:"column:end_date;not null;index:idx_period_user_end,priority:2" json:"end_date"`
	PaymentID string                   `gorm:"column:payment_id;type:varchar(128);not null;uniqueIndex" json:"payment_id"`
	// Amount actually charged for this period, in minor units.
	Amount       int64            `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency     string           `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	ChangeType   types.ChangeType `gorm:"column:change_type;type:varchar(32);not null" json:"change_type"`
	ProratedDays int              `gorm:"column:prorated_days;not null;default:0" json:"prorated_days"`
	// PreviousPeriodID links a period created by a plan change to the one it replaced.
	PreviousPeriodID *string   `gorm:"column:previous_period_id;type:uuid" json:"previous_period_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (SubscriptionPeriod) TableName() string {
	return "subscription_period"
}

// Valid reports whether the period is active and not yet ended at now.
func (p *SubscriptionPeriod) Valid(now time.Time) bool {
	return p != nil && p.Status == types.SubscriptionStatusActive && p.EndDate.After(now)
}
