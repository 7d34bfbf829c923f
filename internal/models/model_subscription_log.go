package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/paysync/pkg/types"
)

// SubscriptionLog records ledger changes.
// Use case: troubleshooting.
type SubscriptionLog struct {
	ID        string                         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID    string                         `gorm:"column:user_id;type:varchar(64);index:idx_sub_log_user_id_id,priority:1;not null"`
	PaymentID string                         `gorm:"column:payment_id;type:varchar(128)"`
	Reason    types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null"`
	// Before is the period that was superseded, if any.
	Before datatypes.JSONType[*SubscriptionPeriod] `gorm:"column:before;type:jsonb;default:'null'"`
	// After is the period created by the change.
	After datatypes.JSONType[*SubscriptionPeriod] `gorm:"column:after;type:jsonb;default:'null'"`
	// Extra stores the proration decision and trigger source.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
