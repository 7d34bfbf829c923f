package models

import (
	"time"

	"github.com/fatflowers/paysync/pkg/types"
)

// UserProfile carries the denormalized subscription flag read by clients.
// The subscription ledger is the source of truth; this row is a cache.
type UserProfile struct {
	ID                 string              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID             string              `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex" json:"user_id"`
	SubscriptionStatus types.ProfileStatus `gorm:"column:subscription_status;type:varchar(32);not null" json:"subscription_status"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profile"
}
