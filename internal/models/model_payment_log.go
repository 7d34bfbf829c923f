package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/paysync/pkg/types"
)

// PaymentLog records every payment status transition, for troubleshooting.
type PaymentLog struct {
	ID       string                `gorm:"column:id;primary_key;type:uuid"`
	BillID   string                `gorm:"column:bill_id;type:varchar(128);not null;index"`
	UserID   string                `gorm:"column:user_id;type:varchar(64);not null"`
	Provider types.PaymentProvider `gorm:"column:provider;type:varchar(32);not null"`
	// FromStatus is empty for the creating insert.
	FromStatus types.PaymentStatus          `gorm:"column:from_status;type:varchar(32)"`
	ToStatus   types.PaymentStatus          `gorm:"column:to_status;type:varchar(32);not null"`
	Before     datatypes.JSONType[*Payment] `gorm:"column:before;type:jsonb;default:'null'"`
	After      datatypes.JSONType[*Payment] `gorm:"column:after;type:jsonb;default:'null'"`
	Extra      datatypes.JSONMap            `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt  time.Time                    `json:"created_at"`
}

func (PaymentLog) TableName() string {
	return "payment_log"
}
