package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotificationTypePaymentSuccess NotificationType = "payment_success"
)

// Notification is a user inbox entry.
type Notification struct {
	ID        string            `gorm:"column:id;type:uuid;primary_key" json:"id"`
	UserID    string            `gorm:"column:user_id;type:varchar(64);not null;index:idx_notification_user_created,priority:1" json:"user_id"`
	Type      NotificationType  `gorm:"column:type;type:varchar(64);not null" json:"type"`
	Title     string            `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Message   string            `gorm:"column:message;type:text;not null" json:"message"`
	Metadata  datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	ReadAt    *time.Time        `gorm:"column:read_at;default:null" json:"read_at"`
	CreatedAt time.Time         `gorm:"index:idx_notification_user_created,priority:2" json:"created_at"`
}

func (Notification) TableName() string {
	return "notification"
}
