package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/paysync/pkg/types"
)

type PaymentExtra struct {
	// PlanSnapshot is the plan as configured when the bill was created.
	PlanSnapshot *types.Plan `json:"plan_snapshot,omitempty"`
	// OrderRef is the "{userId}_{planId}" reference sent to the provider.
	OrderRef string `json:"order_ref,omitempty"`
}

// Payment is one provider bill. Status only moves pending -> completed or
// pending -> failed; terminal rows are never rewritten.
type Payment struct {
	ID                string                `gorm:"column:id;primary_key;type:uuid" json:"id"`
	BillID            string                `gorm:"column:bill_id;type:varchar(128);not null;uniqueIndex" json:"bill_id"`
	UserID            string                `gorm:"column:user_id;type:varchar(64);not null;index:idx_payment_user_created,priority:1" json:"user_id"`
	PlanID            string                `gorm:"column:plan_id;type:varchar(64);not null" json:"plan_id"`
	Provider          types.PaymentProvider `gorm:"column:provider;type:varchar(32);not null" json:"provider"`
	Amount            int64                 `gorm:"column:amount;type:bigint;not null" json:"amount"`
	Currency          string                `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Status            types.PaymentStatus   `gorm:"column:status;type:varchar(32);not null;index:idx_payment_status_created,priority:1" json:"status"`
	ProviderPaymentID *string               `gorm:"column:provider_payment_id;type:varchar(128)" json:"provider_payment_id"`
	// PaidAt is set once the payment is completed.
	PaidAt *time.Time `gorm:"column:paid_at;default:null" json:"paid_at"`
	// RawPayload is the last provider response or callback body that moved the payment.
	RawPayload datatypes.JSON                    `gorm:"column:raw_payload;type:jsonb" json:"raw_payload"`
	Extra      datatypes.JSONType[*PaymentExtra] `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt  time.Time                         `gorm:"index:idx_payment_user_created,priority:2;index:idx_payment_status_created,priority:2" json:"created_at"`
	UpdatedAt  time.Time                         `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payment"
}

// LedgerPaymentID is the id a subscription period references: the provider's
// own payment id when known, otherwise the bill id.
func (p *Payment) LedgerPaymentID() string {
	if p == nil {
		return ""
	}
	if p.ProviderPaymentID != nil && *p.ProviderPaymentID != "" {
		return *p.ProviderPaymentID
	}
	return p.BillID
}

func (p *Payment) GetPlanSnapshot() *types.Plan {
	if p == nil || p.Extra.Data() == nil {
		return nil
	}
	return p.Extra.Data().PlanSnapshot
}
