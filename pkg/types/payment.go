package types

import "strings"

type PaymentProvider string

const (
	PaymentProviderToyyibPay PaymentProvider = "toyyibpay"
	PaymentProviderHitPay    PaymentProvider = "hitpay"
	PaymentProviderChip      PaymentProvider = "chip"
)

func (p PaymentProvider) Valid() bool {
	switch p {
	case PaymentProviderToyyibPay, PaymentProviderHitPay, PaymentProviderChip:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Terminal reports whether no further transition is allowed from this status.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// Plan is a purchasable subscription plan. Price is in minor currency units.
type Plan struct {
	ID           string `json:"id" mapstructure:"id"`
	Name         string `json:"name" mapstructure:"name"`
	Price        int64  `json:"price" mapstructure:"price"`
	Currency     string `json:"currency" mapstructure:"currency"`
	DurationDays int    `json:"duration_days" mapstructure:"duration_days"`
}

// OrderRef builds the order reference sent to providers, "{userId}_{planId}".
func OrderRef(userID, planID string) string {
	return userID + "_" + planID
}

// ParseOrderRef splits an order reference on its first underscore.
func ParseOrderRef(ref string) (userID, planID string, ok bool) {
	userID, planID, found := strings.Cut(ref, "_")
	if !found {
		return "", "", false
	}
	return userID, planID, userID != "" && planID != ""
}
