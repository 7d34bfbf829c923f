package types

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	// SubscriptionStatusReplaced marks a period superseded by a plan change.
	SubscriptionStatusReplaced SubscriptionStatus = "replaced"
)

// ProfileStatus is the denormalized subscription flag on the user profile.
// The ledger is authoritative; this is a cache.
type ProfileStatus string

const (
	ProfileStatusActive    ProfileStatus = "active"
	ProfileStatusInactive  ProfileStatus = "inactive"
	ProfileStatusExpired   ProfileStatus = "expired"
	ProfileStatusCancelled ProfileStatus = "cancelled"
)

type ChangeType string

const (
	ChangeTypeNew         ChangeType = "new"
	ChangeTypeExtension   ChangeType = "extension"
	ChangeTypeUpgrade     ChangeType = "upgrade"
	ChangeTypeDowngrade   ChangeType = "downgrade"
	ChangeTypeReplacement ChangeType = "replacement"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonPurchase SubscriptionChangeReason = "purchase"
	SubscriptionChangeReasonRecover  SubscriptionChangeReason = "recover"
	SubscriptionChangeReasonExpire   SubscriptionChangeReason = "expire"
)

type UserSubscriptionInfo struct {
	UserID string `json:"user_id"`
	// Status is derived from the ledger.
	Status ProfileStatus `json:"status"`
	// ProfileStatus is the cached flag; empty when the profile row does not exist.
	ProfileStatus ProfileStatus `json:"profile_status"`
	PlanID        string        `json:"plan_id,omitempty"`
	StartDate     *time.Time    `json:"start_date,omitempty"`
	ExpireAt      *time.Time    `json:"expire_at,omitempty"`
	// InSync is false when the profile flag disagrees with the ledger.
	InSync bool `json:"in_sync"`
}
