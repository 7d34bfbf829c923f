// Package proration decides how a new plan purchase combines with a user's
// current subscription period. Everything here is pure and deterministic.
//
// Money is in minor units and days are whole days. Daily rate conversions
// use price*duration cross products and truncate toward zero.
package proration

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/paysync/pkg/types"
)

const day = 24 * time.Hour

var ErrInvalidPlan = errors.New("invalid plan")

// Current describes the user's active period together with the price and
// length of the plan that funded it.
type Current struct {
	ID           string
	PlanID       string
	StartDate    time.Time
	EndDate      time.Time
	Price        int64
	DurationDays int
}

type Decision struct {
	ActionType types.ChangeType `json:"action_type"`
	// ProratedDays are extra days of the new plan granted for unused value.
	ProratedDays int `json:"prorated_days"`
	// ProratedValue is the unused value of the current period.
	ProratedValue int64 `json:"prorated_value"`
	// AdditionalCost is what the new plan costs beyond the unused value.
	AdditionalCost int64 `json:"additional_cost"`
	// RefundAmount is unused value exceeding the new plan price. It is credited
	// as ProratedDays, never paid out.
	RefundAmount       int64  `json:"refund_amount"`
	RecommendationText string `json:"recommendation_text"`
	RemainingDays      int    `json:"remaining_days"`
	// DaysAdded is the entitlement granted by this purchase, prorated days included.
	DaysAdded        int       `json:"days_added"`
	PreviousPeriodID string    `json:"previous_period_id,omitempty"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
}

// Decide computes the decision for buying plan at now. A nil current, or one
// that already ended, starts a new period. Plans are ranked by total price,
// not daily rate, when telling an upgrade from a downgrade.
func Decide(current *Current, plan *types.Plan, now time.Time) (*Decision, error) {
	if plan == nil || plan.ID == "" || plan.DurationDays <= 0 || plan.Price < 0 {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidPlan, plan)
	}
	dur := plan.DurationDays

	if current == nil || !current.EndDate.After(now) {
		return &Decision{
			ActionType:         types.ChangeTypeNew,
			DaysAdded:          dur,
			StartDate:          now,
			EndDate:            now.Add(days(dur)),
			RecommendationText: fmt.Sprintf("Start %s for %d days.", planName(plan), dur),
		}, nil
	}

	remaining := int(current.EndDate.Sub(now) / day)

	if current.PlanID == plan.ID {
		return &Decision{
			ActionType:         types.ChangeTypeExtension,
			RemainingDays:      remaining,
			DaysAdded:          dur,
			PreviousPeriodID:   current.ID,
			StartDate:          current.StartDate,
			EndDate:            current.EndDate.Add(days(dur)),
			RecommendationText: fmt.Sprintf("Extend %s by %d days after the current period ends.", planName(plan), dur),
		}, nil
	}

	if current.DurationDays <= 0 || current.Price < 0 {
		return nil, fmt.Errorf("%w: current period %s has no usable price or duration", ErrInvalidPlan, current.ID)
	}

	d := &Decision{
		RemainingDays:    remaining,
		PreviousPeriodID: current.ID,
		StartDate:        now,
		// remaining * price / duration, truncated
		ProratedValue: int64(remaining) * current.Price / int64(current.DurationDays),
	}

	switch {
	case plan.Price < current.Price:
		d.ActionType = types.ChangeTypeDowngrade
		d.RefundAmount = max(0, d.ProratedValue-plan.Price)
		if plan.Price > 0 {
			d.ProratedDays = int(d.RefundAmount * int64(dur) / plan.Price)
		}
		d.RecommendationText = fmt.Sprintf("Switch to %s; %d days of unused value are credited as %d extra days.", planName(plan), remaining, d.ProratedDays)
	default:
		d.ActionType = types.ChangeTypeUpgrade
		if plan.Price == current.Price {
			d.ActionType = types.ChangeTypeReplacement
		}
		d.AdditionalCost = max(0, plan.Price-d.ProratedValue)
		if plan.Price > 0 {
			// remaining days at the old daily rate, expressed in days of the new plan
			d.ProratedDays = int(int64(remaining) * current.Price * int64(dur) / (int64(current.DurationDays) * plan.Price))
		}
		d.RecommendationText = fmt.Sprintf("Switch to %s; %d remaining days carry over as %d days.", planName(plan), remaining, d.ProratedDays)
	}

	d.DaysAdded = dur + d.ProratedDays
	d.EndDate = now.Add(days(d.DaysAdded))
	return d, nil
}

func days(n int) time.Duration { return time.Duration(n) * day }

func planName(p *types.Plan) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
