package subscription

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/paysync/internal/app/service/proration"
	models "github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/pkg/logctx"
	"github.com/fatflowers/paysync/pkg/tool"
	types "github.com/fatflowers/paysync/pkg/types"
)

// ErrStaleDecision means the user's active period changed after the decision
// was computed. Recompute the decision and apply again.
var ErrStaleDecision = errors.New("proration decision is stale")

var forUpdate = clause.Locking{Strength: "UPDATE"}

type ApplyRequest struct {
	UserID    string
	Plan      *types.Plan
	Decision  *proration.Decision
	PaymentID string
	// Amount actually paid, in minor units.
	Amount   int64
	Currency string
	Reason   types.SubscriptionChangeReason
}

func (r *ApplyRequest) validate() error {
	switch {
	case r == nil:
		return fmt.Errorf("nil apply request")
	case r.UserID == "" || r.PaymentID == "":
		return fmt.Errorf("user_id and payment_id are required")
	case r.Plan == nil || r.Decision == nil:
		return fmt.Errorf("plan and decision are required")
	case !r.Decision.EndDate.After(r.Decision.StartDate):
		return fmt.Errorf("decision end %s is not after start %s", r.Decision.EndDate, r.Decision.StartDate)
	}
	return nil
}

// ApplyDecision records the period funded by PaymentID. It is idempotent on
// PaymentID: if a period already references it, that period is returned with
// created=false and nothing changes. Otherwise, in one transaction, prior
// active periods become replaced (or expired when already ended) and the new
// period becomes the user's only active one.
func (s *Service) ApplyDecision(ctx context.Context, req *ApplyRequest) (period *models.SubscriptionPeriod, created bool, err error) {
	if err := req.validate(); err != nil {
		return nil, false, err
	}
	lg := logctx.FromCtx(ctx, s.log)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.SubscriptionPeriod
		err := tx.Where("payment_id = ?", req.PaymentID).First(&existing).Error
		if err == nil {
			period = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check payment id: %w", err)
		}

		actives, err := s.activePeriods(tx, req.UserID, true)
		if err != nil {
			return err
		}
		current := s.pickCurrent(ctx, req.UserID, actives)
		currentID := ""
		if current != nil {
			currentID = current.ID
		}
		if currentID != req.Decision.PreviousPeriodID {
			return fmt.Errorf("%w: user %s active period is %q, decision expects %q",
				ErrStaleDecision, req.UserID, currentID, req.Decision.PreviousPeriodID)
		}

		var before *models.SubscriptionPeriod
		if current != nil {
			cp := *current
			before = &cp
		}

		now := s.now()
		for _, a := range actives {
			next := types.SubscriptionStatusReplaced
			if !a.EndDate.After(now) {
				next = types.SubscriptionStatusExpired
			}
			if err := tx.Model(a).Update("status", next).Error; err != nil {
				return fmt.Errorf("failed to close period %s: %w", a.ID, err)
			}
		}

		period = &models.SubscriptionPeriod{
			ID:           tool.GenerateUUIDV7(),
			UserID:       req.UserID,
			PlanID:       req.Plan.ID,
			Status:       types.SubscriptionStatusActive,
			StartDate:    req.Decision.StartDate.UTC(),
			EndDate:      req.Decision.EndDate.UTC(),
			PaymentID:    req.PaymentID,
			Amount:       req.Amount,
			Currency:     req.Currency,
			ChangeType:   req.Decision.ActionType,
			ProratedDays: req.Decision.ProratedDays,
		}
		if req.Decision.PreviousPeriodID != "" {
			prev := req.Decision.PreviousPeriodID
			period.PreviousPeriodID = &prev
		}
		if err := tx.Create(period).Error; err != nil {
			return fmt.Errorf("failed to create period: %w", err)
		}
		created = true

		return s.writeLog(tx, before, period, req)
	})
	if err != nil {
		if errors.Is(err, ErrStaleDecision) {
			return nil, false, err
		}
		// a concurrent apply of the same payment may have won the unique index
		if winner, findErr := s.FindByPaymentID(ctx, req.PaymentID); findErr == nil && winner != nil {
			lg.Warnw("period already created by concurrent apply", "payment_id", req.PaymentID, "period_id", winner.ID, "err", err)
			return winner, false, nil
		}
		// a concurrent apply for another payment inserted the user's active period first
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, fmt.Errorf("%w: user %s gained an active period during apply: %w", ErrStaleDecision, req.UserID, err)
		}
		return nil, false, fmt.Errorf("failed to apply decision: %w", err)
	}

	if created {
		lg.Infow("subscription period applied",
			"user_id", req.UserID, "plan_id", req.Plan.ID, "payment_id", req.PaymentID,
			"action", period.ChangeType, "end_date", period.EndDate, "prorated_days", period.ProratedDays)
	}
	return period, created, nil
}

func (s *Service) writeLog(tx *gorm.DB, before, after *models.SubscriptionPeriod, req *ApplyRequest) error {
	reason := req.Reason
	if reason == "" {
		reason = types.SubscriptionChangeReasonPurchase
	}
	d := req.Decision
	entry := &models.SubscriptionLog{
		ID:        tool.GenerateUUIDV7(),
		UserID:    after.UserID,
		PaymentID: after.PaymentID,
		Reason:    reason,
		Before:    datatypes.NewJSONType(before),
		After:     datatypes.NewJSONType(after),
		Extra: datatypes.JSONMap{
			"action_type":     d.ActionType,
			"prorated_days":   d.ProratedDays,
			"prorated_value":  d.ProratedValue,
			"additional_cost": d.AdditionalCost,
			"refund_amount":   d.RefundAmount,
			"remaining_days":  d.RemainingDays,
			"recommendation":  d.RecommendationText,
		},
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to write subscription log: %w", err)
	}
	return nil
}
