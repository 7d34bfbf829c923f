package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatflowers/paysync/internal/app/service/notification"
	"github.com/fatflowers/paysync/internal/app/service/proration"
	"github.com/fatflowers/paysync/internal/app/service/subscription"
	"github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/pkg/logctx"
	"github.com/fatflowers/paysync/pkg/types"
)

const day = 24 * time.Hour

// activationGrace is how long a completed bill without a period is assumed
// to still be activating in another call.
const activationGrace = 30 * time.Second

// activate runs the ledger side of a completed payment. Every step is keyed
// by the payment id, so running it again after a partial failure is safe.
func (s *Service) activate(ctx context.Context, p *models.Payment, reason types.SubscriptionChangeReason) (*Result, error) {
	lg := logctx.FromCtx(ctx, s.log).With("bill_id", p.BillID, "user_id", p.UserID, "plan_id", p.PlanID)
	partial := func(stage string, err error) error {
		lg.Errorw("payment completed but activation failed", "stage", stage, "err", err)
		return &PartialActivationError{BillID: p.BillID, UserID: p.UserID, PlanID: p.PlanID, Stage: stage, Err: err}
	}

	plan := s.planFor(p)
	if plan == nil {
		return nil, partial("plan", fmt.Errorf("plan %q not in catalog and no snapshot stored", p.PlanID))
	}

	res := s.result(p, OutcomeCompleted)
	paymentID := p.LedgerPaymentID()

	existing, err := s.ledger.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, partial("ledger", err)
	}
	if existing != nil {
		res.Period = existing
	} else {
		for attempt := 1; ; attempt++ {
			active, err := s.ledger.GetActivePeriod(ctx, p.UserID)
			if err != nil {
				return nil, partial("ledger", err)
			}
			decision, err := proration.Decide(s.currentFor(active), plan, s.now())
			if err != nil {
				return nil, partial("proration", err)
			}
			period, _, err := s.ledger.ApplyDecision(ctx, &subscription.ApplyRequest{
				UserID:    p.UserID,
				Plan:      plan,
				Decision:  decision,
				PaymentID: paymentID,
				Amount:    p.Amount,
				Currency:  p.Currency,
				Reason:    reason,
			})
			if errors.Is(err, subscription.ErrStaleDecision) && attempt < maxApplyAttempts {
				lg.Warnw("active period changed during activation, recomputing", "attempt", attempt)
				continue
			}
			if err != nil {
				return nil, partial("ledger", err)
			}
			res.Decision = decision
			res.Period = period
			break
		}
	}
	res.DaysAdded = daysAdded(res.Period, plan)

	if err := s.ledger.SetProfileStatus(ctx, p.UserID, types.ProfileStatusActive); err != nil {
		return nil, partial("profile", err)
	}

	s.notify(ctx, p, plan, res)

	lg.Infow("subscription activated",
		"period_id", res.Period.ID, "action", res.Period.ChangeType,
		"end_date", res.Period.EndDate, "days_added", res.DaysAdded)
	return res, nil
}

func (s *Service) planFor(p *models.Payment) *types.Plan {
	if plan := s.plans.GetPlanByID(p.PlanID); plan != nil {
		return plan
	}
	return p.GetPlanSnapshot()
}

func (s *Service) currentFor(period *models.SubscriptionPeriod) *proration.Current {
	if period == nil {
		return nil
	}
	c := &proration.Current{
		ID:           period.ID,
		PlanID:       period.PlanID,
		StartDate:    period.StartDate,
		EndDate:      period.EndDate,
		Price:        period.Amount,
		DurationDays: int(period.EndDate.Sub(period.StartDate) / day),
	}
	if plan := s.plans.GetPlanByID(period.PlanID); plan != nil {
		c.Price = plan.Price
		c.DurationDays = plan.DurationDays
	}
	return c
}

func daysAdded(period *models.SubscriptionPeriod, plan *types.Plan) int {
	if period == nil || plan == nil {
		return 0
	}
	return plan.DurationDays + period.ProratedDays
}

func (s *Service) notify(ctx context.Context, p *models.Payment, plan *types.Plan, res *Result) {
	if s.notifier == nil {
		return
	}
	ev := &notification.Event{
		Type:    models.NotificationTypePaymentSuccess,
		UserID:  p.UserID,
		Title:   "Payment successful",
		Message: fmt.Sprintf("Your %s subscription is active until %s.", planName(plan), res.Period.EndDate.Format("2 Jan 2006")),
		Metadata: map[string]any{
			"bill_id":     p.BillID,
			"provider":    string(p.Provider),
			"plan_id":     plan.ID,
			"amount":      p.Amount,
			"currency":    p.Currency,
			"period_id":   res.Period.ID,
			"action_type": string(res.Period.ChangeType),
			"days_added":  res.DaysAdded,
			"end_date":    res.Period.EndDate,
		},
	}
	if err := s.notifier.Emit(ctx, ev); err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("failed to emit payment notification", "bill_id", p.BillID, "err", err)
	}
}

func planName(plan *types.Plan) string {
	if plan.Name != "" {
		return plan.Name
	}
	return plan.ID
}

// replay returns the stored result of a terminal bill without touching the
// provider or the ledger. With strict set, a completed bill that has no
// period past activationGrace is reported as a partial activation.
func (s *Service) replay(ctx context.Context, p *models.Payment, strict bool) (*Result, error) {
	outcome := OutcomeFailed
	if p.Status == types.PaymentStatusCompleted {
		outcome = OutcomeCompleted
	}
	res := s.result(p, outcome)
	res.Replayed = true
	if outcome != OutcomeCompleted {
		return res, nil
	}

	period, err := s.ledger.FindByPaymentID(ctx, p.LedgerPaymentID())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load period for replay: %w", ErrRetryable, err)
	}
	if period == nil && strict && s.now().Sub(p.UpdatedAt) > activationGrace {
		logctx.FromCtx(ctx, s.log).Warnw("completed payment has no subscription period", "bill_id", p.BillID)
		return nil, &PartialActivationError{
			BillID: p.BillID, UserID: p.UserID, PlanID: p.PlanID, Stage: "ledger",
			Err: errors.New("no subscription period references this payment"),
		}
	}
	res.Period = period
	res.DaysAdded = daysAdded(period, s.planFor(p))
	return res, nil
}

// replayLatest reloads a bill another caller just settled.
func (s *Service) replayLatest(ctx context.Context, billID string) (*Result, error) {
	p, err := s.find(ctx, billID)
	if err != nil {
		return nil, err
	}
	return s.replay(ctx, p, false)
}

func (s *Service) Recover(ctx context.Context, billID string) (res *Result, err error) {
	if billID == "" {
		return nil, fmt.Errorf("%w: bill_id is required", ErrInvalidArgument)
	}
	ctx = context.WithoutCancel(ctx)

	p, err := s.find(ctx, billID)
	if err != nil {
		s.observe("unknown", nil, err)
		return nil, err
	}
	lg := logctx.FromCtx(ctx, s.log).With("bill_id", billID, "user_id", p.UserID, "status", p.Status)
	lg.Infow("recovering payment")

	switch p.Status {
	case types.PaymentStatusPending:
		return s.Reconcile(ctx, billID, p.UserID, p.PlanID)
	case types.PaymentStatusFailed:
		res, err = s.replay(ctx, p, false)
	default:
		period, findErr := s.ledger.FindByPaymentID(ctx, p.LedgerPaymentID())
		switch {
		case findErr != nil:
			err = fmt.Errorf("%w: failed to load period: %w", ErrRetryable, findErr)
		case period == nil:
			res, err = s.activate(ctx, p, types.SubscriptionChangeReasonRecover)
		default:
			if _, syncErr := s.ledger.SyncProfileFlag(ctx, p.UserID); syncErr != nil {
				err = &PartialActivationError{BillID: p.BillID, UserID: p.UserID, PlanID: p.PlanID, Stage: "profile", Err: syncErr}
				break
			}
			res = s.result(p, OutcomeCompleted)
			res.Replayed = true
			res.Period = period
			res.DaysAdded = daysAdded(period, s.planFor(p))
		}
	}
	s.observe(string(p.Provider), res, err)
	return res, err
}
