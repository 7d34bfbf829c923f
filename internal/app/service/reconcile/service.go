// Package reconcile drives a bill from pending to a terminal state using the
// provider as the source of truth, and activates the subscription it pays for.
//
// The conditional update in the payment store is the only serialization
// point: whichever caller moves a bill out of pending performs the ledger
// mutation, every other caller replays the stored result.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fatflowers/paysync/internal/app/service/notification"
	"github.com/fatflowers/paysync/internal/app/service/payment"
	"github.com/fatflowers/paysync/internal/app/service/proration"
	"github.com/fatflowers/paysync/internal/app/service/subscription"
	"github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/internal/platform/provider"
	"github.com/fatflowers/paysync/pkg/config"
	"github.com/fatflowers/paysync/pkg/logctx"
	"github.com/fatflowers/paysync/pkg/metrics"
	"github.com/fatflowers/paysync/pkg/tool"
	"github.com/fatflowers/paysync/pkg/types"
)

type PaymentStore interface {
	UpsertPending(ctx context.Context, req *payment.PendingRequest) (*models.Payment, bool, error)
	Find(ctx context.Context, billID string) (*models.Payment, error)
	MarkCompleted(ctx context.Context, billID, providerPaymentID string, paidAt time.Time, raw []byte) (*models.Payment, error)
	MarkFailed(ctx context.Context, billID string, raw []byte) (*models.Payment, error)
}

type Ledger interface {
	GetActivePeriod(ctx context.Context, userID string) (*models.SubscriptionPeriod, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.SubscriptionPeriod, error)
	ApplyDecision(ctx context.Context, req *subscription.ApplyRequest) (*models.SubscriptionPeriod, bool, error)
	SetProfileStatus(ctx context.Context, userID string, status types.ProfileStatus) error
	SyncProfileFlag(ctx context.Context, userID string) (types.ProfileStatus, error)
}

type StatusClients interface {
	FetchStatus(ctx context.Context, p types.PaymentProvider, billID string) (*provider.PaymentStatus, error)
}

type PlanCatalog interface {
	GetPlanByID(id string) *types.Plan
}

type Notifier interface {
	Emit(ctx context.Context, ev *notification.Event) error
}

type Recorder interface {
	ObserveReconcile(provider, outcome string)
}

// Manager is what the transport layer and the sweeper talk to.
type Manager interface {
	// CreatePending records a bill at purchase time, pricing it from the plan catalog.
	CreatePending(ctx context.Context, req *PendingRequest) (*models.Payment, error)
	// Reconcile settles billID against the provider. userID and planID are
	// optional; when given they must match the stored bill.
	Reconcile(ctx context.Context, billID, userID, planID string) (*Result, error)
	// Recover re-drives a bill using only what is stored, finishing an
	// activation that previously failed halfway.
	Recover(ctx context.Context, billID string) (*Result, error)
}

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomePending   Outcome = "pending"
)

type Result struct {
	BillID  string
	UserID  string
	PlanID  string
	Outcome Outcome
	// Replayed is set when the bill was already terminal and nothing was changed.
	Replayed bool
	Payment  *models.Payment
	// Decision is only set by the call that performed the activation.
	Decision  *proration.Decision
	Period    *models.SubscriptionPeriod
	DaysAdded int
}

type PendingRequest struct {
	BillID   string
	UserID   string
	PlanID   string
	Provider types.PaymentProvider
}

const maxApplyAttempts = 3

type Options struct {
	Payments  PaymentStore
	Ledger    Ledger
	Providers StatusClients
	Plans     PlanCatalog
	Notifier  Notifier
	Metrics   Recorder
	Log       *zap.SugaredLogger
	Now       func() time.Time
	// DedupeInFlight collapses concurrent calls for the same bill in this process.
	DedupeInFlight bool
}

type Service struct {
	payments  PaymentStore
	ledger    Ledger
	providers StatusClients
	plans     PlanCatalog
	notifier  Notifier
	metrics   Recorder
	log       *zap.SugaredLogger
	now       func() time.Time
	dedupe    bool
	flight    singleflight.Group
}

func New(o Options) *Service {
	s := &Service{
		payments:  o.Payments,
		ledger:    o.Ledger,
		providers: o.Providers,
		plans:     o.Plans,
		notifier:  o.Notifier,
		metrics:   o.Metrics,
		log:       o.Log,
		now:       o.Now,
		dedupe:    o.DedupeInFlight,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.log == nil {
		s.log = zap.NewNop().Sugar()
	}
	return s
}

func NewService(
	cfg *config.Config,
	payments *payment.Service,
	ledger *subscription.Service,
	providers *provider.Registry,
	notifier *notification.Service,
	rec *metrics.Recorder,
	log *zap.SugaredLogger,
) Manager {
	return New(Options{
		Payments:       payments,
		Ledger:         ledger,
		Providers:      providers,
		Plans:          cfg,
		Notifier:       notifier,
		Metrics:        rec,
		Log:            log,
		DedupeInFlight: cfg.Reconcile.DedupeInFlight,
	})
}

func (s *Service) CreatePending(ctx context.Context, req *PendingRequest) (*models.Payment, error) {
	if req == nil || strings.TrimSpace(req.BillID) == "" || req.UserID == "" || req.PlanID == "" {
		return nil, fmt.Errorf("%w: bill_id, user_id and plan_id are required", ErrInvalidArgument)
	}
	if !req.Provider.Valid() {
		return nil, fmt.Errorf("%w: unsupported provider %q", ErrInvalidArgument, req.Provider)
	}
	plan := s.plans.GetPlanByID(req.PlanID)
	if plan == nil {
		return nil, fmt.Errorf("%w: unknown plan %q", ErrInvalidArgument, req.PlanID)
	}

	p, created, err := s.payments.UpsertPending(ctx, &payment.PendingRequest{
		BillID:   strings.TrimSpace(req.BillID),
		UserID:   req.UserID,
		PlanID:   plan.ID,
		Provider: req.Provider,
		Amount:   plan.Price,
		Currency: plan.Currency,
		Plan:     plan,
		OrderRef: types.OrderRef(req.UserID, plan.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pending payment: %w", err)
	}
	if !created && (p.UserID != req.UserID || p.PlanID != req.PlanID || p.Provider != req.Provider) {
		return nil, fmt.Errorf("%w: bill %s already belongs to user %s plan %s", ErrPaymentMismatch, p.BillID, p.UserID, p.PlanID)
	}
	return p, nil
}

func (s *Service) Reconcile(ctx context.Context, billID, userID, planID string) (*Result, error) {
	billID = strings.TrimSpace(billID)
	if billID == "" {
		return nil, fmt.Errorf("%w: bill_id is required", ErrInvalidArgument)
	}
	// runs to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	if !s.dedupe {
		return s.reconcile(ctx, billID, userID, planID)
	}
	key := billID + "|" + userID + "|" + planID
	v, err, shared := s.flight.Do(key, func() (any, error) {
		return s.reconcile(ctx, billID, userID, planID)
	})
	if shared {
		logctx.FromCtx(ctx, s.log).Debugw("joined in-flight reconciliation", "bill_id", billID)
	}
	res, _ := v.(*Result)
	return res, err
}

func (s *Service) reconcile(ctx context.Context, billID, userID, planID string) (res *Result, err error) {
	lg := logctx.FromCtx(ctx, s.log).With("bill_id", billID)
	providerName := "unknown"
	defer func() {
		s.observe(providerName, res, err)
	}()

	p, err := s.find(ctx, billID)
	if err != nil {
		return nil, err
	}
	providerName = string(p.Provider)
	lg = lg.With("user_id", p.UserID, "plan_id", p.PlanID, "provider", p.Provider)

	if (userID != "" && userID != p.UserID) || (planID != "" && planID != p.PlanID) {
		lg.Warnw("reconcile request does not match stored payment", "req_user_id", userID, "req_plan_id", planID)
		return nil, fmt.Errorf("%w: bill %s", ErrPaymentMismatch, billID)
	}

	if p.Status.Terminal() {
		return s.replay(ctx, p, true)
	}

	st, err := s.providers.FetchStatus(ctx, p.Provider, billID)
	if err != nil {
		return nil, s.fetchError(ctx, p, err)
	}
	lg.Infow("provider status fetched", "state", st.State, "raw_status", st.RawStatus)

	switch st.State {
	case provider.StatePending:
		return s.result(p, OutcomePending), nil

	case provider.StateFailed:
		failed, err := s.payments.MarkFailed(ctx, billID, st.Raw)
		if errors.Is(err, payment.ErrAlreadyTerminal) {
			return s.replayLatest(ctx, billID)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to mark payment failed: %w", ErrRetryable, err)
		}
		lg.Infow("payment failed at provider")
		return s.result(failed, OutcomeFailed), nil

	case provider.StateSuccess:
		if err := checkSettlement(p, st); err != nil {
			lg.Errorw("provider settlement does not cover payment", "err", err,
				"expected_amount", p.Amount, "paid_amount", st.Amount, "paid_currency", st.Currency)
			return nil, err
		}
		paidAt := s.now()
		if st.PaidAt != nil {
			paidAt = st.PaidAt.UTC()
		}
		completed, err := s.payments.MarkCompleted(ctx, billID, st.ProviderPaymentID, paidAt, st.Raw)
		if errors.Is(err, payment.ErrAlreadyTerminal) {
			lg.Infow("payment completed by a concurrent reconciliation")
			return s.replayLatest(ctx, billID)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to mark payment completed: %w", ErrRetryable, err)
		}
		return s.activate(ctx, completed, types.SubscriptionChangeReasonPurchase)

	default:
		lg.Errorw("unknown provider state", "state", st.State)
		return nil, fmt.Errorf("%w: unknown provider state %q", ErrNeedsManualReview, st.State)
	}
}

func (s *Service) find(ctx context.Context, billID string) (*models.Payment, error) {
	p, err := s.payments.Find(ctx, billID)
	if errors.Is(err, payment.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, billID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load payment: %w", ErrRetryable, err)
	}
	return p, nil
}

func (s *Service) fetchError(ctx context.Context, p *models.Payment, err error) error {
	lg := logctx.FromCtx(ctx, s.log).With("bill_id", p.BillID, "provider", p.Provider)
	var malformed *provider.MalformedError
	switch {
	case errors.As(err, &malformed):
		lg.Errorw("malformed provider response, payment left pending",
			"reason", malformed.Reason, "body", tool.Truncate(string(malformed.Body), 2048))
		return fmt.Errorf("%w: %w", ErrNeedsManualReview, err)
	case errors.Is(err, provider.ErrMalformedResponse), errors.Is(err, provider.ErrUnknownProvider):
		lg.Errorw("provider status not usable, payment left pending", "err", err)
		return fmt.Errorf("%w: %w", ErrNeedsManualReview, err)
	default:
		lg.Warnw("provider unavailable, payment left pending", "err", err)
		return fmt.Errorf("%w: %w", ErrRetryable, err)
	}
}

// checkSettlement rejects a success that pays less than the bill or in another currency.
func checkSettlement(p *models.Payment, st *provider.PaymentStatus) error {
	if st.Amount > 0 && st.Amount < p.Amount {
		return fmt.Errorf("%w: provider reports %d, bill expects %d", ErrNeedsManualReview, st.Amount, p.Amount)
	}
	if st.Currency != "" && p.Currency != "" && !strings.EqualFold(st.Currency, p.Currency) {
		return fmt.Errorf("%w: provider currency %s, bill currency %s", ErrNeedsManualReview, st.Currency, p.Currency)
	}
	return nil
}

func (s *Service) result(p *models.Payment, outcome Outcome) *Result {
	return &Result{
		BillID:  p.BillID,
		UserID:  p.UserID,
		PlanID:  p.PlanID,
		Outcome: outcome,
		Payment: p,
	}
}

func (s *Service) observe(providerName string, res *Result, err error) {
	if s.metrics == nil {
		return
	}
	outcome := ""
	switch {
	case err != nil:
		outcome = ErrorOutcome(err)
	case res.Replayed:
		outcome = string(res.Outcome) + "_replay"
	default:
		outcome = string(res.Outcome)
	}
	s.metrics.ObserveReconcile(providerName, outcome)
}
