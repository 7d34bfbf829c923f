package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/fatflowers/paysync/internal/app/service/notification"
	"github.com/fatflowers/paysync/internal/app/service/payment"
	"github.com/fatflowers/paysync/internal/app/service/subscription"
	"github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/internal/platform/db/dbtest"
	"github.com/fatflowers/paysync/internal/platform/provider"
	"github.com/fatflowers/paysync/pkg/config"
	"github.com/fatflowers/paysync/pkg/types"
)

var (
	monthly = &types.Plan{ID: "monthly_premium", Name: "Monthly Premium", Price: 3990, Currency: "MYR", DurationDays: 30}
	annual  = &types.Plan{ID: "annual_premium", Name: "Annual Premium", Price: 39900, Currency: "MYR", DurationDays: 365}
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(billID string) (*provider.PaymentStatus, error)
}

func (f *fakeProvider) FetchStatus(_ context.Context, _ types.PaymentProvider, billID string) (*provider.PaymentStatus, error) {
	f.mu.Lock()
	f.calls++
	fn := f.fn
	f.mu.Unlock()
	return fn(billID)
}

func (f *fakeProvider) set(fn func(billID string) (*provider.PaymentStatus, error)) {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// paidFull reports success for the full price of plan.
func paidFull(plan *types.Plan) func(string) (*provider.PaymentStatus, error) {
	return func(billID string) (*provider.PaymentStatus, error) {
		return &provider.PaymentStatus{
			State:             provider.StateSuccess,
			RawStatus:         "1",
			ProviderPaymentID: "TP-" + billID,
			Amount:            plan.Price,
			Currency:          plan.Currency,
			Raw:               []byte(fmt.Sprintf(`[{"billpaymentStatus":"1","billpaymentInvoiceNo":"TP-%s"}]`, billID)),
		}, nil
	}
}

func withState(state provider.State, raw string) func(string) (*provider.PaymentStatus, error) {
	return func(string) (*provider.PaymentStatus, error) {
		return &provider.PaymentStatus{State: state, RawStatus: raw, Raw: []byte(`{"status":"` + raw + `"}`)}, nil
	}
}

// faultyLedger wraps the real ledger and fails selected writes on demand.
type faultyLedger struct {
	*subscription.Service
	failApply   atomic.Bool
	failProfile atomic.Bool
	afterApply  func(error)
}

func (l *faultyLedger) ApplyDecision(ctx context.Context, req *subscription.ApplyRequest) (*models.SubscriptionPeriod, bool, error) {
	if l.failApply.Load() {
		return nil, false, errors.New("ledger unavailable")
	}
	period, created, err := l.Service.ApplyDecision(ctx, req)
	if l.afterApply != nil {
		l.afterApply(err)
	}
	return period, created, err
}

func (l *faultyLedger) SetProfileStatus(ctx context.Context, userID string, status types.ProfileStatus) error {
	if l.failProfile.Load() {
		return errors.New("profile store unavailable")
	}
	return l.Service.SetProfileStatus(ctx, userID, status)
}

type failingNotifier struct{}

func (failingNotifier) Emit(context.Context, *notification.Event) error {
	return errors.New("inbox unavailable")
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *fakeRecorder) ObserveReconcile(p, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, p+":"+outcome)
}

type testEnv struct {
	svc      *Service
	db       *gorm.DB
	payments *payment.Service
	ledger   *faultyLedger
	inbox    *notification.Service
	provider *fakeProvider
	rec      *fakeRecorder
	logs     *observer.ObservedLogs
	now      time.Time
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db := dbtest.Open(t)
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core).Sugar()
	cfg := &config.Config{Plans: []*types.Plan{monthly, annual}}

	e := &testEnv{
		db:       db,
		payments: payment.NewService(db, log),
		ledger:   &faultyLedger{Service: subscription.NewService(cfg, db, log)},
		inbox:    notification.NewService(db, log),
		provider: &fakeProvider{fn: withState(provider.StatePending, "2")},
		rec:      &fakeRecorder{},
		logs:     logs,
		now:      time.Now().UTC().Truncate(time.Second),
	}
	e.svc = New(Options{
		Payments:  e.payments,
		Ledger:    e.ledger,
		Providers: e.provider,
		Plans:     cfg,
		Notifier:  e.inbox,
		Metrics:   e.rec,
		Log:       log,
		Now:       func() time.Time { return e.now },
	})
	return e
}

func (e *testEnv) seed(t *testing.T, billID, userID string, plan *types.Plan) {
	t.Helper()
	_, err := e.svc.CreatePending(context.Background(), &PendingRequest{
		BillID: billID, UserID: userID, PlanID: plan.ID, Provider: types.PaymentProviderToyyibPay,
	})
	require.NoError(t, err)
}

func (e *testEnv) paymentStatus(t *testing.T, billID string) types.PaymentStatus {
	t.Helper()
	p, err := e.payments.Find(context.Background(), billID)
	require.NoError(t, err)
	return p.Status
}

func (e *testEnv) periodCount(t *testing.T, userID string) int {
	t.Helper()
	rows, err := e.ledger.ListPeriods(context.Background(), userID, 100)
	require.NoError(t, err)
	return len(rows)
}

func TestReconcile_NewSubscription(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, "bill-1", "u1", monthly)
	e.provider.set(paidFull(monthly))

	res, err := e.svc.Reconcile(ctx, "bill-1", "u1", monthly.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.False(t, res.Replayed)
	require.NotNil(t, res.Decision)
	assert.Equal(t, types.ChangeTypeNew, res.Decision.ActionType)
	require.NotNil(t, res.Period)
	assert.Equal(t, types.SubscriptionStatusActive, res.Period.Status)
	assert.Equal(t, types.ChangeTypeNew, res.Period.ChangeType)
	assert.True(t, e.now.AddDate(0, 0, 30).Equal(res.Period.EndDate), "end date %s", res.Period.EndDate)
	assert.Equal(t, "TP-bill-1", res.Period.PaymentID)
	assert.Equal(t, 30, res.DaysAdded)

	assert.Equal(t, types.PaymentStatusCompleted, e.paymentStatus(t, "bill-1"))
	info, err := e.ledger.GetUserSubscriptionInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.ProfileStatusActive, info.Status)
	assert.Equal(t, types.ProfileStatusActive, info.ProfileStatus)
	assert.True(t, info.InSync)

	inbox, err := e.inbox.ListForUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Contains(t, inbox[0].Message, "Monthly Premium")
	assert.Equal(t, []string{"toyyibpay:completed"}, e.rec.outcomes)
}

func TestReconcile_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, "bill-1", "u1", monthly)
	e.provider.set(paidFull(monthly))

	first, err := e.svc.Reconcile(ctx, "bill-1", "u1", monthly.ID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := e.svc.Reconcile(ctx, "bill-1", "", "")
		require.NoError(t, err)
		assert.True(t, again.Replayed)
		assert.Equal(t, OutcomeCompleted, again.Outcome)
		require.NotNil(t, again.Period)
		assert.Equal(t, first.Period.ID, again.Period.ID)
		assert.Equal(t, first.DaysAdded, again.DaysAdded)
	}

	assert.Equal(t, 1, e.provider.Calls())
	assert.Equal(t, 1, e.periodCount(t, "u1"))
	inbox, err := e.inbox.ListForUser(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, inbox, 1)
}

func TestReconcile_ConcurrentDuplicatesActivateOnce(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "bill-1", "u1", monthly)
	e.provider.set(paidFull(monthly))

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		results  []*Result
		failures []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.svc.Reconcile(context.Background(), "bill-1", "u1", monthly.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			results = append(results, res)
		}()
	}
	wg.Wait()

	require.Empty(t, failures)
	require.Len(t, results, n)
	activations := 0
	for _, r := range results {
		assert.Equal(t, OutcomeCompleted, r.Outcome)
		if !r.Replayed {
			activations++
		}
	}
	assert.Equal(t, 1, activations)
	assert.Equal(t, 1, e.periodCount(t, "u1"))
}

func TestReconcile_DedupeInFlightSharesResult(t *testing.T) {
	e := newEnv(t)
	e.svc.dedupe = true
	e.seed(t, "bill-1", "u1", monthly)

	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	e.provider.set(func(billID string) (*provider.PaymentStatus, error) {
		entered <- struct{}{}
		<-release
		return paidFull(monthly)(billID)
	})

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = e.svc.Reconcile(context.Background(), "bill-1", "u1", monthly.ID)
	}()
	<-entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = e.svc.Reconcile(context.Background(), "bill-1", "u1", monthly.ID)
	}()
	// give the second caller time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.Equal(t, 1, e.provider.Calls())
	assert.Same(t, results[0], results[1])
	assert.Equal(t, 1, e.periodCount(t, "u1"))
}

func TestReconcile_SamePlanExtends(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.provider.set(paidFull(monthly))

	e.seed(t, "bill-1", "u1", monthly)
	first, err := e.svc.Reconcile(ctx, "bill-1", "u1", monthly.ID)
	require.NoError(t, err)

	e.now = e.now.AddDate(0, 0, 20)
	e.seed(t, "bill-2", "u1", monthly)
	second, err := e.svc.Reconcile(ctx, "bill-2", "u1", monthly.ID)
	require.NoError(t, err)

	assert.Equal(t, types.ChangeTypeExtension, second.Period.ChangeType)
	assert.True(t, first.Period.EndDate.AddDate(0, 0, 30).Equal(second.Period.EndDate))
	assert.True(t, first.Period.StartDate.Equal(second.Period.StartDate))
	require.NotNil(t, second.Period.PreviousPeriodID)
	assert.Equal(t, first.Period.ID, *second.Period.PreviousPeriodID)

	rows, err := e.ledger.ListPeriods(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	statuses := map[string]types.SubscriptionStatus{}
	for _, r := range rows {
		statuses[r.ID] = r.Status
	}
	assert.Equal(t, types.SubscriptionStatusReplaced, statuses[first.Period.ID])
	assert.Equal(t, types.SubscriptionStatusActive, statuses[second.Period.ID])
}

func TestReconcile_DowngradeFromAnnualCreditsDays(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.provider.set(paidFull(annual))
	e.seed(t, "bill-annual", "u1", annual)
	_, err := e.svc.Reconcile(ctx, "bill-annual", "u1", annual.ID)
	require.NoError(t, err)

	// 300 days left on the annual plan
	e.now = e.now.AddDate(0, 0, 65)
	e.provider.set(paidFull(monthly))
	e.seed(t, "bill-monthly", "u1", monthly)
	res, err := e.svc.Reconcile(ctx, "bill-monthly", "u1", monthly.ID)
	require.NoError(t, err)

	require.NotNil(t, res.Decision)
	assert.Equal(t, types.ChangeTypeDowngrade, res.Decision.ActionType)
	assert.Equal(t, 300, res.Decision.RemainingDays)
	assert.Equal(t, int64(28804), res.Decision.RefundAmount)
	assert.Equal(t, 216, res.Period.ProratedDays)
	assert.Equal(t, 246, res.DaysAdded)
	assert.True(t, e.now.AddDate(0, 0, 246).Equal(res.Period.EndDate))
}

func TestReconcile_ConcurrentFirstPurchaseRecomputesAsUpgrade(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.provider.set(func(billID string) (*provider.PaymentStatus, error) {
		if billID == "bill-a" {
			return paidFull(monthly)(billID)
		}
		return paidFull(annual)(billID)
	})
	e.seed(t, "bill-a", "u1", monthly)
	e.seed(t, "bill-b", "u1", annual)

	// bill-a's insert lands after bill-b has read "no active period"
	var raced bool
	require.NoError(t, e.db.Callback().Create().Before("gorm:create").Register("test:interleave_bill_a", func(tx *gorm.DB) {
		p, ok := tx.Statement.Dest.(*models.SubscriptionPeriod)
		if !ok || raced || p.PlanID != annual.ID {
			return
		}
		raced = true
		now := e.now
		tx.Session(&gorm.Session{NewDB: true}).Create(&models.SubscriptionPeriod{
			ID: "inflight-a", UserID: "u1", PlanID: monthly.ID, Status: types.SubscriptionStatusActive,
			StartDate: now, EndDate: now.AddDate(0, 0, 30), PaymentID: "inflight-a",
			Amount: monthly.Price, Currency: monthly.Currency, ChangeType: types.ChangeTypeNew,
		})
	}))
	var committed bool
	e.ledger.afterApply = func(err error) {
		if committed || !errors.Is(err, subscription.ErrStaleDecision) {
			return
		}
		committed = true
		_, err = e.svc.Reconcile(ctx, "bill-a", "u1", monthly.ID)
		require.NoError(t, err)
	}

	res, err := e.svc.Reconcile(ctx, "bill-b", "u1", annual.ID)
	require.NoError(t, err)
	require.True(t, raced)
	require.True(t, committed)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	require.NotNil(t, res.Decision)
	assert.Equal(t, types.ChangeTypeUpgrade, res.Decision.ActionType)
	require.NotNil(t, res.Period.PreviousPeriodID)
	assert.Equal(t, 1, e.logs.FilterMessage("active period changed during activation, recomputing").Len())

	active, err := e.ledger.GetActivePeriod(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, res.Period.ID, active.ID)
	assert.Equal(t, 2, e.periodCount(t, "u1"))
	assert.Equal(t, types.PaymentStatusCompleted, e.paymentStatus(t, "bill-a"))
	assert.Equal(t, types.PaymentStatusCompleted, e.paymentStatus(t, "bill-b"))
}

func TestReconcile_NonSuccessNeverTouchesLedger(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seed(t, "bill-pending", "u1", monthly)
	e.provider.set(withState(provider.StatePending, "2"))
	res, err := e.svc.Reconcile(ctx, "bill-pending", "u1", monthly.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, res.Outcome)
	assert.Equal(t, types.PaymentStatusPending, e.paymentStatus(t, "bill-pending"))

	e.seed(t, "bill-failed", "u1", monthly)
	e.provider.set(withState(provider.StateFailed, "3"))
	res, err = e.svc.Reconcile(ctx, "bill-failed", "u1", monthly.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.False(t, res.Replayed)
	assert.Equal(t, types.PaymentStatusFailed, e.paymentStatus(t, "bill-failed"))

	res, err = e.svc.Reconcile(ctx, "bill-failed", "", "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.True(t, res.Replayed)

	assert.Equal(t, 0, e.periodCount(t, "u1"))
	info, err := e.ledger.GetUserSubscriptionInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, info.ProfileStatus)
	assert.Equal(t, []string{"toyyibpay:pending", "toyyibpay:failed", "toyyibpay:failed_replay"}, e.rec.outcomes)
}

func TestReconcile_ProviderErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  func(string) (*provider.PaymentStatus, error)
		wantErr error
		wantLog string
	}{
		{
			name: "malformed html",
			status: func(string) (*provider.PaymentStatus, error) {
				return nil, &provider.MalformedError{Provider: types.PaymentProviderToyyibPay, Reason: "unparseable body", Body: []byte("<html>502 Bad Gateway</html>")}
			},
			wantErr: ErrNeedsManualReview,
			wantLog: "malformed provider response, payment left pending",
		},
		{
			name: "unavailable",
			status: func(string) (*provider.PaymentStatus, error) {
				return nil, fmt.Errorf("%w: context deadline exceeded", provider.ErrUnavailable)
			},
			wantErr: ErrRetryable,
			wantLog: "provider unavailable, payment left pending",
		},
		{
			name: "underpaid",
			status: func(billID string) (*provider.PaymentStatus, error) {
				st, _ := paidFull(monthly)(billID)
				st.Amount = 100
				return st, nil
			},
			wantErr: ErrNeedsManualReview,
			wantLog: "provider settlement does not cover payment",
		},
		{
			name: "wrong currency",
			status: func(billID string) (*provider.PaymentStatus, error) {
				st, _ := paidFull(monthly)(billID)
				st.Currency = "SGD"
				return st, nil
			},
			wantErr: ErrNeedsManualReview,
			wantLog: "provider settlement does not cover payment",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			e.seed(t, "bill-1", "u1", monthly)
			e.provider.set(tc.status)

			res, err := e.svc.Reconcile(context.Background(), "bill-1", "u1", monthly.ID)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, types.PaymentStatusPending, e.paymentStatus(t, "bill-1"))
			assert.Equal(t, 0, e.periodCount(t, "u1"))
			assert.Equal(t, 1, e.logs.FilterMessage(tc.wantLog).Len())
		})
	}
}

func TestReconcile_MalformedKeepsUnderlyingError(t *testing.T) {
	e := newEnv(t)
	e.seed(t, "bill-1", "u1", monthly)
	e.provider.set(func(string) (*provider.PaymentStatus, error) {
		return nil, &provider.MalformedError{Provider: types.PaymentProviderToyyibPay, Reason: "no status field", Body: []byte(`{}`)}
	})

	_, err := e.svc.Reconcile(context.Background(), "bill-1", "", "")
	assert.ErrorIs(t, err, provider.ErrMalformedResponse)
	entries := e.logs.FilterMessage("malformed provider response, payment left pending").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "{}", entries[0].ContextMap()["body"])
}

func TestReconcile_LookupErrors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, "bill-1", "u1", monthly)

	_, err := e.svc.Reconcile(ctx, "  ", "u1", monthly.ID)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = e.svc.Reconcile(ctx, "missing", "u1", monthly.ID)
	assert.ErrorIs(t, err, ErrPaymentNotFound)

	_, err = e.svc.Reconcile(ctx, "bill-1", "someone-else", monthly.ID)
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	_, err = e.svc.Reconcile(ctx, "bill-1", "u1", annual.ID)
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	assert.Equal(t, 0, e.provider.Calls())
}

func TestReconcile_NotificationFailureIsNotFatal(t *testing.T) {
	e := newEnv(t)
	e.svc.notifier = failingNotifier{}
	e.seed(t, "bill-1", "u1", monthly)
	e.provider.set(paidFull(monthly))

	res, err := e.svc.Reconcile(context.Background(), "bill-1", "u1", monthly.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 1, e.logs.FilterMessage("failed to emit payment notification").Len())
}

func TestPartialActivation_ProfileThenRecover(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, "bill-1", "u1", monthly)
	e.provider.set(paidFull(monthly))
	e.ledger.failProfile.Store(true)

	_, err := e.svc.Reconcile(ctx, "bill-1", "u1", monthly.ID)
	var partial *PartialActivationError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, err, ErrPartialActivation)
	assert.Equal(t, "profile", partial.Stage)
	assert.Equal(t, "bill-1", partial.BillID)
	assert.Equal(t, "u1", partial.UserID)
	assert.Equal(t, monthly.ID, partial.PlanID)

	// payment completion is never rolled back
	assert.Equal(t, types.PaymentStatusCompleted, e.paymentStatus(t, "bill-1"))
	assert.Equal(t, 1, e.periodCount(t, "u1"))

	e.ledger.failProfile.Store(false)
	res, err := e.svc.Recover(ctx, "bill-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.True(t, res.Replayed)
	require.NotNil(t, res.Period)

	info, err := e.ledger.GetUserSubscriptionInfo(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, types.ProfileStatusActive, info.ProfileStatus)
	assert.Equal(t, 1, e.periodCount(t, "u1"))
	assert.Equal(t, 1, e.provider.Calls())
}

func TestPartialActivation_LedgerThenRecover(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, "bill-1", "u1", monthly)
	e.provider.set(paidFull(monthly))
	e.ledger.failApply.Store(true)

	_, err := e.svc.Reconcile(ctx, "bill-1", "u1", monthly.ID)
	var partial *PartialActivationError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "ledger", partial.Stage)
	assert.Equal(t, types.PaymentStatusCompleted, e.paymentStatus(t, "bill-1"))

	// a redelivered webhook still reports the unfinished activation
	e.now = e.now.Add(time.Minute)
	_, err = e.svc.Reconcile(ctx, "bill-1", "u1", monthly.ID)
	assert.ErrorIs(t, err, ErrPartialActivation)
	assert.Equal(t, 0, e.periodCount(t, "u1"))

	e.ledger.failApply.Store(false)
	res, err := e.svc.Recover(ctx, "bill-1")
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	require.NotNil(t, res.Period)
	assert.Equal(t, types.ChangeTypeNew, res.Period.ChangeType)
	assert.Equal(t, 1, e.periodCount(t, "u1"))
	assert.Equal(t, 1, e.provider.Calls())

	again, err := e.svc.Recover(ctx, "bill-1")
	require.NoError(t, err)
	assert.Equal(t, res.Period.ID, again.Period.ID)
	assert.Equal(t, 1, e.periodCount(t, "u1"))
}

func TestRecover_PendingReconciles(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.seed(t, "bill-1", "u1", monthly)
	e.provider.set(paidFull(monthly))

	res, err := e.svc.Recover(ctx, "bill-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, "u1", res.UserID)

	_, err = e.svc.Recover(ctx, "missing")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestCreatePending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	p, err := e.svc.CreatePending(ctx, &PendingRequest{BillID: "bill-1", UserID: "u1", PlanID: annual.ID, Provider: types.PaymentProviderChip})
	require.NoError(t, err)
	assert.Equal(t, annual.Price, p.Amount)
	assert.Equal(t, "MYR", p.Currency)
	assert.Equal(t, types.PaymentStatusPending, p.Status)
	assert.Equal(t, annual.ID, p.GetPlanSnapshot().ID)

	again, err := e.svc.CreatePending(ctx, &PendingRequest{BillID: "bill-1", UserID: "u1", PlanID: annual.ID, Provider: types.PaymentProviderChip})
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)

	_, err = e.svc.CreatePending(ctx, &PendingRequest{BillID: "bill-1", UserID: "u2", PlanID: annual.ID, Provider: types.PaymentProviderChip})
	assert.ErrorIs(t, err, ErrPaymentMismatch)

	_, err = e.svc.CreatePending(ctx, &PendingRequest{BillID: "bill-2", UserID: "u1", PlanID: "lifetime", Provider: types.PaymentProviderChip})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = e.svc.CreatePending(ctx, &PendingRequest{BillID: "bill-2", UserID: "u1", PlanID: annual.ID, Provider: "stripe"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
