// Package sweeper periodically re-drives bills stuck in pending, so a bill
// whose provider was unavailable does not depend on the provider's own
// webhook retries to settle.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/paysync/internal/app/service/payment"
	"github.com/fatflowers/paysync/internal/app/service/reconcile"
	"github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/pkg/config"
	"github.com/fatflowers/paysync/pkg/logctx"
	"github.com/fatflowers/paysync/pkg/metrics"
)

type PendingLister interface {
	ListStalePending(ctx context.Context, olderThan, newerThan time.Time, limit int) ([]*models.Payment, error)
}

type Recorder interface {
	ObserveSweep(result string)
}

// Summary counts what one sweep did, by reconciliation outcome.
type Summary struct {
	Visited   int            `json:"visited"`
	Completed int            `json:"completed"`
	Failed    int            `json:"failed"`
	Pending   int            `json:"pending"`
	Errors    map[string]int `json:"errors,omitempty"`
}

type Sweeper struct {
	cfg      config.SweeperConfig
	payments PendingLister
	manager  reconcile.Manager
	metrics  Recorder
	log      *zap.SugaredLogger
	now      func() time.Time
	cron     *cron.Cron
}

func New(cfg *config.Config, payments *payment.Service, manager reconcile.Manager, rec *metrics.Recorder, log *zap.SugaredLogger) *Sweeper {
	return newSweeper(cfg.Sweeper, payments, manager, rec, log)
}

func newSweeper(cfg config.SweeperConfig, payments PendingLister, manager reconcile.Manager, rec Recorder, log *zap.SugaredLogger) *Sweeper {
	return &Sweeper{
		cfg:      cfg,
		payments: payments,
		manager:  manager,
		metrics:  rec,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce reconciles one batch of bills pending longer than MinAge and
// younger than MaxAge. Per-bill failures are counted, not returned.
func (s *Sweeper) RunOnce(ctx context.Context) (*Summary, error) {
	now := s.now()
	bills, err := s.payments.ListStalePending(ctx, now.Add(-s.cfg.MinAge), now.Add(-s.cfg.MaxAge), s.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}

	lg := logctx.FromCtx(ctx, s.log)
	sum := &Summary{}
	for _, p := range bills {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Visited++
		res, err := s.manager.Reconcile(ctx, p.BillID, p.UserID, p.PlanID)
		result := sweepResult(res, err)
		s.metrics.ObserveSweep(result)
		switch result {
		case "completed":
			sum.Completed++
		case "failed":
			sum.Failed++
		case "pending":
			sum.Pending++
		default:
			if sum.Errors == nil {
				sum.Errors = map[string]int{}
			}
			sum.Errors[result]++
			lg.Warnw("sweep could not settle payment", "bill_id", p.BillID, "user_id", p.UserID, "result", result, "err", err)
		}
	}
	if sum.Visited > 0 {
		lg.Infow("payment sweep finished", "visited", sum.Visited, "completed", sum.Completed,
			"failed", sum.Failed, "pending", sum.Pending, "errors", sum.Errors)
	}
	return sum, nil
}

func sweepResult(res *reconcile.Result, err error) string {
	if err != nil {
		return reconcile.ErrorOutcome(err)
	}
	return string(res.Outcome)
}

// Start schedules RunOnce on cfg.Schedule. A run still going when the next
// one is due makes the next one skip.
func (s *Sweeper) Start() error {
	if !s.cfg.Enabled {
		s.log.Infow("payment sweeper disabled")
		return nil
	}
	cl := cronLogger{log: s.log}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RunOnce(context.Background()); err != nil {
			s.log.Errorw("payment sweep failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", s.cfg.Schedule, err)
	}
	s.cron.Start()
	s.log.Infow("payment sweeper started", "schedule", s.cfg.Schedule, "min_age", s.cfg.MinAge, "max_age", s.cfg.MaxAge)
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw("cron: "+msg, append(keysAndValues, "err", err)...)
}

func register(lc fx.Lifecycle, s *Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return s.Start() },
		OnStop:  s.Stop,
	})
}

// Module provides the sweeper without scheduling it.
var Module = fx.Options(
	fx.Provide(New),
)

// ScheduleModule runs the sweeper for the lifetime of the app.
var ScheduleModule = fx.Options(
	fx.Invoke(register),
)
