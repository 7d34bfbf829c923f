// Package subscription is the subscription ledger: the authoritative record
// of each user's subscription periods, plus the profile flag cached from it.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	models "github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/pkg/config"
	"github.com/fatflowers/paysync/pkg/logctx"
	types "github.com/fatflowers/paysync/pkg/types"
)

type Service struct {
	cfg *config.Config
	db  *gorm.DB
	log *zap.SugaredLogger
	now func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// GetActivePeriod returns the user's active, not yet ended period, or nil.
// More than one such row breaks the ledger invariant: the newest wins and the
// inconsistency is logged.
func (s *Service) GetActivePeriod(ctx context.Context, userID string) (*models.SubscriptionPeriod, error) {
	rows, err := s.activePeriods(s.db.WithContext(ctx), userID, false)
	if err != nil {
		return nil, err
	}
	current := s.pickCurrent(ctx, userID, rows)
	return current, nil
}

func (s *Service) activePeriods(tx *gorm.DB, userID string, lock bool) ([]*models.SubscriptionPeriod, error) {
	q := tx.Where("user_id = ? AND status = ?", userID, types.SubscriptionStatusActive)
	if lock {
		q = q.Clauses(forUpdate)
	}
	var rows []*models.SubscriptionPeriod
	if err := q.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load active periods: %w", err)
	}
	return rows, nil
}

// pickCurrent returns the newest row of rows that has not ended yet.
func (s *Service) pickCurrent(ctx context.Context, userID string, rows []*models.SubscriptionPeriod) *models.SubscriptionPeriod {
	now := s.now()
	var current *models.SubscriptionPeriod
	live := 0
	for _, r := range rows {
		if !r.Valid(now) {
			continue
		}
		live++
		if current == nil {
			current = r
		}
	}
	if live > 1 {
		logctx.FromCtx(ctx, s.log).Errorw("ledger inconsistency: multiple active periods",
			"user_id", userID, "count", live, "chosen_period_id", current.ID)
	}
	return current
}

// FindByPaymentID returns the period funded by paymentID, or nil.
func (s *Service) FindByPaymentID(ctx context.Context, paymentID string) (*models.SubscriptionPeriod, error) {
	var p models.SubscriptionPeriod
	err := s.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find period by payment id: %w", err)
	}
	return &p, nil
}

// ListPeriods returns the user's periods, newest first.
func (s *Service) ListPeriods(ctx context.Context, userID string, limit int) ([]*models.SubscriptionPeriod, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []*models.SubscriptionPeriod
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	return rows, nil
}

// GetUserSubscriptionInfo reads the ledger first and reports whether the
// cached profile flag agrees with it.
func (s *Service) GetUserSubscriptionInfo(ctx context.Context, userID string) (*types.UserSubscriptionInfo, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	current, err := s.GetActivePeriod(ctx, userID)
	if err != nil {
		return nil, err
	}
	want, err := s.derivedProfileStatus(s.db.WithContext(ctx), userID, current)
	if err != nil {
		return nil, err
	}

	info := &types.UserSubscriptionInfo{UserID: userID, Status: want}
	if current != nil {
		info.PlanID = current.PlanID
		start, end := current.StartDate, current.EndDate
		info.StartDate, info.ExpireAt = &start, &end
	}

	profile, err := s.getProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile != nil {
		info.ProfileStatus = profile.SubscriptionStatus
	}
	info.InSync = info.ProfileStatus == want
	return info, nil
}
