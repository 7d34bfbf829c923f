package subscription

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	models "github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/pkg/logctx"
	"github.com/fatflowers/paysync/pkg/tool"
	types "github.com/fatflowers/paysync/pkg/types"
)

// SetProfileStatus writes the cached subscription flag on the user profile,
// creating the profile row if needed.
func (s *Service) SetProfileStatus(ctx context.Context, userID string, status types.ProfileStatus) error {
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}
	profile := &models.UserProfile{
		ID:                 tool.GenerateUUIDV7(),
		UserID:             userID,
		SubscriptionStatus: status,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"subscription_status", "updated_at"}),
	}).Create(profile).Error
	if err != nil {
		return fmt.Errorf("failed to set profile status: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("profile flag updated", "user_id", userID, "status", status)
	return nil
}

// SyncProfileFlag recomputes the profile flag from the ledger and stores it.
func (s *Service) SyncProfileFlag(ctx context.Context, userID string) (types.ProfileStatus, error) {
	current, err := s.GetActivePeriod(ctx, userID)
	if err != nil {
		return "", err
	}
	status, err := s.derivedProfileStatus(s.db.WithContext(ctx), userID, current)
	if err != nil {
		return "", err
	}
	if err := s.SetProfileStatus(ctx, userID, status); err != nil {
		return "", err
	}
	return status, nil
}

// derivedProfileStatus is the flag value the ledger implies for userID.
func (s *Service) derivedProfileStatus(tx *gorm.DB, userID string, current *models.SubscriptionPeriod) (types.ProfileStatus, error) {
	if current != nil {
		return types.ProfileStatusActive, nil
	}
	var latest models.SubscriptionPeriod
	err := tx.Where("user_id = ?", userID).Order("end_date DESC, id DESC").First(&latest).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return types.ProfileStatusInactive, nil
	case err != nil:
		return "", fmt.Errorf("failed to load latest period: %w", err)
	case latest.Status == types.SubscriptionStatusCancelled:
		return types.ProfileStatusCancelled, nil
	default:
		return types.ProfileStatusExpired, nil
	}
}

func (s *Service) getProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &p, nil
}
