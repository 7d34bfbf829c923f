// Package notification writes user inbox entries.
package notification

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/pkg/logctx"
	"github.com/fatflowers/paysync/pkg/tool"
)

type Event struct {
	Type     models.NotificationType
	UserID   string
	Title    string
	Message  string
	Metadata map[string]any
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Emit appends ev to the user's inbox.
func (s *Service) Emit(ctx context.Context, ev *Event) error {
	if ev == nil || ev.UserID == "" {
		return fmt.Errorf("notification event needs a user")
	}
	n := &models.Notification{
		ID:       tool.GenerateUUIDV7(),
		UserID:   ev.UserID,
		Type:     ev.Type,
		Title:    ev.Title,
		Message:  ev.Message,
		Metadata: datatypes.JSONMap(ev.Metadata),
	}
	if n.Metadata == nil {
		n.Metadata = datatypes.JSONMap{}
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to save notification: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("notification emitted", "user_id", ev.UserID, "type", ev.Type, "notification_id", n.ID)
	return nil
}

// ListForUser returns the newest notifications first.
func (s *Service) ListForUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []*models.Notification
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return rows, nil
}

var Module = fx.Options(
	fx.Provide(NewService),
)
