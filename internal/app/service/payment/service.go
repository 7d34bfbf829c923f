// Package payment is the durable record of provider bills. Status transitions
// are single-row conditional updates, which makes them the serialization
// point for concurrent reconciliations of one bill.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/pkg/logctx"
	"github.com/fatflowers/paysync/pkg/tool"
	"github.com/fatflowers/paysync/pkg/types"
)

var (
	ErrNotFound = errors.New("payment not found")
	// ErrAlreadyTerminal signals that another caller already settled the bill.
	// It is not a failure: the caller must skip its downstream effects.
	ErrAlreadyTerminal = errors.New("payment already terminal")
)

type PendingRequest struct {
	BillID   string
	UserID   string
	PlanID   string
	Provider types.PaymentProvider
	Amount   int64
	Currency string
	Plan     *types.Plan
	OrderRef string
}

func (r *PendingRequest) validate() error {
	switch {
	case r == nil:
		return fmt.Errorf("nil pending request")
	case r.BillID == "":
		return fmt.Errorf("bill_id is required")
	case r.UserID == "":
		return fmt.Errorf("user_id is required")
	case r.PlanID == "":
		return fmt.Errorf("plan_id is required")
	case !r.Provider.Valid():
		return fmt.Errorf("unsupported provider %q", r.Provider)
	case r.Amount < 0:
		return fmt.Errorf("amount must not be negative")
	}
	return nil
}

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	now func() time.Time
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// UpsertPending creates the pending record for a bill. An existing record is
// returned untouched with created=false.
func (s *Service) UpsertPending(ctx context.Context, req *PendingRequest) (p *models.Payment, created bool, err error) {
	if err := req.validate(); err != nil {
		return nil, false, err
	}

	p = &models.Payment{
		ID:       tool.GenerateUUIDV7(),
		BillID:   req.BillID,
		UserID:   req.UserID,
		PlanID:   req.PlanID,
		Provider: req.Provider,
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   types.PaymentStatusPending,
		Extra:    datatypes.NewJSONType(&models.PaymentExtra{PlanSnapshot: req.Plan, OrderRef: req.OrderRef}),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "bill_id"}}, DoNothing: true}).Create(p)
		if res.Error != nil {
			return fmt.Errorf("failed to insert payment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return s.writeLog(tx, nil, p, "upsert_pending")
	})
	if err != nil {
		return nil, false, err
	}
	if !created {
		p, err = s.Find(ctx, req.BillID)
		if err != nil {
			return nil, false, err
		}
		return p, false, nil
	}

	logctx.FromCtx(ctx, s.log).Infow("payment pending", "bill_id", p.BillID, "user_id", p.UserID, "plan_id", p.PlanID, "provider", p.Provider)
	return p, true, nil
}

// MarkCompleted moves a pending bill to completed. ErrAlreadyTerminal means
// the bill was settled by someone else; ErrNotFound means it never existed.
func (s *Service) MarkCompleted(ctx context.Context, billID, providerPaymentID string, paidAt time.Time, raw []byte) (*models.Payment, error) {
	updates := map[string]any{
		"status":      types.PaymentStatusCompleted,
		"paid_at":     paidAt.UTC(),
		"raw_payload": normalizePayload(raw),
	}
	if providerPaymentID != "" {
		updates["provider_payment_id"] = providerPaymentID
	}
	return s.transition(ctx, billID, types.PaymentStatusCompleted, updates)
}

// MarkFailed moves a pending bill to failed, with the same terminal semantics as MarkCompleted.
func (s *Service) MarkFailed(ctx context.Context, billID string, raw []byte) (*models.Payment, error) {
	return s.transition(ctx, billID, types.PaymentStatusFailed, map[string]any{
		"status":      types.PaymentStatusFailed,
		"raw_payload": normalizePayload(raw),
	})
}

func (s *Service) transition(ctx context.Context, billID string, to types.PaymentStatus, updates map[string]any) (*models.Payment, error) {
	updates["updated_at"] = s.now()

	var after models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var before models.Payment
		if err := tx.Where("bill_id = ?", billID).First(&before).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load payment: %w", err)
		}

		res := tx.Model(&models.Payment{}).
			Where("bill_id = ? AND status = ?", billID, types.PaymentStatusPending).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to mark payment %s: %w", to, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyTerminal
		}

		if err := tx.Where("bill_id = ?", billID).First(&after).Error; err != nil {
			return fmt.Errorf("failed to reload payment: %w", err)
		}
		return s.writeLog(tx, &before, &after, "mark_"+string(to))
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("payment transitioned", "bill_id", billID, "user_id", after.UserID, "status", to)
	return &after, nil
}

func (s *Service) Find(ctx context.Context, billID string) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.WithContext(ctx).Where("bill_id = ?", billID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return &p, nil
}

// ListStalePending returns pending bills created in (newerThan, olderThan), oldest first.
func (s *Service) ListStalePending(ctx context.Context, olderThan, newerThan time.Time, limit int) ([]*models.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []*models.Payment
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ? AND created_at > ?", types.PaymentStatusPending, olderThan.UTC(), newerThan.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending payments: %w", err)
	}
	return rows, nil
}

func (s *Service) writeLog(tx *gorm.DB, before, after *models.Payment, op string) error {
	entry := &models.PaymentLog{
		ID:       tool.GenerateUUIDV7(),
		BillID:   after.BillID,
		UserID:   after.UserID,
		Provider: after.Provider,
		ToStatus: after.Status,
		Before:   datatypes.NewJSONType(before),
		After:    datatypes.NewJSONType(after),
		Extra:    datatypes.JSONMap{"op": op},
	}
	if before != nil {
		entry.FromStatus = before.Status
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to write payment log: %w", err)
	}
	return nil
}

// normalizePayload keeps JSON payloads as-is and wraps anything else
// (form bodies, HTML error pages) so it still fits a jsonb column.
func normalizePayload(raw []byte) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(raw)})
	return datatypes.JSON(wrapped)
}

var Module = fx.Options(
	fx.Provide(NewService),
)
