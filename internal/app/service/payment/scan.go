package payment

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/pkg/types"
)

type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.Payment `json:"items"`
	Total int64             `json:"total"`
}

const maxScanSize = 200

var scannableColumns = map[string]bool{
	"bill_id":             true,
	"user_id":             true,
	"plan_id":             true,
	"provider":            true,
	"status":              true,
	"amount":              true,
	"currency":            true,
	"provider_payment_id": true,
	"paid_at":             true,
	"created_at":          true,
	"updated_at":          true,
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

// Scan lists payments for the admin console with column filters and pagination.
func (s *Service) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	for _, f := range req.Filters {
		if f == nil {
			return nil, fmt.Errorf("nil filter")
		}
		if err := f.Validate(scannableColumns); err != nil {
			return nil, err
		}
	}
	if req.SortBy != "" && !scannableColumns[req.SortBy] {
		return nil, fmt.Errorf("cannot sort by %q", req.SortBy)
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.Size > maxScanSize {
		req.Size = maxScanSize
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.Payment{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count payments: %w", err)
	}

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	q := tx.Limit(req.Size).Offset(req.From).
		Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}})

	var rows []*models.Payment
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return &ScanResponse{Items: rows, Total: total}, nil
}
