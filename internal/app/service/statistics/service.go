package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/paysync/internal/models"
	"github.com/fatflowers/paysync/pkg/types"
)

type StatisticType string

const (
	// payments by provider (label) and status (label2)
	StatisticTypePaymentCount StatisticType = "payment_count"
	// completed payment amount by currency (label)
	StatisticTypeRevenue StatisticType = "revenue"
	// ledger periods by change type (label)
	StatisticTypePeriodChanges StatisticType = "period_changes"
	// webhook delivery log entries by provider (label) and status (label2)
	StatisticTypeDeliveryOutcomes StatisticType = "delivery_outcomes"
	// distinct users holding a period that has not ended
	StatisticTypeActiveSubscribers StatisticType = "active_subscribers"
)

var allTypes = []StatisticType{
	StatisticTypePaymentCount,
	StatisticTypeRevenue,
	StatisticTypePeriodChanges,
	StatisticTypeDeliveryOutcomes,
	StatisticTypeActiveSubscribers,
}

// validFilters lists, per filter field, the statistics whose table carries
// that column. A filter on any other statistic empties its result.
var validFilters = map[string][]StatisticType{
	"provider": {StatisticTypePaymentCount, StatisticTypeRevenue},
	"plan_id":  {StatisticTypePaymentCount, StatisticTypeRevenue, StatisticTypePeriodChanges},
	"currency": {StatisticTypePaymentCount, StatisticTypeRevenue, StatisticTypePeriodChanges},
}

var filterColumns = lo.MapValues(validFilters, func([]StatisticType, string) bool { return true })

type StatisticRequest struct {
	// From and To bound created_at; nil leaves that side open.
	From      *time.Time            `json:"from"`
	To        *time.Time            `json:"to"`
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []StatisticType       `json:"data_items"`
}

type StatisticDataItem struct {
	Label  string `json:"label,omitempty"`
	Label2 string `json:"label2,omitempty"`
	Value  int64  `json:"value"`
}

type StatisticResponse struct {
	DataItems map[StatisticType][]StatisticDataItem `json:"data_items"`
}

func (r *StatisticRequest) validate() error {
	for _, f := range r.Filters {
		if err := f.Validate(filterColumns); err != nil {
			return err
		}
	}
	for _, item := range r.DataItems {
		if !lo.Contains(allTypes, item) {
			return fmt.Errorf("invalid data item id: %s", item)
		}
	}
	if r.From != nil && r.To != nil && r.To.Before(*r.From) {
		return fmt.Errorf("to must not be before from")
	}
	return nil
}

// applies reports whether every filter in r can be evaluated for t.
func (r *StatisticRequest) applies(t StatisticType) bool {
	for _, f := range r.Filters {
		if !lo.Contains(validFilters[f.Field], t) {
			return false
		}
	}
	return true
}

// scope applies the time range and filters to q.
func (r *StatisticRequest) scope(q *gorm.DB) *gorm.DB {
	if r.From != nil {
		q = q.Where("created_at >= ?", r.From.UTC())
	}
	if r.To != nil {
		q = q.Where("created_at < ?", r.To.UTC())
	}
	for _, f := range r.Filters {
		q = q.Where(clause.Where{Exprs: []clause.Expression{f}})
	}
	return q
}

// Service answers aggregate questions for the admin dashboard.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) getPaymentCount(ctx context.Context, r *StatisticRequest) ([]StatisticDataItem, error) {
	var results []StatisticDataItem
	q := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select("provider AS label, status AS label2, count(*) AS value").
		Group("provider").Group("status").
		Order("label").Order("label2")
	if err := r.scope(q).Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getRevenue(ctx context.Context, r *StatisticRequest) ([]StatisticDataItem, error) {
	var results []StatisticDataItem
	q := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select("currency AS label, COALESCE(sum(amount), 0) AS value").
		Where("status = ?", types.PaymentStatusCompleted).
		Group("currency").
		Order("label")
	if err := r.scope(q).Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getPeriodChanges(ctx context.Context, r *StatisticRequest) ([]StatisticDataItem, error) {
	var results []StatisticDataItem
	q := s.db.WithContext(ctx).Model(&models.SubscriptionPeriod{}).
		Select("change_type AS label, count(*) AS value").
		Group("change_type").
		Order("label")
	if err := r.scope(q).Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getDeliveryOutcomes(ctx context.Context, r *StatisticRequest) ([]StatisticDataItem, error) {
	var results []StatisticDataItem
	q := s.db.WithContext(ctx).Model(&models.PaymentNotificationLog{}).
		Select("provider_id AS label, status AS label2, count(*) AS value").
		Group("provider_id").Group("status").
		Order("label").Order("label2")
	if err := r.scope(q).Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getActiveSubscribers(ctx context.Context, _ *StatisticRequest) ([]StatisticDataItem, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.SubscriptionPeriod{}).
		Where("status = ? AND end_date > ?", types.SubscriptionStatusActive, s.now()).
		Distinct("user_id").
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	return []StatisticDataItem{{Value: count}}, nil
}

func (s *Service) getStatistic(ctx context.Context, r *StatisticRequest, t StatisticType) ([]StatisticDataItem, error) {
	switch t {
	case StatisticTypePaymentCount:
		return s.getPaymentCount(ctx, r)
	case StatisticTypeRevenue:
		return s.getRevenue(ctx, r)
	case StatisticTypePeriodChanges:
		return s.getPeriodChanges(ctx, r)
	case StatisticTypeDeliveryOutcomes:
		return s.getDeliveryOutcomes(ctx, r)
	case StatisticTypeActiveSubscribers:
		return s.getActiveSubscribers(ctx, r)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", t)
	}
}

// GetStatistics computes the requested items concurrently. An empty
// DataItems asks for all of them.
func (s *Service) GetStatistics(ctx context.Context, r *StatisticRequest) (*StatisticResponse, error) {
	if r == nil {
		r = &StatisticRequest{}
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	items := lo.Uniq(r.DataItems)
	if len(items) == 0 {
		items = allTypes
	}

	var mu sync.Mutex
	results := make(map[StatisticType][]StatisticDataItem, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range items {
		g.Go(func() error {
			var res []StatisticDataItem
			if r.applies(item) {
				var err error
				if res, err = s.getStatistic(gctx, r, item); err != nil {
					return fmt.Errorf("failed to compute %s: %w", item, err)
				}
			}
			mu.Lock()
			results[item] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &StatisticResponse{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
