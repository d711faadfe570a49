package statistics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/deliveryhub/internal/models"
	"github.com/fatflowers/deliveryhub/pkg/config"
	"github.com/fatflowers/deliveryhub/pkg/tool"
	"github.com/fatflowers/deliveryhub/pkg/types"
)

type StatisticType string

const (
	StatisticTypeRecurrencyCountByStatus    StatisticType = "recurrency_count_by_status"
	StatisticTypeRecurrencyCountByFrequency StatisticType = "recurrency_count_by_frequency"
	// Deliveries materialized from recurrencies, by scheduled day.
	StatisticTypeDailyGeneratedDeliveryCount StatisticType = "daily_generated_delivery_count"
	// Active recurrencies per snapshot day.
	StatisticTypeDailyActiveRecurrencyCount StatisticType = "daily_active_recurrency_count"
)

// validFields lists the filter fields each statistic understands; other
// filters are dropped for that statistic.
var validFields = map[StatisticType][]string{
	StatisticTypeRecurrencyCountByStatus:     {"customer_id", "frequency", "created_at"},
	StatisticTypeRecurrencyCountByFrequency:  {"customer_id", "status", "created_at"},
	StatisticTypeDailyGeneratedDeliveryCount: {"customer_id", "scheduled_date", "payment_method"},
	StatisticTypeDailyActiveRecurrencyCount:  {"customer_id", "frequency", "snapshot_date"},
}

var filterFields = lo.Uniq(lo.Flatten(lo.Values(validFields)))

type StatisticDataItem struct {
	ID StatisticType `json:"id"`
}

type StatisticRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []*StatisticDataItem  `json:"data_items"`
}

// GetFilters keeps the filters that apply to statisticType.
func (f *StatisticRequest) GetFilters(statisticType StatisticType) types.Filters {
	if f == nil {
		return nil
	}
	return lo.Filter(f.Filters, func(filter *types.CommonFilter, _ int) bool {
		return filter != nil && lo.Contains(validFields[statisticType], filter.Field)
	})
}

type StatisticResponseDataItem struct {
	Date   string `json:"date,omitempty"`
	Label  string `json:"label,omitempty"`
	Value  int64  `json:"value"`
	Value2 int64  `json:"value2,omitempty"`
}

type StatisticResponse struct {
	DataItems map[StatisticType][]StatisticResponseDataItem `json:"data_items"`
}

// Service provides statistics operations
type Service struct {
	db  *gorm.DB
	loc *time.Location
}

func New(cfg *config.Config, db *gorm.DB) *Service {
	return &Service{db: db, loc: cfg.Location()}
}

// SaveDailySnapshots stores one snapshot per active or paused recurrency for
// the calendar day of day. Re-running it on the same day overwrites the rows.
func (s *Service) SaveDailySnapshots(ctx context.Context, day time.Time) (int, error) {
	var rows []*models.Recurrency
	if err := s.db.WithContext(ctx).
		Where("status IN ?", []types.RecurrencyStatus{types.RecurrencyStatusActive, types.RecurrencyStatusPaused}).
		Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("failed to load recurrencies: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	date := day.In(s.loc).Format(time.DateOnly)
	snaps := lo.Map(rows, func(r *models.Recurrency, _ int) *models.RecurrencyDailySnapshot {
		return &models.RecurrencyDailySnapshot{
			ID:               tool.NewID(),
			RecurrencyID:     r.ID,
			CustomerID:       r.CustomerID,
			Status:           r.Status,
			Frequency:        r.Frequency,
			NextDeliveryDate: r.NextDeliveryDate,
			DeliveriesCount:  r.DeliveriesCount,
			TotalValue:       r.TotalValue,
			SnapshotDate:     date,
		}
	})
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recurrency_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "frequency", "next_delivery_date", "deliveries_count", "total_value"}),
	}).CreateInBatches(snaps, 200).Error
	if err != nil {
		return 0, fmt.Errorf("failed to save recurrency snapshots: %w", err)
	}
	return len(snaps), nil
}

func (s *Service) getCountBy(ctx context.Context, column string, filters types.Filters) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	q := s.db.WithContext(ctx).Model(&models.Recurrency{}).
		Select(column + " as label, count(*) as value, sum(total_value) as value2").
		Where(clause.Where{Exprs: []clause.Expression{filters}}).
		Group(column).
		Order(column)
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// getDailyGeneratedDeliveryCount buckets by the scheduled day in the
// scheduler time zone; value is the count and value2 the summed total.
func (s *Service) getDailyGeneratedDeliveryCount(ctx context.Context, filters types.Filters) ([]StatisticResponseDataItem, error) {
	var rows []struct {
		ScheduledDate time.Time
		TotalValue    int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Delivery{}).
		Select("scheduled_date, total_value").
		Where("recurrency_id IS NOT NULL AND scheduled_date IS NOT NULL").
		Where(clause.Where{Exprs: []clause.Expression{filters}}).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	byDate := map[string]*StatisticResponseDataItem{}
	for _, r := range rows {
		date := r.ScheduledDate.In(s.loc).Format(time.DateOnly)
		item, ok := byDate[date]
		if !ok {
			item = &StatisticResponseDataItem{Date: date}
			byDate[date] = item
		}
		item.Value++
		item.Value2 += r.TotalValue
	}
	results := lo.Map(lo.Values(byDate), func(i *StatisticResponseDataItem, _ int) StatisticResponseDataItem { return *i })
	sort.Slice(results, func(i, j int) bool { return results[i].Date > results[j].Date })
	return results, nil
}

func (s *Service) getDailyActiveRecurrencyCount(ctx context.Context, filters types.Filters) ([]StatisticResponseDataItem, error) {
	var results []StatisticResponseDataItem
	q := s.db.WithContext(ctx).Model(&models.RecurrencyDailySnapshot{}).
		Select("snapshot_date as date, count(*) as value, sum(total_value) as value2").
		Where("status = ?", types.RecurrencyStatusActive).
		Where(clause.Where{Exprs: []clause.Expression{filters}}).
		Group("snapshot_date").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "snapshot_date"}, Desc: true})
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) getStatistic(ctx context.Context, request *StatisticRequest, dataItem *StatisticDataItem) ([]StatisticResponseDataItem, error) {
	filters := request.GetFilters(dataItem.ID)
	switch dataItem.ID {
	case StatisticTypeRecurrencyCountByStatus:
		return s.getCountBy(ctx, "status", filters)
	case StatisticTypeRecurrencyCountByFrequency:
		return s.getCountBy(ctx, "frequency", filters)
	case StatisticTypeDailyGeneratedDeliveryCount:
		return s.getDailyGeneratedDeliveryCount(ctx, filters)
	case StatisticTypeDailyActiveRecurrencyCount:
		return s.getDailyActiveRecurrencyCount(ctx, filters)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", dataItem.ID)
	}
}

func (s *Service) GetStatistic(ctx context.Context, request *StatisticRequest) (*StatisticResponse, error) {
	if request == nil || len(request.DataItems) == 0 {
		return nil, fmt.Errorf("no data items requested")
	}
	if err := types.ValidateFields(request.Filters, filterFields); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	results := make(map[StatisticType][]StatisticResponseDataItem, len(request.DataItems))
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range request.DataItems {
		if item == nil {
			continue
		}
		g.Go(func() error {
			res, err := s.getStatistic(gctx, request, item)
			if err != nil {
				return err
			}
			mu.Lock()
			results[item.ID] = res
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
