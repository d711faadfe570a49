package recurrency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/deliveryhub/internal/models"
	"github.com/fatflowers/deliveryhub/pkg/tool"
	"github.com/fatflowers/deliveryhub/pkg/types"
)

// Store is the gorm-backed recurrency repository. Bind it to a transaction
// with NewStore(tx).
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (st *Store) FindByID(ctx context.Context, id string) (*models.Recurrency, error) {
	var r models.Recurrency
	if err := st.db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get recurrency: %w", err)
	}
	return &r, nil
}

// FindActiveDueBetween returns active recurrencies with a next delivery date in [from, to).
func (st *Store) FindActiveDueBetween(ctx context.Context, from, to time.Time) ([]*models.Recurrency, error) {
	var rows []*models.Recurrency
	if err := st.db.WithContext(ctx).
		Where("status = ?", types.RecurrencyStatusActive).
		Where("next_delivery_date >= ? AND next_delivery_date < ?", from.UTC(), to.UTC()).
		Order("next_delivery_date asc").Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find due recurrencies: %w", err)
	}
	return rows, nil
}

func (st *Store) Create(ctx context.Context, r *models.Recurrency) error {
	if r.ID == "" {
		r.ID = tool.NewID()
	}
	r.Version = 1
	normalizeTimes(r)
	if err := st.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create recurrency: %w", err)
	}
	return nil
}

// Save writes every column of r if the stored version still matches r.Version,
// then bumps the version. A mismatch returns ErrConcurrentUpdate.
func (st *Store) Save(ctx context.Context, r *models.Recurrency) error {
	expected := r.Version
	r.Version = expected + 1
	normalizeTimes(r)
	res := st.db.WithContext(ctx).Model(r).
		Where("version = ?", expected).
		Select("*").Omit("id", "created_at").
		Updates(r)
	if res.Error != nil {
		r.Version = expected
		return fmt.Errorf("failed to save recurrency: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		r.Version = expected
		return fmt.Errorf("%w: %s at version %d", ErrConcurrentUpdate, r.ID, expected)
	}
	return nil
}

func (st *Store) Delete(ctx context.Context, id string) error {
	res := st.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Recurrency{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete recurrency: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List applies filters, then returns one page ordered by sortBy.
func (st *Store) List(ctx context.Context, filters types.Filters, offset, limit int, sortBy string, desc bool) ([]*models.Recurrency, int64, error) {
	q := st.db.WithContext(ctx).Model(&models.Recurrency{}).
		Where(clause.Where{Exprs: []clause.Expression{filters}})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count recurrencies: %w", err)
	}

	var rows []*models.Recurrency
	if err := q.Order(clause.OrderByColumn{Column: clause.Column{Name: sortBy}, Desc: desc}).
		Order("id desc").
		Offset(offset).Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list recurrencies: %w", err)
	}
	return rows, total, nil
}

// AppendLog records one change with before/after snapshots.
func (st *Store) AppendLog(ctx context.Context, before, after *models.Recurrency, reason types.RecurrencyChangeReason, actorID string, extra map[string]any) error {
	id := ""
	switch {
	case after != nil:
		id = after.ID
	case before != nil:
		id = before.ID
	}
	if extra == nil {
		extra = map[string]any{}
	}
	log := &models.RecurrencyLog{
		ID:           tool.NewID(),
		RecurrencyID: id,
		Reason:       reason,
		ActorID:      actorID,
		Before:       datatypes.NewJSONType(before),
		After:        datatypes.NewJSONType(after),
		Extra:        datatypes.JSONMap(extra),
	}
	if err := st.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to save recurrency log: %w", err)
	}
	return nil
}

// Logs returns the audit trail of one recurrency, oldest first.
func (st *Store) Logs(ctx context.Context, recurrencyID string) ([]*models.RecurrencyLog, error) {
	var rows []*models.RecurrencyLog
	if err := st.db.WithContext(ctx).
		Where("recurrency_id = ?", recurrencyID).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list recurrency logs: %w", err)
	}
	return rows, nil
}

// normalizeTimes stores instants in UTC so range queries compare consistently.
func normalizeTimes(r *models.Recurrency) {
	r.StartDate = r.StartDate.UTC()
	for _, p := range []**time.Time{&r.EndDate, &r.NextDeliveryDate, &r.LastDeliveryDate} {
		if *p != nil {
			t := (**p).UTC()
			*p = &t
		}
	}
}
