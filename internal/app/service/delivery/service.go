package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/deliveryhub/internal/models"
	"github.com/fatflowers/deliveryhub/internal/platform/clock"
	"github.com/fatflowers/deliveryhub/pkg/logctx"
	"github.com/fatflowers/deliveryhub/pkg/tool"
	"github.com/fatflowers/deliveryhub/pkg/types"
)

var (
	ErrNotFound     = errors.New("delivery not found")
	ErrInvalidInput = errors.New("invalid delivery")
)

// CreateRequest is the delivery payload. TotalValue of zero is derived from
// items and fee.
type CreateRequest struct {
	CustomerID      string               `json:"customer_id"`
	DeliveryAddress types.Address        `json:"delivery_address"`
	Items           []types.DeliveryItem `json:"items"`
	ScheduledDate   *time.Time           `json:"scheduled_date,omitempty"`
	TotalValue      int64                `json:"total_value"`
	DeliveryFee     int64                `json:"delivery_fee"`
	PaymentMethod   types.PaymentMethod  `json:"payment_method"`
	Notes           string               `json:"notes,omitempty"`
	RecurrencyID    *string              `json:"recurrency_id,omitempty"`
	Status          types.DeliveryStatus `json:"status,omitempty"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.SugaredLogger
	clock clock.Clock
}

func NewService(db *gorm.DB, log *zap.SugaredLogger, clk clock.Clock) *Service {
	return &Service{db: db, log: log, clock: clk}
}

// Create inserts a delivery using tx, or the service's db when tx is nil,
// and stamps the first status history entry with actorID.
func (s *Service) Create(ctx context.Context, tx *gorm.DB, req *CreateRequest, actorID string) (*models.Delivery, error) {
	if req == nil || req.CustomerID == "" {
		return nil, fmt.Errorf("%w: customer is required", ErrInvalidInput)
	}
	if tx == nil {
		tx = s.db
	}
	status := req.Status
	if status == "" {
		status = types.DeliveryStatusPending
	}
	payment := req.PaymentMethod
	if payment == "" {
		payment = types.PaymentMethodCash
	}
	total := req.TotalValue
	if total == 0 {
		total = types.ItemsTotal(req.Items) + req.DeliveryFee
	}
	var scheduled *time.Time
	if req.ScheduledDate != nil {
		t := req.ScheduledDate.UTC()
		scheduled = &t
	}
	d := &models.Delivery{
		ID:              tool.NewID(),
		CustomerID:      req.CustomerID,
		Status:          status,
		DeliveryAddress: datatypes.NewJSONType(req.DeliveryAddress),
		Items:           datatypes.NewJSONType(req.Items),
		ScheduledDate:   scheduled,
		TotalValue:      total,
		DeliveryFee:     req.DeliveryFee,
		PaymentMethod:   payment,
		IsPaid:          payment == types.PaymentMethodAlreadyPaid,
		Notes:           req.Notes,
		RecurrencyID:    req.RecurrencyID,
		StatusHistory: datatypes.NewJSONType([]types.DeliveryStatusChange{{
			Status: status,
			Date:   s.clock.Now(ctx).UTC(),
			By:     actorID,
		}}),
		CreatedBy: actorID,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		return nil, fmt.Errorf("failed to create delivery: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("delivery created", "delivery_id", d.ID, "customer_id", d.CustomerID, "recurrency_id", req.RecurrencyID)
	return d, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Delivery, error) {
	var d models.Delivery
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	return &d, nil
}

// ListByRecurrency returns the deliveries produced by one recurrency, oldest first.
func (s *Service) ListByRecurrency(ctx context.Context, recurrencyID string) ([]*models.Delivery, error) {
	var rows []*models.Delivery
	if err := s.db.WithContext(ctx).
		Where("recurrency_id = ?", recurrencyID).
		Order("scheduled_date asc").Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return rows, nil
}

var Module = fx.Options(
	fx.Provide(NewService),
)
