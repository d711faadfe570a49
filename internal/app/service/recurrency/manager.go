package recurrency

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/fatflowers/deliveryhub/internal/app/service/delivery"
	"github.com/fatflowers/deliveryhub/internal/models"
	"github.com/fatflowers/deliveryhub/pkg/types"
)

type CreateRequest struct {
	CustomerID string                    `json:"customer_id"`
	Name       string                    `json:"name"`
	Frequency  types.RecurrencyFrequency `json:"frequency"`
	WeekDay    *int                      `json:"week_day,omitempty"`
	MonthDay   *int                      `json:"month_day,omitempty"`
	CustomDays []int                     `json:"custom_days,omitempty"`
	StartDate  time.Time                 `json:"start_date"`
	EndDate    *time.Time                `json:"end_date,omitempty"`
	// DeliveryAddress defaults to the customer's main address.
	DeliveryAddress *types.Address       `json:"delivery_address,omitempty"`
	Items           []types.DeliveryItem `json:"items"`
	// TotalValue of zero is derived from items and fee.
	TotalValue        int64               `json:"total_value"`
	DeliveryFee       int64               `json:"delivery_fee"`
	PaymentMethod     types.PaymentMethod `json:"payment_method,omitempty"`
	Notes             string              `json:"notes,omitempty"`
	NotifyCustomer    *bool               `json:"notify_customer,omitempty"`
	NotificationHours *int                `json:"notification_hours,omitempty"`
}

func (r *CreateRequest) rule() types.ScheduleRule {
	return types.ScheduleRule{Frequency: r.Frequency, WeekDay: r.WeekDay, MonthDay: r.MonthDay, CustomDays: r.CustomDays}
}

// UpdateRequest fields left nil are unchanged.
type UpdateRequest struct {
	Name              *string                    `json:"name,omitempty"`
	Frequency         *types.RecurrencyFrequency `json:"frequency,omitempty"`
	WeekDay           *int                       `json:"week_day,omitempty"`
	MonthDay          *int                       `json:"month_day,omitempty"`
	CustomDays        []int                      `json:"custom_days,omitempty"`
	StartDate         *time.Time                 `json:"start_date,omitempty"`
	EndDate           *time.Time                 `json:"end_date,omitempty"`
	// ClearEndDate removes the end date so the recurrency runs open-ended.
	ClearEndDate      bool                       `json:"clear_end_date,omitempty"`
	DeliveryAddress   *types.Address             `json:"delivery_address,omitempty"`
	Items             []types.DeliveryItem       `json:"items,omitempty"`
	DeliveryFee       *int64                     `json:"delivery_fee,omitempty"`
	PaymentMethod     *types.PaymentMethod       `json:"payment_method,omitempty"`
	Notes             *string                    `json:"notes,omitempty"`
	NotifyCustomer    *bool                      `json:"notify_customer,omitempty"`
	NotificationHours *int                       `json:"notification_hours,omitempty"`
}

func (r *UpdateRequest) changesSchedule() bool {
	return r.Frequency != nil || r.WeekDay != nil || r.MonthDay != nil || r.CustomDays != nil ||
		r.StartDate != nil || r.EndDate != nil || r.ClearEndDate
}

type ListRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ListResponse struct {
	Items []*models.Recurrency `json:"items"`
	Total int64                `json:"total"`
}

type GenerateResult struct {
	Delivery   *models.Delivery   `json:"delivery"`
	Recurrency *models.Recurrency `json:"recurrency"`
}

// ItemResult is the outcome for one recurrency in a due-today run.
type ItemResult struct {
	RecurrencyID string `json:"recurrency_id"`
	Success      bool   `json:"success"`
	DeliveryID   string `json:"delivery_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

type ProcessResult struct {
	Processed int          `json:"processed"`
	Results   []ItemResult `json:"results"`
}

// Failed counts unsuccessful items.
func (p *ProcessResult) Failed() int {
	n := 0
	for _, r := range p.Results {
		if !r.Success {
			n++
		}
	}
	return n
}

// DeliveryCreator materializes deliveries inside the caller's transaction.
type DeliveryCreator interface {
	Create(ctx context.Context, tx *gorm.DB, req *delivery.CreateRequest, actorID string) (*models.Delivery, error)
}

type CustomerLookup interface {
	MainAddress(ctx context.Context, customerID string) (types.Address, error)
}

// EventPublisher is notified after a generated delivery is committed.
type EventPublisher interface {
	DeliveryGenerated(ctx context.Context, r *models.Recurrency, d *models.Delivery)
}

// Manager is the recurring delivery scheduler.
type Manager interface {
	Create(ctx context.Context, req *CreateRequest, actorID string) (*models.Recurrency, error)
	Get(ctx context.Context, id string) (*models.Recurrency, error)
	List(ctx context.Context, req *ListRequest) (*ListResponse, error)
	ListByCustomer(ctx context.Context, customerID string, req *ListRequest) (*ListResponse, error)
	Update(ctx context.Context, id string, req *UpdateRequest, actorID string) (*models.Recurrency, error)
	Delete(ctx context.Context, id, actorID string) error
	History(ctx context.Context, id string) ([]*models.RecurrencyLog, error)

	Pause(ctx context.Context, id, actorID string) (*models.Recurrency, error)
	Activate(ctx context.Context, id, actorID string) (*models.Recurrency, error)
	Cancel(ctx context.Context, id, actorID string) (*models.Recurrency, error)

	// GenerateDelivery materializes the current next delivery date and advances the schedule.
	GenerateDelivery(ctx context.Context, id, actorID string) (*GenerateResult, error)
	// ProcessDueToday generates deliveries for every active recurrency due today.
	ProcessDueToday(ctx context.Context, actorID string) (*ProcessResult, error)
}
