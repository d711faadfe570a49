package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/deliveryhub/pkg/types"
)

// Recurrency is a recurring delivery template. NextDeliveryDate is non-nil
// exactly while Status is active.
type Recurrency struct {
	ID         string                    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	CustomerID string                    `gorm:"column:customer_id;type:varchar(64);not null;index" json:"customer_id"`
	Name       string                    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Status     types.RecurrencyStatus    `gorm:"column:status;type:varchar(32);not null;index:idx_status_next_delivery_date,priority:1" json:"status"`
	Frequency  types.RecurrencyFrequency `gorm:"column:frequency;type:varchar(32);not null" json:"frequency"`
	// WeekDay is 0 (Sunday) to 6, set for weekly and biweekly.
	WeekDay *int `gorm:"column:week_day" json:"week_day,omitempty"`
	// MonthDay is 1 to 31, set for monthly.
	MonthDay *int `gorm:"column:month_day" json:"month_day,omitempty"`
	// CustomDays are days of the month, set for custom.
	CustomDays datatypes.JSONType[[]int] `gorm:"column:custom_days;type:jsonb;default:'[]'" json:"custom_days"`

	StartDate        time.Time  `gorm:"column:start_date;not null" json:"start_date"`
	EndDate          *time.Time `gorm:"column:end_date;default:null" json:"end_date,omitempty"`
	NextDeliveryDate *time.Time `gorm:"column:next_delivery_date;default:null;index:idx_status_next_delivery_date,priority:2" json:"next_delivery_date"`
	// LastDeliveryDate is the scheduled date of the latest generated delivery.
	LastDeliveryDate *time.Time `gorm:"column:last_delivery_date;default:null" json:"last_delivery_date,omitempty"`

	DeliveryAddress   datatypes.JSONType[types.Address]              `gorm:"column:delivery_address;type:jsonb;not null" json:"delivery_address"`
	Items             datatypes.JSONType[[]types.DeliveryItem]       `gorm:"column:items;type:jsonb;default:'[]'" json:"items"`
	TotalValue        int64                                          `gorm:"column:total_value;type:bigint;not null;default:0" json:"total_value"`
	DeliveryFee       int64                                          `gorm:"column:delivery_fee;type:bigint;not null;default:0" json:"delivery_fee"`
	PaymentMethod     types.PaymentMethod                            `gorm:"column:payment_method;type:varchar(32);not null" json:"payment_method"`
	Notes             string                                         `gorm:"column:notes;type:text" json:"notes,omitempty"`
	NotifyCustomer    bool                                           `gorm:"column:notify_customer;not null" json:"notify_customer"`
	NotificationHours int                                            `gorm:"column:notification_hours;not null" json:"notification_hours"`

	DeliveriesCount int                          `gorm:"column:deliveries_count;not null;default:0" json:"deliveries_count"`
	Deliveries      datatypes.JSONType[[]string] `gorm:"column:deliveries;type:jsonb;default:'[]'" json:"deliveries"`

	// Version is bumped on every write and checked on update.
	Version   int64     `gorm:"column:version;not null;default:0" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Recurrency) TableName() string {
	return "recurrency"
}

// Rule returns the schedule rule stored on the template.
func (r *Recurrency) Rule() types.ScheduleRule {
	return types.ScheduleRule{
		Frequency:  r.Frequency,
		WeekDay:    r.WeekDay,
		MonthDay:   r.MonthDay,
		CustomDays: r.CustomDays.Data(),
	}
}

// SetRule copies rule into the schedule columns.
func (r *Recurrency) SetRule(rule types.ScheduleRule) {
	r.Frequency = rule.Frequency
	r.WeekDay = rule.WeekDay
	r.MonthDay = rule.MonthDay
	r.CustomDays = datatypes.NewJSONType(rule.CustomDays)
}

func (r *Recurrency) IsActive() bool {
	return r != nil && r.Status == types.RecurrencyStatusActive
}

// Clone returns a copy safe to keep as an audit snapshot.
func (r *Recurrency) Clone() *Recurrency {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Deliveries = datatypes.NewJSONType(slices.Clone(r.Deliveries.Data()))
	cp.Items = datatypes.NewJSONType(slices.Clone(r.Items.Data()))
	cp.CustomDays = datatypes.NewJSONType(slices.Clone(r.CustomDays.Data()))
	return &cp
}
