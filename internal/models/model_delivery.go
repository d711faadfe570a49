package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/deliveryhub/pkg/types"
)

// Delivery is a concrete order, either entered directly or materialized from a recurrency.
type Delivery struct {
	ID              string                                   `gorm:"column:id;type:uuid;primary_key;index:idx_customer_id_id,priority:2,sort:desc" json:"id"`
	CustomerID      string                                   `gorm:"column:customer_id;type:varchar(64);not null;index:idx_customer_id_id,priority:1" json:"customer_id"`
	Status          types.DeliveryStatus                     `gorm:"column:status;type:varchar(32);not null" json:"status"`
	DeliveryAddress datatypes.JSONType[types.Address]        `gorm:"column:delivery_address;type:jsonb;not null" json:"delivery_address"`
	Items           datatypes.JSONType[[]types.DeliveryItem] `gorm:"column:items;type:jsonb;default:'[]'" json:"items"`
	// ScheduledDate is the day the delivery is due.
	ScheduledDate *time.Time          `gorm:"column:scheduled_date;default:null;index" json:"scheduled_date"`
	TotalValue    int64               `gorm:"column:total_value;type:bigint;not null;default:0" json:"total_value"`
	DeliveryFee   int64               `gorm:"column:delivery_fee;type:bigint;not null;default:0" json:"delivery_fee"`
	PaymentMethod types.PaymentMethod `gorm:"column:payment_method;type:varchar(32);not null" json:"payment_method"`
	IsPaid        bool                `gorm:"column:is_paid;not null;default:false" json:"is_paid"`
	Notes         string              `gorm:"column:notes;type:text" json:"notes,omitempty"`
	// RecurrencyID links back to the template that produced the delivery.
	RecurrencyID  *string                                          `gorm:"column:recurrency_id;type:varchar(64);default:null;index" json:"recurrency_id,omitempty"`
	StatusHistory datatypes.JSONType[[]types.DeliveryStatusChange] `gorm:"column:status_history;type:jsonb;default:'[]'" json:"status_history"`
	CreatedBy     string                                           `gorm:"column:created_by;type:varchar(64)" json:"created_by"`
	CreatedAt     time.Time                                        `json:"created_at"`
	UpdatedAt     time.Time                                        `json:"updated_at"`
}

func (Delivery) TableName() string {
	return "delivery"
}
