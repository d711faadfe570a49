package models

import (
	"time"

	"github.com/fatflowers/deliveryhub/pkg/types"
)

// RecurrencyDailySnapshot is a daily copy of a recurrency's schedule state for analytics.
type RecurrencyDailySnapshot struct {
	ID               string                    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	RecurrencyID     string                    `gorm:"column:recurrency_id;type:varchar(64);not null;uniqueIndex:idx_recurrency_id_snapshot_date,priority:1" json:"recurrency_id"`
	CustomerID       string                    `gorm:"column:customer_id;type:varchar(64);not null" json:"customer_id"`
	Status           types.RecurrencyStatus    `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Frequency        types.RecurrencyFrequency `gorm:"column:frequency;type:varchar(32);not null" json:"frequency"`
	NextDeliveryDate *time.Time                `gorm:"column:next_delivery_date;default:null" json:"next_delivery_date"`
	DeliveriesCount  int                       `gorm:"column:deliveries_count" json:"deliveries_count"`
	TotalValue       int64                     `gorm:"column:total_value;type:bigint" json:"total_value"`
	SnapshotDate     string                    `gorm:"column:snapshot_date;type:varchar(10);uniqueIndex:idx_recurrency_id_snapshot_date,priority:2" json:"snapshot_date"`
	CreatedAt        time.Time                 `json:"created_at"`
}

func (RecurrencyDailySnapshot) TableName() string {
	return "recurrency_daily_snapshot"
}
