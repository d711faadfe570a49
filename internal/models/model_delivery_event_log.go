package models

import (
	"time"

	"gorm.io/datatypes"
)

type DeliveryEventLogStatus string

const (
	DeliveryEventLogStatusPublished     DeliveryEventLogStatus = "published"
	DeliveryEventLogStatusPublishFailed DeliveryEventLogStatus = "publish_failed"
	DeliveryEventLogStatusSkipped       DeliveryEventLogStatus = "skipped"
)

// DeliveryEventLog records each outbound delivery event and its publish result.
type DeliveryEventLog struct {
	ID           string                 `gorm:"column:id;type:uuid;primary_key" json:"id"`
	DeliveryID   string                 `gorm:"column:delivery_id;type:varchar(64);not null;index" json:"delivery_id"`
	RecurrencyID string                 `gorm:"column:recurrency_id;type:varchar(64)" json:"recurrency_id"`
	TraceID      string                 `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	Topic        string                 `gorm:"column:topic;type:varchar(128)" json:"topic"`
	Data         datatypes.JSON         `gorm:"column:data;type:jsonb" json:"data"`
	Error        *string                `gorm:"column:error;type:text" json:"error,omitempty"`
	Status       DeliveryEventLogStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt    time.Time              `json:"created_at"`
}

func (DeliveryEventLog) TableName() string { return "delivery_event_log" }
