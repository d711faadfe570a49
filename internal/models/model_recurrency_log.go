package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/deliveryhub/pkg/types"
)

// RecurrencyLog records changes to recurrencies.
// Use case: troubleshooting and auditing batch runs.
type RecurrencyLog struct {
	ID           string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	RecurrencyID string `gorm:"column:recurrency_id;type:varchar(64);index:idx_recurrency_id_id,priority:1;not null" json:"recurrency_id"`
	// Reason is the change reason.
	Reason types.RecurrencyChangeReason `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	// ActorID is the user or system actor that triggered the change.
	ActorID string `gorm:"column:actor_id;type:varchar(64)" json:"actor_id"`
	// Before stores recurrency data before the change in JSON format.
	Before datatypes.JSONType[*Recurrency] `gorm:"column:before;type:jsonb;default:'null'" json:"before"`
	// After stores recurrency data after the change in JSON format.
	After datatypes.JSONType[*Recurrency] `gorm:"column:after;type:jsonb;default:'null'" json:"after"`
	// Extra stores additional context such as the generated delivery id.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time         `json:"created_at"`
}

func (RecurrencyLog) TableName() string {
	return "recurrency_log"
}
