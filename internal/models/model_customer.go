package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/deliveryhub/pkg/types"
)

// Customer owns a set of addresses; at most one is flagged IsMain.
type Customer struct {
	ID        string                              `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Name      string                              `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Email     *string                             `gorm:"column:email;type:varchar(255);uniqueIndex" json:"email,omitempty"`
	Phone     string                              `gorm:"column:phone;type:varchar(32);not null" json:"phone"`
	Addresses datatypes.JSONType[[]types.Address] `gorm:"column:addresses;type:jsonb;default:'[]'" json:"addresses"`
	IsActive  bool                                `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Notes     string                              `gorm:"column:notes;type:text" json:"notes,omitempty"`
	CreatedAt time.Time                           `json:"created_at"`
	UpdatedAt time.Time                           `json:"updated_at"`
}

func (Customer) TableName() string {
	return "customer"
}

// MainAddress returns the address flagged IsMain, else the first one.
func (c *Customer) MainAddress() (types.Address, bool) {
	if c == nil {
		return types.Address{}, false
	}
	addrs := c.Addresses.Data()
	for _, a := range addrs {
		if a.IsMain {
			return a, true
		}
	}
	if len(addrs) > 0 {
		return addrs[0], true
	}
	return types.Address{}, false
}
