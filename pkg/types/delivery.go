package types

import "time"

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodDebitCard    PaymentMethod = "debit_card"
	PaymentMethodPix          PaymentMethod = "pix"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodAlreadyPaid  PaymentMethod = "already_paid"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusAssigned  DeliveryStatus = "assigned"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusReturned  DeliveryStatus = "returned"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// Address is copied by value into recurrencies and deliveries.
type Address struct {
	ZipCode      string `json:"zip_code" mapstructure:"zip_code"`
	Street       string `json:"street" mapstructure:"street"`
	Number       string `json:"number" mapstructure:"number"`
	Complement   string `json:"complement,omitempty" mapstructure:"complement"`
	Neighborhood string `json:"neighborhood" mapstructure:"neighborhood"`
	City         string `json:"city" mapstructure:"city"`
	State        string `json:"state" mapstructure:"state"`
	Reference    string `json:"reference,omitempty" mapstructure:"reference"`
	// IsMain marks the customer's default address.
	IsMain bool `json:"is_main,omitempty" mapstructure:"is_main"`
}

func (a *Address) IsZero() bool {
	return a == nil || (a.Street == "" && a.ZipCode == "" && a.City == "")
}

// DeliveryItem prices are in minor currency units.
type DeliveryItem struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Price    int64  `json:"price"`
	SKU      string `json:"sku,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// ItemsTotal returns Σ price·quantity.
func ItemsTotal(items []DeliveryItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Price * it.Quantity
	}
	return total
}

type DeliveryStatusChange struct {
	Status DeliveryStatus `json:"status"`
	Date   time.Time      `json:"date"`
	By     string         `json:"by"`
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentMethodCash, PaymentMethodCreditCard, PaymentMethodDebitCard,
		PaymentMethodPix, PaymentMethodBankTransfer, PaymentMethodAlreadyPaid:
		return true
	}
	return false
}
