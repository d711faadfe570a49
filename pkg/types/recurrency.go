package types

type RecurrencyStatus string

const (
	RecurrencyStatusActive    RecurrencyStatus = "active"
	RecurrencyStatusPaused    RecurrencyStatus = "paused"
	RecurrencyStatusCancelled RecurrencyStatus = "cancelled"
	RecurrencyStatusCompleted RecurrencyStatus = "completed"
)

// Terminal reports whether no transition can leave the status.
func (s RecurrencyStatus) Terminal() bool {
	return s == RecurrencyStatusCancelled || s == RecurrencyStatusCompleted
}

type RecurrencyFrequency string

const (
	RecurrencyFrequencyDaily    RecurrencyFrequency = "daily"
	RecurrencyFrequencyWeekly   RecurrencyFrequency = "weekly"
	RecurrencyFrequencyBiweekly RecurrencyFrequency = "biweekly"
	RecurrencyFrequencyMonthly  RecurrencyFrequency = "monthly"
	RecurrencyFrequencyCustom   RecurrencyFrequency = "custom"
)

func (f RecurrencyFrequency) Valid() bool {
	switch f {
	case RecurrencyFrequencyDaily, RecurrencyFrequencyWeekly, RecurrencyFrequencyBiweekly,
		RecurrencyFrequencyMonthly, RecurrencyFrequencyCustom:
		return true
	}
	return false
}

// RecurrencyChangeReason is recorded on every recurrency log row.
type RecurrencyChangeReason string

const (
	RecurrencyChangeReasonCreate           RecurrencyChangeReason = "create"
	RecurrencyChangeReasonUpdate           RecurrencyChangeReason = "update"
	RecurrencyChangeReasonPause            RecurrencyChangeReason = "pause"
	RecurrencyChangeReasonActivate         RecurrencyChangeReason = "activate"
	RecurrencyChangeReasonCancel           RecurrencyChangeReason = "cancel"
	RecurrencyChangeReasonGenerateDelivery RecurrencyChangeReason = "generate_delivery"
	RecurrencyChangeReasonComplete         RecurrencyChangeReason = "complete"
	RecurrencyChangeReasonDelete           RecurrencyChangeReason = "delete"
)

// ScheduleRule is a frequency with its companion fields.
type ScheduleRule struct {
	Frequency  RecurrencyFrequency `json:"frequency"`
	WeekDay    *int                `json:"week_day,omitempty"`
	MonthDay   *int                `json:"month_day,omitempty"`
	CustomDays []int               `json:"custom_days,omitempty"`
}
