package recurrency

import "errors"

var (
	// ErrInvalidScheduleRule means the frequency's companion field is missing or out of range.
	ErrInvalidScheduleRule = errors.New("invalid schedule rule")
	ErrNotFound            = errors.New("recurrency not found")
	// ErrNotActive is returned when a delivery is requested from a non-active recurrency.
	ErrNotActive         = errors.New("recurrency is not active")
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConcurrentUpdate means the row version changed between read and write.
	ErrConcurrentUpdate = errors.New("recurrency modified concurrently")
)

// ErrInvalidRequest covers payload problems other than the schedule rule.
var ErrInvalidRequest = errors.New("invalid recurrency request")
