package recurrency

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/deliveryhub/pkg/types"
)

const (
	maxWeekdaySteps = 6
	daysPerWeek     = 7
)

// ValidateRule checks that the companion field required by the frequency is
// present and in range. Daily needs none.
func ValidateRule(rule types.ScheduleRule) error {
	switch rule.Frequency {
	case types.RecurrencyFrequencyDaily:
		return nil
	case types.RecurrencyFrequencyWeekly, types.RecurrencyFrequencyBiweekly:
		if rule.WeekDay == nil {
			return fmt.Errorf("%w: week_day is required for %s frequency", ErrInvalidScheduleRule, rule.Frequency)
		}
		if *rule.WeekDay < 0 || *rule.WeekDay > 6 {
			return fmt.Errorf("%w: week_day must be between 0 and 6, got %d", ErrInvalidScheduleRule, *rule.WeekDay)
		}
	case types.RecurrencyFrequencyMonthly:
		if rule.MonthDay == nil {
			return fmt.Errorf("%w: month_day is required for monthly frequency", ErrInvalidScheduleRule)
		}
		if *rule.MonthDay < 1 || *rule.MonthDay > 31 {
			return fmt.Errorf("%w: month_day must be between 1 and 31, got %d", ErrInvalidScheduleRule, *rule.MonthDay)
		}
	case types.RecurrencyFrequencyCustom:
		if len(rule.CustomDays) == 0 {
			return fmt.Errorf("%w: custom_days is required for custom frequency", ErrInvalidScheduleRule)
		}
		for _, d := range rule.CustomDays {
			if d < 1 || d > 31 {
				return fmt.Errorf("%w: custom day must be between 1 and 31, got %d", ErrInvalidScheduleRule, d)
			}
		}
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidScheduleRule, rule.Frequency)
	}
	return nil
}

// NextDeliveryDate projects the next occurrence of rule on or after
// max(reference, now), compared by calendar day in loc. The result is
// midnight in loc and never earlier than today.
func NextDeliveryDate(reference, now time.Time, loc *time.Location, rule types.ScheduleRule) (time.Time, error) {
	if err := ValidateRule(rule); err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	today := startOfDay(now, loc)
	from := startOfDay(reference, loc)
	if from.Before(today) {
		from = today
	}

	switch rule.Frequency {
	case types.RecurrencyFrequencyDaily:
		// today's slot counts as consumed
		if from.Equal(today) {
			return from.AddDate(0, 0, 1), nil
		}
		return from, nil

	case types.RecurrencyFrequencyWeekly:
		return nextWeekday(from, time.Weekday(*rule.WeekDay)), nil

	case types.RecurrencyFrequencyBiweekly:
		d := nextWeekday(from, time.Weekday(*rule.WeekDay))
		if daysBetween(today, d) < daysPerWeek {
			d = d.AddDate(0, 0, daysPerWeek)
		}
		return d, nil

	case types.RecurrencyFrequencyMonthly:
		d := clampedDate(from.Year(), from.Month(), *rule.MonthDay, loc)
		if d.Before(from) {
			y, m := addMonth(from.Year(), from.Month())
			d = clampedDate(y, m, *rule.MonthDay, loc)
		}
		return d, nil

	case types.RecurrencyFrequencyCustom:
		days := lo.Uniq(rule.CustomDays)
		slices.Sort(days)
		for _, day := range days {
			d := clampedDate(from.Year(), from.Month(), day, loc)
			if !d.Before(from) && d.After(today) {
				return d, nil
			}
		}
		y, m := addMonth(from.Year(), from.Month())
		return clampedDate(y, m, days[0], loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidScheduleRule, rule.Frequency)
}

// advanceReference is the reference used after consuming a delivery date.
// Biweekly skips a full week so the weekday search lands two weeks later.
func advanceReference(consumed time.Time, freq types.RecurrencyFrequency) time.Time {
	if freq == types.RecurrencyFrequencyBiweekly {
		return consumed.AddDate(0, 0, daysPerWeek+1)
	}
	return consumed.AddDate(0, 0, 1)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// calendarDate maps a date-only input (start_date, end_date) to midnight of
// that day in loc. An instant at exactly UTC midnight is a bare date such as
// "2026-10-20T00:00:00Z" and keeps its UTC calendar day; anything else is
// read in loc.
func calendarDate(t time.Time, loc *time.Location) time.Time {
	u := t.UTC()
	if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0 {
		return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, loc)
	}
	return startOfDay(t, loc)
}

// canonicalRule keeps only the companion field the frequency reads.
func canonicalRule(rule types.ScheduleRule) types.ScheduleRule {
	out := types.ScheduleRule{Frequency: rule.Frequency}
	switch rule.Frequency {
	case types.RecurrencyFrequencyWeekly, types.RecurrencyFrequencyBiweekly:
		out.WeekDay = rule.WeekDay
	case types.RecurrencyFrequencyMonthly:
		out.MonthDay = rule.MonthDay
	case types.RecurrencyFrequencyCustom:
		out.CustomDays = rule.CustomDays
	}
	return out
}

func nextWeekday(from time.Time, wd time.Weekday) time.Time {
	d := from
	for i := 0; i < maxWeekdaySteps && d.Weekday() != wd; i++ {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// daysBetween counts calendar days from a to b, ignoring DST shifts.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// clampedDate builds year-month-day, using the month's last day when day overflows.
func clampedDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func addMonth(year int, month time.Month) (int, time.Month) {
	if month == time.December {
		return year + 1, time.January
	}
	return year, month + 1
}
