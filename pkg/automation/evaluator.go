package automation

import (
	"strconv"
	"strings"
	"time"
)

// DeviceAvailability resolves whether a device is currently available, for
// DeviceAvailableCondition. known is false when no network is attached at
// all, in which case the condition evaluates to false rather than
// erroring.
type DeviceAvailability interface {
	IsAvailable(ieee uint64) (available bool, known bool)
}

// EvaluateConditions evaluates every top-level condition AND-wise; an
// empty list is vacuously true.
func EvaluateConditions(conditions []Condition, avail DeviceAvailability, now time.Time) bool {
	for _, c := range conditions {
		if !evaluateCondition(c, avail, now) {
			return false
		}
	}
	return true
}

func evaluateCondition(c Condition, avail DeviceAvailability, now time.Time) bool {
	switch v := c.(type) {
	case TimeRangeCondition:
		return evaluateTimeRange(v, now)
	case DayOfWeekCondition:
		return evaluateDayOfWeek(v, now)
	case DeviceAvailableCondition:
		if avail == nil {
			return false
		}
		available, known := avail.IsAvailable(v.DeviceIEEE)
		if !known {
			return false
		}
		return available == v.Want
	case AndCondition:
		for _, sub := range v.Conditions {
			if !evaluateCondition(sub, avail, now) {
				return false
			}
		}
		return true
	case OrCondition:
		for _, sub := range v.Conditions {
			if evaluateCondition(sub, avail, now) {
				return true
			}
		}
		return false
	case NotCondition:
		return !evaluateCondition(v.Condition, avail, now)
	default:
		return false
	}
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, ErrInvalidTimeFormat
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, ErrInvalidTimeFormat
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, ErrInvalidTimeFormat
	}
	return h*60 + m, nil
}

func evaluateTimeRange(c TimeRangeCondition, now time.Time) bool {
	start, err := parseClock(c.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(c.End)
	if err != nil {
		return false
	}
	cur := now.Hour()*60 + now.Minute()

	if start <= end {
		return cur >= start && cur <= end
	}
	// Wraps past midnight.
	return cur >= start || cur <= end
}

func evaluateDayOfWeek(c DayOfWeekCondition, now time.Time) bool {
	if len(c.Days) == 0 {
		return true
	}
	today := int(now.Weekday())
	for _, d := range c.Days {
		if d == today {
			return true
		}
	}
	return false
}
