package automation

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, time.January, 5, hour, minute, 0, 0, time.Local) // a Monday
}

func TestTimeRangeWrapsPastMidnight(t *testing.T) {
	c := TimeRangeCondition{Start: "22:00", End: "06:00"}
	if !evaluateTimeRange(c, at(23, 0)) {
		t.Fatal("expected 23:00 within wrapped range")
	}
	if evaluateTimeRange(c, at(10, 0)) {
		t.Fatal("expected 10:00 outside wrapped range")
	}
	if !evaluateTimeRange(c, at(5, 0)) {
		t.Fatal("expected 05:00 within wrapped range")
	}
}

func TestTimeRangeBoundaryInclusive(t *testing.T) {
	c := TimeRangeCondition{Start: "09:00", End: "17:00"}
	if !evaluateTimeRange(c, at(17, 0)) {
		t.Fatal("expected 17:00 inclusive boundary to match")
	}
	if evaluateTimeRange(c, at(17, 1)) {
		t.Fatal("expected 17:01 to be outside the range")
	}
}

func TestDayOfWeekEmptyMeansAlways(t *testing.T) {
	c := DayOfWeekCondition{}
	if !evaluateDayOfWeek(c, at(12, 0)) {
		t.Fatal("expected empty day list to always match")
	}
}

func TestConditionBooleanAlgebra(t *testing.T) {
	inner := DayOfWeekCondition{Days: []int{1}} // Monday
	now := at(12, 0)

	if !evaluateCondition(NotCondition{Condition: NotCondition{Condition: inner}}, nil, now) {
		t.Fatal("double negation should equal original")
	}
	if !evaluateCondition(AndCondition{}, nil, now) {
		t.Fatal("empty And should be vacuously true")
	}
	if evaluateCondition(OrCondition{}, nil, now) {
		t.Fatal("empty Or should be vacuously false")
	}
}

type fakeAvailability struct {
	available bool
	known     bool
}

func (f fakeAvailability) IsAvailable(uint64) (bool, bool) { return f.available, f.known }

func TestDeviceAvailableUnknownNetworkIsFalse(t *testing.T) {
	c := DeviceAvailableCondition{DeviceIEEE: 1, Want: true}
	if evaluateCondition(c, fakeAvailability{known: false}, time.Now()) {
		t.Fatal("expected false when device availability is unknown")
	}
	if !evaluateCondition(c, fakeAvailability{available: true, known: true}, time.Now()) {
		t.Fatal("expected true when device is available and Want is true")
	}
}

func TestEvaluateConditionsEmptyIsTrue(t *testing.T) {
	if !EvaluateConditions(nil, nil, time.Now()) {
		t.Fatal("expected empty condition list to be vacuously true")
	}
}
