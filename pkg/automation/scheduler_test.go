package automation

import (
	"testing"
	"time"
)

func TestIdempotentRegisterYieldsOneTimer(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	a := &Automation{ID: "a1", Enabled: true, Trigger: ScheduleTrigger{Spec: IntervalSpec{Seconds: 1}}}
	if err := s.Register(a); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := s.Register(a); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	s.mu.Lock()
	n := len(s.tasks)
	s.mu.Unlock()
	if n != 1 {
		t.Fatalf("expected exactly 1 live task, got %d", n)
	}
}

func TestIntervalSkipsFirstImmediateTick(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	sub := s.Subscribe()
	a := &Automation{ID: "a1", Enabled: true, Trigger: ScheduleTrigger{Spec: IntervalSpec{Seconds: 1}}}
	if err := s.Register(a); err != nil {
		t.Fatalf("register: %v", err)
	}

	select {
	case <-sub:
		t.Fatal("expected no immediate tick")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNextTimeOfDayTodayIfFuture(t *testing.T) {
	now := time.Date(2026, time.January, 5, 10, 0, 0, 0, time.Local)
	spec := TimeOfDaySpec{Time: "14:30"}
	next, err := nextTimeOfDay(now, spec)
	if err != nil {
		t.Fatalf("nextTimeOfDay: %v", err)
	}
	if next.Day() != now.Day() || next.Hour() != 14 || next.Minute() != 30 {
		t.Fatalf("expected today at 14:30, got %v", next)
	}
}

func TestNextTimeOfDayTomorrowIfPast(t *testing.T) {
	now := time.Date(2026, time.January, 5, 20, 0, 0, 0, time.Local)
	spec := TimeOfDaySpec{Time: "06:00"}
	next, err := nextTimeOfDay(now, spec)
	if err != nil {
		t.Fatalf("nextTimeOfDay: %v", err)
	}
	if next.Day() == now.Day() {
		t.Fatalf("expected tomorrow, got %v", next)
	}
}

func TestNextTimeOfDayAdvancesToAllowedWeekday(t *testing.T) {
	// 2026-01-05 is a Monday (weekday 1).
	now := time.Date(2026, time.January, 5, 20, 0, 0, 0, time.Local)
	spec := TimeOfDaySpec{Time: "06:00", Days: []int{3}} // Wednesday
	next, err := nextTimeOfDay(now, spec)
	if err != nil {
		t.Fatalf("nextTimeOfDay: %v", err)
	}
	if int(next.Weekday()) != 3 {
		t.Fatalf("expected weekday 3, got %d (%v)", int(next.Weekday()), next)
	}
}

func TestRegisterInvalidCronIsRejected(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	a := &Automation{ID: "a1", Enabled: true, Trigger: ScheduleTrigger{Spec: CronSpec{Expression: "not a cron"}}}
	if err := s.Register(a); err == nil {
		t.Fatal("expected an error for invalid cron expression")
	}
}

func TestRemoveUnregisteredIsNoop(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	s.Remove("does-not-exist")
}
