package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/nestwatch/conbee-gateway/pkg/deconz"
)

// SchedulerEvent is published when a Schedule trigger fires.
type SchedulerEvent struct{ AutomationID string }

// postFireDebounce is slept after each fire to avoid a double-trigger at
// the exact boundary instant.
const postFireDebounce = time.Second

// Scheduler maintains one cooperative timer task per scheduled automation.
// Register/Update/Remove are idempotent: each first cancels any existing
// task for that id before installing a new one.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]context.CancelFunc

	bus *deconz.EventBus[SchedulerEvent]
}

// NewScheduler returns a ready-to-use scheduler with no registered tasks.
func NewScheduler() *Scheduler {
	return &Scheduler{
		tasks: make(map[string]context.CancelFunc),
		bus:   deconz.NewEventBus[SchedulerEvent](),
	}
}

// Subscribe returns a channel of fired-schedule notifications.
func (s *Scheduler) Subscribe() chan SchedulerEvent { return s.bus.Subscribe() }

// Unsubscribe removes a subscriber registered via Subscribe.
func (s *Scheduler) Unsubscribe(ch chan SchedulerEvent) { s.bus.Unsubscribe(ch) }

// Register installs a timer task for automation if it has a Schedule
// trigger and is enabled; otherwise it's a no-op (after ensuring any prior
// task for this id is removed).
func (s *Scheduler) Register(a *Automation) error {
	s.Remove(a.ID)

	if !a.Enabled {
		return nil
	}
	st, ok := a.Trigger.(ScheduleTrigger)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	switch spec := st.Spec.(type) {
	case IntervalSpec:
		if spec.Seconds <= 0 {
			cancel()
			return fmt.Errorf("%w: interval seconds must be positive", ErrInvalidTrigger)
		}
		go s.runInterval(ctx, a.ID, spec)
	case TimeOfDaySpec:
		if _, err := parseClock(spec.Time); err != nil {
			cancel()
			return fmt.Errorf("%w: %v", ErrInvalidTimeFormat, err)
		}
		go s.runTimeOfDay(ctx, a.ID, spec)
	case CronSpec:
		sched, err := cron.ParseStandard(spec.Expression)
		if err != nil {
			cancel()
			return fmt.Errorf("%w: %v", ErrInvalidCron, err)
		}
		go s.runCron(ctx, a.ID, sched)
	default:
		cancel()
		return fmt.Errorf("%w: unknown schedule spec type %T", ErrInvalidTrigger, st.Spec)
	}

	s.mu.Lock()
	s.tasks[a.ID] = cancel
	s.mu.Unlock()
	return nil
}

// Update re-registers automation's timer task, replacing any existing one.
func (s *Scheduler) Update(a *Automation) error { return s.Register(a) }

// Remove cancels and forgets the timer task for id, if any.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	cancel, ok := s.tasks[id]
	if ok {
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// Stop cancels every registered task and closes the event bus.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, cancel := range s.tasks {
		cancel()
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	s.bus.Close()
}

func (s *Scheduler) fire(id string) {
	s.bus.Publish(SchedulerEvent{AutomationID: id})
}

func (s *Scheduler) runInterval(ctx context.Context, id string, spec IntervalSpec) {
	ticker := time.NewTicker(time.Duration(spec.Seconds) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(id)
		}
	}
}

func nextTimeOfDay(now time.Time, spec TimeOfDaySpec) (time.Time, error) {
	minutes, err := parseClock(spec.Time)
	if err != nil {
		return time.Time{}, err
	}
	candidate := time.Date(now.Year(), now.Month(), now.Day(), minutes/60, minutes%60, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	if len(spec.Days) == 0 {
		return candidate, nil
	}
	for i := 0; i < 7; i++ {
		weekday := int(candidate.Weekday())
		for _, d := range spec.Days {
			if d == weekday {
				return candidate, nil
			}
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return time.Time{}, fmt.Errorf("%w: no matching weekday found within 7 days", ErrInvalidTrigger)
}

func (s *Scheduler) runTimeOfDay(ctx context.Context, id string, spec TimeOfDaySpec) {
	for {
		next, err := nextTimeOfDay(time.Now(), spec)
		if err != nil {
			log.Warn().Err(err).Str("automation_id", id).Msg("scheduler: time_of_day trigger has no valid next occurrence")
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(id)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(postFireDebounce):
		}
	}
}

func (s *Scheduler) runCron(ctx context.Context, id string, sched cron.Schedule) {
	for {
		now := time.Now()
		next := sched.Next(now)
		if next.IsZero() {
			log.Warn().Str("automation_id", id).Msg("scheduler: cron expression has no future occurrence, stopping")
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.fire(id)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(postFireDebounce):
		}
	}
}
