package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nestwatch/conbee-gateway/pkg/deconz"
	"github.com/nestwatch/conbee-gateway/pkg/zigbee"
)

// EngineEvent reports the lifecycle of one automation run, published on the
// engine's own bus for API consumers (e.g. a websocket feed) to observe.
// ActionIndex/Action are only set for the per-action statuses
// ("action_started", "action_completed", "action_failed").
type EngineEvent struct {
	AutomationID string
	Status       string // "triggered", "completed", "failed", "skipped", "action_started", "action_completed", "action_failed"
	ActionIndex  int
	Action       Action
	Err          error
}

// networkManagerAdapter satisfies DeviceCommander and DeviceAvailability on
// top of a concrete NetworkManager, keeping the executor/evaluator types
// themselves free of any radio-protocol import.
type networkManagerAdapter struct{ nm *zigbee.NetworkManager }

func (a networkManagerAdapter) TurnOn(ctx context.Context, ieee uint64, endpoint byte) error {
	return a.nm.SendOnOff(ctx, ieee, endpoint, deconz.OnOffCmdOn)
}

func (a networkManagerAdapter) TurnOff(ctx context.Context, ieee uint64, endpoint byte) error {
	return a.nm.SendOnOff(ctx, ieee, endpoint, deconz.OnOffCmdOff)
}

func (a networkManagerAdapter) Toggle(ctx context.Context, ieee uint64, endpoint byte) error {
	return a.nm.SendOnOff(ctx, ieee, endpoint, deconz.OnOffCmdToggle)
}

func (a networkManagerAdapter) IsAvailable(ieee uint64) (available, known bool) {
	d, ok := a.nm.GetDevice(ieee)
	if !ok {
		return false, false
	}
	return d.Available, true
}

// Engine owns the automation collection: CRUD, persistence, schedule
// registration, and the two event subscriptions (device state, schedule
// fire) that drive triggering.
type Engine struct {
	mu          sync.RWMutex
	automations map[string]*Automation
	dataDir     string

	nm        *zigbee.NetworkManager
	adapter   networkManagerAdapter
	scheduler *Scheduler

	bus *deconz.EventBus[EngineEvent]

	networkSub   chan zigbee.NetworkEvent
	schedulerSub chan SchedulerEvent
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// NewEngine constructs an engine over an already-running network manager,
// loading any persisted automations from dataDir and registering schedule
// triggers for those that are enabled.
func NewEngine(nm *zigbee.NetworkManager, dataDir string) *Engine {
	e := &Engine{
		automations: make(map[string]*Automation),
		dataDir:     dataDir,
		nm:          nm,
		adapter:     networkManagerAdapter{nm: nm},
		scheduler:   NewScheduler(),
		bus:         deconz.NewEventBus[EngineEvent](),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}

	for _, a := range LoadAutomations(e.automationsPath()) {
		e.automations[a.ID] = a
		if err := e.scheduler.Register(a); err != nil {
			log.Warn().Err(err).Str("automation_id", a.ID).Msg("engine: failed to register schedule on load, leaving automation unscheduled")
		}
	}

	return e
}

func (e *Engine) automationsPath() string { return e.dataDir + "/automations.json" }

// Subscribe returns a channel of automation run lifecycle events.
func (e *Engine) Subscribe() chan EngineEvent { return e.bus.Subscribe() }

// Unsubscribe removes a subscriber registered via Subscribe.
func (e *Engine) Unsubscribe(ch chan EngineEvent) { e.bus.Unsubscribe(ch) }

// Start subscribes to the zigbee network bus (for DeviceState triggers) and
// the scheduler bus (for Schedule triggers) and spawns one listener
// goroutine that serves both subscriptions.
func (e *Engine) Start() {
	e.networkSub = e.nm.Subscribe()
	e.schedulerSub = e.scheduler.Subscribe()
	go e.listen()
}

// Stop terminates the listener goroutine, the scheduler, and the event
// bus.
func (e *Engine) Stop() {
	close(e.stopCh)
	<-e.doneCh
	e.scheduler.Stop()
	e.bus.Close()
}

func (e *Engine) listen() {
	defer close(e.doneCh)
	defer e.nm.Unsubscribe(e.networkSub)
	defer e.scheduler.Unsubscribe(e.schedulerSub)

	for {
		select {
		case <-e.stopCh:
			return
		case evt, ok := <-e.networkSub:
			if !ok {
				return
			}
			e.handleNetworkEvent(evt)
		case evt, ok := <-e.schedulerSub:
			if !ok {
				return
			}
			e.handleScheduleFire(evt.AutomationID)
		}
	}
}

func (e *Engine) handleNetworkEvent(evt zigbee.NetworkEvent) {
	for _, a := range e.snapshot() {
		if !a.Enabled {
			continue
		}
		trig, ok := a.Trigger.(DeviceStateTrigger)
		if !ok {
			continue
		}
		if deviceStateTriggerMatches(trig, evt) {
			e.run(a)
		}
	}
}

// deviceStateTriggerMatches implements the DeviceState trigger matching
// rules: the event's device must match the trigger's, the endpoint filter
// (when set) must match for endpoint-bearing events, and the event kind
// must satisfy the requested StateChange (StateChangeAny matches any kind).
func deviceStateTriggerMatches(t DeviceStateTrigger, evt zigbee.NetworkEvent) bool {
	switch e := evt.(type) {
	case zigbee.EventDeviceJoined:
		if e.Device.IeeeAddress != t.DeviceIEEE {
			return false
		}
		return t.StateChange == StateChangeAny || t.StateChange == StateChangeJoined || t.StateChange == StateChangeAvailable

	case zigbee.EventDeviceLeft:
		if e.IeeeAddress != t.DeviceIEEE {
			return false
		}
		return t.StateChange == StateChangeAny || t.StateChange == StateChangeLeft || t.StateChange == StateChangeUnavailable

	case zigbee.EventDeviceUpdated:
		if e.Device.IeeeAddress != t.DeviceIEEE {
			return false
		}
		if t.StateChange == StateChangeAny {
			return true
		}
		if t.StateChange == StateChangeAvailable {
			return e.Device.Available
		}
		if t.StateChange == StateChangeUnavailable {
			return !e.Device.Available
		}
		return false

	case zigbee.EventDeviceStateChanged:
		if e.IeeeAddress != t.DeviceIEEE {
			return false
		}
		if t.Endpoint != nil && *t.Endpoint != e.Endpoint {
			return false
		}
		switch t.StateChange {
		case StateChangeAny, StateChangeToggled:
			return true
		case StateChangeTurnedOn:
			return e.StateOn
		case StateChangeTurnedOff:
			return !e.StateOn
		default:
			return false
		}

	default:
		return false
	}
}

func (e *Engine) handleScheduleFire(id string) {
	a, ok := e.Get(id)
	if !ok || !a.Enabled {
		return
	}
	e.run(a)
}

func (e *Engine) run(a *Automation) {
	e.bus.Publish(EngineEvent{AutomationID: a.ID, Status: "triggered"})

	if !EvaluateConditions(a.Conditions, e.adapter, time.Now()) {
		log.Debug().Str("automation_id", a.ID).Msg("engine: conditions not met, skipping actions")
		e.bus.Publish(EngineEvent{AutomationID: a.ID, Status: "skipped"})
		return
	}

	ctx := context.Background()

	onStart := func(evt ActionEvent) {
		e.bus.Publish(EngineEvent{AutomationID: a.ID, Status: "action_started", ActionIndex: evt.Index, Action: evt.Action})
	}
	onComplete := func(evt ActionEvent) {
		e.bus.Publish(EngineEvent{AutomationID: a.ID, Status: "action_completed", ActionIndex: evt.Index, Action: evt.Action})
	}
	onFailed := func(evt ActionEvent) {
		e.bus.Publish(EngineEvent{AutomationID: a.ID, Status: "action_failed", ActionIndex: evt.Index, Action: evt.Action, Err: evt.Err})
	}

	err := ExecuteActions(ctx, a.ID, a.Actions, e.adapter, onStart, onComplete, onFailed)
	if err != nil {
		log.Warn().Err(err).Str("automation_id", a.ID).Msg("engine: automation run failed")
		e.bus.Publish(EngineEvent{AutomationID: a.ID, Status: "failed", Err: err})
		return
	}
	e.bus.Publish(EngineEvent{AutomationID: a.ID, Status: "completed"})
}

// Trigger manually runs an enabled automation's condition+action pipeline,
// regardless of its configured Trigger type.
func (e *Engine) Trigger(id string) error {
	a, ok := e.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !a.Enabled {
		return fmt.Errorf("%w: %s", ErrDisabled, id)
	}
	e.run(a)
	return nil
}

func (e *Engine) snapshot() []*Automation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Automation, 0, len(e.automations))
	for _, a := range e.automations {
		out = append(out, a)
	}
	return out
}

// List returns every known automation.
func (e *Engine) List() []*Automation { return e.snapshot() }

// Get returns a single automation by id.
func (e *Engine) Get(id string) (*Automation, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.automations[id]
	return a, ok
}

// validate enforces structural invariants shared by Create and Update:
// condition nesting depth, and the rejection of TriggerAutomationAction
// (reserved for a future chained-automation feature; accepting it today
// would let a record reference an automation that doesn't exist, or
// itself, with no cycle detection in place).
func validate(a *Automation) error {
	for _, c := range a.Conditions {
		if err := ValidateConditionDepth(c); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCondition, err)
		}
	}
	for _, act := range a.Actions {
		if _, ok := act.(TriggerAutomationAction); ok {
			return fmt.Errorf("%w: trigger_automation actions are not supported", ErrInvalidAction)
		}
	}
	if st, ok := a.Trigger.(ScheduleTrigger); ok {
		switch spec := st.Spec.(type) {
		case IntervalSpec:
			if spec.Seconds <= 0 {
				return fmt.Errorf("%w: interval seconds must be positive", ErrInvalidTrigger)
			}
		case TimeOfDaySpec:
			if _, err := parseClock(spec.Time); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidTimeFormat, err)
			}
		case CronSpec:
			if spec.Expression == "" {
				return fmt.Errorf("%w: empty cron expression", ErrInvalidCron)
			}
		}
	}
	return nil
}

// Create decodes req, assigns a new id and timestamps, validates,
// persists, and registers a schedule entry if applicable.
func (e *Engine) Create(req CreateAutomationRequest) (*Automation, error) {
	a, err := req.ToAutomation()
	if err != nil {
		return nil, err
	}
	if err := validate(a); err != nil {
		return nil, err
	}

	now := time.Now()
	a.ID = uuid.NewString()
	a.CreatedAt = now
	a.UpdatedAt = now

	e.mu.Lock()
	e.automations[a.ID] = a
	e.mu.Unlock()

	if err := e.scheduler.Register(a); err != nil {
		e.mu.Lock()
		delete(e.automations, a.ID)
		e.mu.Unlock()
		return nil, err
	}

	e.persist()
	return a, nil
}

// Update applies a partial patch to an existing automation: only fields
// present in req are overwritten, id and CreatedAt are preserved, and the
// result is re-validated, re-persisted, and its schedule entry
// re-registered.
func (e *Engine) Update(id string, req UpdateAutomationRequest) (*Automation, error) {
	e.mu.Lock()
	existing, ok := e.automations[id]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	patched, err := req.ApplyTo(existing)
	if err != nil {
		return nil, err
	}
	if err := validate(patched); err != nil {
		return nil, err
	}
	patched.ID = id
	patched.CreatedAt = existing.CreatedAt
	patched.UpdatedAt = time.Now()

	e.mu.Lock()
	e.automations[id] = patched
	e.mu.Unlock()

	if err := e.scheduler.Register(patched); err != nil {
		e.mu.Lock()
		e.automations[id] = existing
		e.mu.Unlock()
		return nil, err
	}

	e.persist()
	return patched, nil
}

// Delete removes an automation and cancels any schedule entry for it.
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	_, ok := e.automations[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(e.automations, id)
	e.mu.Unlock()

	e.scheduler.Remove(id)
	e.persist()
	return nil
}

func (e *Engine) persist() {
	if err := SaveAutomations(e.automationsPath(), e.snapshot()); err != nil {
		log.Warn().Err(err).Msg("engine: failed to persist automation snapshot")
	}
}
