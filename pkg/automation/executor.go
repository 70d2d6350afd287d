package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DeviceCommander is the protocol-agnostic surface the executor needs to
// run a DeviceControlAction. The network manager satisfies this through a
// thin adapter so this package never imports a specific radio protocol.
type DeviceCommander interface {
	TurnOn(ctx context.Context, ieee uint64, endpoint byte) error
	TurnOff(ctx context.Context, ieee uint64, endpoint byte) error
	Toggle(ctx context.Context, ieee uint64, endpoint byte) error
}

// ActionEvent reports progress of one action within an execution.
type ActionEvent struct {
	AutomationID string
	Index        int
	Action       Action
	Err          error // set only for the failed variant
}

// ExecuteActions runs actions sequentially in order, calling onStart/
// onComplete/onFailed for each. Execution stops at the first failing
// action; earlier actions are not rolled back.
func ExecuteActions(ctx context.Context, automationID string, actions []Action, commander DeviceCommander,
	onStart, onComplete func(ActionEvent), onFailed func(ActionEvent)) error {

	for i, action := range actions {
		evt := ActionEvent{AutomationID: automationID, Index: i, Action: action}
		if onStart != nil {
			onStart(evt)
		}

		if err := executeOne(ctx, action, commander); err != nil {
			evt.Err = err
			if onFailed != nil {
				onFailed(evt)
			}
			return err
		}

		if onComplete != nil {
			onComplete(evt)
		}
	}
	return nil
}

func executeOne(ctx context.Context, action Action, commander DeviceCommander) error {
	switch a := action.(type) {
	case DeviceControlAction:
		if commander == nil {
			return fmt.Errorf("%w: no device commander configured", ErrDeviceControlFailed)
		}
		var err error
		switch a.Cmd {
		case DeviceControlTurnOn:
			err = commander.TurnOn(ctx, a.DeviceIEEE, a.Endpoint)
		case DeviceControlTurnOff:
			err = commander.TurnOff(ctx, a.DeviceIEEE, a.Endpoint)
		case DeviceControlToggle:
			err = commander.Toggle(ctx, a.DeviceIEEE, a.Endpoint)
		default:
			return fmt.Errorf("%w: unknown device control command %q", ErrInvalidAction, a.Cmd)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDeviceControlFailed, err)
		}
		return nil

	case DelayAction:
		select {
		case <-time.After(time.Duration(a.Seconds) * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case LogAction:
		ev := log.Info()
		switch a.Level {
		case "debug":
			ev = log.Debug()
		case "warn":
			ev = log.Warn()
		case "error":
			ev = log.Error()
		}
		ev.Msg(a.Message)
		return nil

	case TriggerAutomationAction:
		// Reserved: rejected at create/update time (see engine.go), so this
		// is unreachable in practice. Kept as a defensive no-op rather than
		// a panic if ever reached via a persisted record from an older
		// version of this validation.
		log.Warn().Str("automation_id", a.AutomationID).Msg("trigger_automation action reached executor unexpectedly; no-op")
		return nil

	default:
		return fmt.Errorf("%w: unknown action type %T", ErrInvalidAction, action)
	}
}
