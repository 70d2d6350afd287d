package automation

import "errors"

var (
	// ErrNotFound is returned when an automation id is not present.
	ErrNotFound = errors.New("automation: not found")
	// ErrDisabled is returned when Trigger is called on a disabled automation.
	ErrDisabled = errors.New("automation: disabled")
	// ErrInvalidTrigger is returned for a malformed or unrecognized trigger.
	ErrInvalidTrigger = errors.New("automation: invalid trigger")
	// ErrInvalidCondition is returned for a malformed condition or one
	// exceeding the maximum nesting depth.
	ErrInvalidCondition = errors.New("automation: invalid condition")
	// ErrInvalidAction is returned for a malformed or disallowed action.
	ErrInvalidAction = errors.New("automation: invalid action")
	// ErrInvalidCron is returned when a Cron schedule's expression fails to
	// parse.
	ErrInvalidCron = errors.New("automation: invalid cron expression")
	// ErrInvalidTimeFormat is returned when a TimeOfDay schedule's time
	// string isn't "HH:MM".
	ErrInvalidTimeFormat = errors.New("automation: invalid time format")
	// ErrDeviceNotFound is returned when an action references a device
	// absent from the inventory.
	ErrDeviceNotFound = errors.New("automation: device not found")
	// ErrDeviceControlFailed wraps a failure sending a device command.
	ErrDeviceControlFailed = errors.New("automation: device control failed")
	// ErrCircularReference is reserved for a future chained-automation
	// implementation; TriggerAutomation is rejected before this can be
	// reached today.
	ErrCircularReference = errors.New("automation: circular reference")
)
