package automation

import (
	"testing"

	"github.com/nestwatch/conbee-gateway/pkg/zigbee"
)

func TestValidateRejectsTriggerAutomationAction(t *testing.T) {
	a := &Automation{
		Trigger: ManualTrigger{},
		Actions: []Action{TriggerAutomationAction{AutomationID: "other"}},
	}
	if err := validate(a); err == nil {
		t.Fatal("expected trigger_automation action to be rejected")
	}
}

func TestValidateRejectsOverDeepConditions(t *testing.T) {
	var c Condition = DayOfWeekCondition{}
	for i := 0; i < maxConditionDepth+2; i++ {
		c = NotCondition{Condition: c}
	}
	a := &Automation{Trigger: ManualTrigger{}, Conditions: []Condition{c}}
	if err := validate(a); err == nil {
		t.Fatal("expected overly deep condition tree to be rejected")
	}
}

func TestValidateRejectsMalformedSchedule(t *testing.T) {
	a := &Automation{Trigger: ScheduleTrigger{Spec: IntervalSpec{Seconds: 0}}}
	if err := validate(a); err == nil {
		t.Fatal("expected non-positive interval to be rejected")
	}
}

func TestValidateAcceptsWellFormedAutomation(t *testing.T) {
	a := &Automation{
		Trigger:    ManualTrigger{},
		Conditions: []Condition{DayOfWeekCondition{Days: []int{1, 2}}},
		Actions:    []Action{LogAction{Message: "hi"}},
	}
	if err := validate(a); err != nil {
		t.Fatalf("expected well-formed automation to validate, got %v", err)
	}
}

func TestDeviceStateTriggerMatchesJoined(t *testing.T) {
	trig := DeviceStateTrigger{DeviceIEEE: 1, StateChange: StateChangeJoined}
	evt := zigbee.EventDeviceJoined{Device: &zigbee.ZigbeeDevice{IeeeAddress: 1}}
	if !deviceStateTriggerMatches(trig, evt) {
		t.Fatal("expected joined trigger to match EventDeviceJoined for the same device")
	}
	other := zigbee.EventDeviceJoined{Device: &zigbee.ZigbeeDevice{IeeeAddress: 2}}
	if deviceStateTriggerMatches(trig, other) {
		t.Fatal("expected no match for a different device")
	}
}

func TestDeviceStateTriggerMatchesEndpointFilter(t *testing.T) {
	ep := byte(2)
	trig := DeviceStateTrigger{DeviceIEEE: 1, Endpoint: &ep, StateChange: StateChangeTurnedOn}
	matching := zigbee.EventDeviceStateChanged{IeeeAddress: 1, Endpoint: 2, StateOn: true}
	if !deviceStateTriggerMatches(trig, matching) {
		t.Fatal("expected matching endpoint and turned_on state to match")
	}
	wrongEndpoint := zigbee.EventDeviceStateChanged{IeeeAddress: 1, Endpoint: 3, StateOn: true}
	if deviceStateTriggerMatches(trig, wrongEndpoint) {
		t.Fatal("expected endpoint mismatch to not match")
	}
	wrongState := zigbee.EventDeviceStateChanged{IeeeAddress: 1, Endpoint: 2, StateOn: false}
	if deviceStateTriggerMatches(trig, wrongState) {
		t.Fatal("expected turned_off state to not match a turned_on trigger")
	}
}

func TestDeviceStateTriggerAnyMatchesAnyKind(t *testing.T) {
	trig := DeviceStateTrigger{DeviceIEEE: 5, StateChange: StateChangeAny}
	if !deviceStateTriggerMatches(trig, zigbee.EventDeviceLeft{IeeeAddress: 5}) {
		t.Fatal("expected StateChangeAny to match EventDeviceLeft")
	}
	if !deviceStateTriggerMatches(trig, zigbee.EventDeviceUpdated{Device: &zigbee.ZigbeeDevice{IeeeAddress: 5}}) {
		t.Fatal("expected StateChangeAny to match EventDeviceUpdated")
	}
}
