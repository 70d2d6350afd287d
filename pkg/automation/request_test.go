package automation

import "testing"

func TestCreateRequestDecodesPolymorphicFields(t *testing.T) {
	req := CreateAutomationRequest{
		Name:       "test",
		Enabled:    true,
		Trigger:    []byte(`{"type":"manual"}`),
		Conditions: []byte(`[{"type":"day_of_week","days":[1,2]}]`),
		Actions:    []byte(`[{"type":"log","message":"hi","level":"info"}]`),
	}
	a, err := req.ToAutomation()
	if err != nil {
		t.Fatalf("ToAutomation: %v", err)
	}
	if _, ok := a.Trigger.(ManualTrigger); !ok {
		t.Fatalf("expected ManualTrigger, got %T", a.Trigger)
	}
	if len(a.Conditions) != 1 {
		t.Fatalf("expected 1 condition, got %d", len(a.Conditions))
	}
	if len(a.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(a.Actions))
	}
}

func TestUpdateRequestPatchesOnlyProvidedFields(t *testing.T) {
	base := &Automation{
		ID: "a1", Name: "original", Description: "orig desc", Enabled: false,
		Trigger: ManualTrigger{},
	}
	newName := "patched"
	req := UpdateAutomationRequest{Name: &newName}

	patched, err := req.ApplyTo(base)
	if err != nil {
		t.Fatalf("ApplyTo: %v", err)
	}
	if patched.Name != "patched" {
		t.Fatalf("expected name to be patched, got %q", patched.Name)
	}
	if patched.Description != "orig desc" {
		t.Fatalf("expected description to be untouched, got %q", patched.Description)
	}
	if patched.Enabled != false {
		t.Fatal("expected enabled to be untouched")
	}
}
