package automation

import "encoding/json"

// CreateAutomationRequest is the HTTP boundary type for creating an
// automation. Trigger must be present; omitted conditions or actions decode
// to empty lists, and omitted name, description, or enabled take their
// zero values.
type CreateAutomationRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Enabled     bool            `json:"enabled"`
	Trigger     json.RawMessage `json:"trigger"`
	Conditions  json.RawMessage `json:"conditions"`
	Actions     json.RawMessage `json:"actions"`
}

// ToAutomation decodes the raw polymorphic fields into a new Automation
// ready for Engine.Create (id and timestamps are assigned there).
func (r CreateAutomationRequest) ToAutomation() (*Automation, error) {
	trigger, err := unmarshalTrigger(r.Trigger)
	if err != nil {
		return nil, err
	}
	conditions, err := decodeConditions(r.Conditions)
	if err != nil {
		return nil, err
	}
	actions, err := decodeActions(r.Actions)
	if err != nil {
		return nil, err
	}
	return &Automation{
		Name:        r.Name,
		Description: r.Description,
		Enabled:     r.Enabled,
		Trigger:     trigger,
		Conditions:  conditions,
		Actions:     actions,
	}, nil
}

// UpdateAutomationRequest is the HTTP boundary type for partially patching
// an automation: every field is an optional pointer, so only fields the
// caller actually sent are applied.
type UpdateAutomationRequest struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"`
	Trigger     json.RawMessage `json:"trigger,omitempty"`
	Conditions  json.RawMessage `json:"conditions,omitempty"`
	Actions     json.RawMessage `json:"actions,omitempty"`
}

// ApplyTo returns a copy of base with only the fields present in the
// request overwritten.
func (r UpdateAutomationRequest) ApplyTo(base *Automation) (*Automation, error) {
	out := *base

	if r.Name != nil {
		out.Name = *r.Name
	}
	if r.Description != nil {
		out.Description = *r.Description
	}
	if r.Enabled != nil {
		out.Enabled = *r.Enabled
	}
	if r.Trigger != nil {
		trigger, err := unmarshalTrigger(r.Trigger)
		if err != nil {
			return nil, err
		}
		out.Trigger = trigger
	}
	if r.Conditions != nil {
		conditions, err := decodeConditions(r.Conditions)
		if err != nil {
			return nil, err
		}
		out.Conditions = conditions
	}
	if r.Actions != nil {
		actions, err := decodeActions(r.Actions)
		if err != nil {
			return nil, err
		}
		out.Actions = actions
	}

	return &out, nil
}

func decodeConditions(raw json.RawMessage) ([]Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return nil, err
	}
	return unmarshalConditions(rawItems)
}

func decodeActions(raw json.RawMessage) ([]Action, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var rawItems []json.RawMessage
	if err := json.Unmarshal(raw, &rawItems); err != nil {
		return nil, err
	}
	out := make([]Action, 0, len(rawItems))
	for _, item := range rawItems {
		act, err := unmarshalAction(item)
		if err != nil {
			return nil, err
		}
		out = append(out, act)
	}
	return out, nil
}
