package models

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// StepType identifies the kind of action a step performs.
type StepType string

const (
	StepTypeEmail       StepType = "email"
	StepTypeSMS         StepType = "sms"
	StepTypeWait        StepType = "wait"
	StepTypeConditional StepType = "conditional"
	StepTypeWebhook     StepType = "webhook"
)

// EndStepID is the reserved terminal marker. Links pointing at it end the workflow.
const EndStepID = "end"

// KnownStepTypes lists every step type the engine understands.
var KnownStepTypes = []StepType{
	StepTypeEmail,
	StepTypeSMS,
	StepTypeWait,
	StepTypeConditional,
	StepTypeWebhook,
}

// IsKnown reports whether the step type is one of KnownStepTypes.
func (t StepType) IsKnown() bool {
	for _, known := range KnownStepTypes {
		if t == known {
			return true
		}
	}

	return false
}

// Branch is one outbound edge of a conditional step.
type Branch struct {
	Condition    string `json:"condition"`
	TargetStepID string `json:"target_step_id"`
}

// Payload is the type-specific content of a step. The concrete type always matches Step.Type,
// except for RawPayload which carries payloads of unknown step types.
type Payload interface {
	StepType() StepType
	clonePayload() Payload
}

// EmailPayload is the content of an email step.
type EmailPayload struct {
	Subject  string `json:"subject"`
	Content  string `json:"content"`
	FromName string `json:"from_name,omitempty"`
}

func (p *EmailPayload) StepType() StepType { return StepTypeEmail }

func (p *EmailPayload) clonePayload() Payload { c := *p; return &c }

// SMSPayload is the content of an sms step.
type SMSPayload struct {
	Content string `json:"content"`
}

func (p *SMSPayload) StepType() StepType { return StepTypeSMS }

func (p *SMSPayload) clonePayload() Payload { c := *p; return &c }

// WaitPayload delays the client before the next step.
type WaitPayload struct {
	DurationSeconds int64 `json:"duration_seconds"`
}

func (p *WaitPayload) StepType() StepType { return StepTypeWait }

func (p *WaitPayload) clonePayload() Payload { c := *p; return &c }

// ConditionalPayload holds the expression evaluated by a conditional step. The branches live on the step.
type ConditionalPayload struct {
	Expression string `json:"expression,omitempty"`
}

func (p *ConditionalPayload) StepType() StepType { return StepTypeConditional }

func (p *ConditionalPayload) clonePayload() Payload { c := *p; return &c }

// WebhookPayload calls an external endpoint.
type WebhookPayload struct {
	URL     string `json:"url"`
	Method  string `json:"method,omitempty"`
	Content string `json:"content,omitempty"`
}

func (p *WebhookPayload) StepType() StepType { return StepTypeWebhook }

func (p *WebhookPayload) clonePayload() Payload { c := *p; return &c }

// RawPayload keeps the payload of a step whose type the engine does not know.
type RawPayload struct {
	Type StepType        `json:"-"`
	Data json.RawMessage `json:"-"`
}

func (p *RawPayload) StepType() StepType { return p.Type }

func (p *RawPayload) clonePayload() Payload {
	c := &RawPayload{Type: p.Type}
	if p.Data != nil {
		c.Data = append(json.RawMessage(nil), p.Data...)
	}

	return c
}

// MarshalJSON writes the raw payload back untouched.
func (p *RawPayload) MarshalJSON() ([]byte, error) {
	if p.Data == nil {
		return []byte("null"), nil
	}

	return p.Data, nil
}

// Step is one node in a workflow graph.
type Step struct {
	ID         string   `json:"id"`
	Name       string   `json:"name,omitempty"`
	Type       StepType `json:"type"`
	NextStepID string   `json:"next_step_id,omitempty"`
	Branches   []Branch `json:"branches,omitempty"`
	IsEntry    bool     `json:"is_entry,omitempty"`
	Payload    Payload  `json:"payload,omitempty"`
}

type stepJSON struct {
	ID         string          `json:"id"`
	Name       string          `json:"name,omitempty"`
	Type       StepType        `json:"type"`
	NextStepID string          `json:"next_step_id,omitempty"`
	Branches   []Branch        `json:"branches,omitempty"`
	IsEntry    bool            `json:"is_entry,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON encodes the step with its payload inlined under "payload".
func (s *Step) MarshalJSON() ([]byte, error) {
	out := stepJSON{
		ID:         s.ID,
		Name:       s.Name,
		Type:       s.Type,
		NextStepID: s.NextStepID,
		Branches:   s.Branches,
		IsEntry:    s.IsEntry,
	}

	if s.Payload != nil {
		data, err := json.Marshal(s.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload of step %s: %w", s.ID, err)
		}

		out.Payload = data
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes the payload into the variant selected by "type".
func (s *Step) UnmarshalJSON(data []byte) error {
	var in stepJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	s.ID = in.ID
	s.Name = in.Name
	s.Type = in.Type
	s.NextStepID = in.NextStepID
	s.Branches = in.Branches
	s.IsEntry = in.IsEntry
	s.Payload = nil

	if len(in.Payload) == 0 || string(in.Payload) == "null" {
		return nil
	}

	payload, err := decodePayload(in.Type, in.Payload)
	if err != nil {
		return fmt.Errorf("failed to decode payload of step %s: %w", in.ID, err)
	}

	s.Payload = payload

	return nil
}

func decodePayload(stepType StepType, data json.RawMessage) (Payload, error) {
	var payload Payload

	switch stepType {
	case StepTypeEmail:
		payload = &EmailPayload{}
	case StepTypeSMS:
		payload = &SMSPayload{}
	case StepTypeWait:
		payload = &WaitPayload{}
	case StepTypeConditional:
		payload = &ConditionalPayload{}
	case StepTypeWebhook:
		payload = &WebhookPayload{}
	default:
		return &RawPayload{Type: stepType, Data: append(json.RawMessage(nil), data...)}, nil
	}

	if err := json.Unmarshal(data, payload); err != nil {
		return nil, err
	}

	return payload, nil
}

// Clone returns a deep copy of the step.
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}

	clone := *s
	if s.Branches != nil {
		clone.Branches = append([]Branch(nil), s.Branches...)
	}

	if s.Payload != nil {
		clone.Payload = s.Payload.clonePayload()
	}

	return &clone
}

// Targets returns every step ID this step links to, in declaration order.
func (s *Step) Targets() []string {
	targets := make([]string, 0, len(s.Branches)+1)
	if s.NextStepID != "" {
		targets = append(targets, s.NextStepID)
	}

	for _, branch := range s.Branches {
		if branch.TargetStepID != "" {
			targets = append(targets, branch.TargetStepID)
		}
	}

	return targets
}

// TemplateField is a text field of a step payload that may hold {{placeholders}}.
type TemplateField struct {
	Name  string
	Value string
}

// TemplateFields lists the templated text fields of the step's payload.
func (s *Step) TemplateFields() []TemplateField {
	switch p := s.Payload.(type) {
	case *EmailPayload:
		return []TemplateField{{Name: FieldSubject, Value: p.Subject}, {Name: FieldContent, Value: p.Content}}
	case *SMSPayload:
		return []TemplateField{{Name: FieldContent, Value: p.Content}}
	case *WebhookPayload:
		return []TemplateField{{Name: FieldContent, Value: p.Content}}
	default:
		return nil
	}
}

// RenderedPayload flattens the payload into comparable text.
func (s *Step) RenderedPayload() string {
	switch p := s.Payload.(type) {
	case *EmailPayload:
		return p.Subject + "\n" + p.Content
	case *SMSPayload:
		return p.Content
	case *WaitPayload:
		return fmt.Sprintf("wait:%d", p.DurationSeconds)
	case *ConditionalPayload:
		return p.Expression
	case *WebhookPayload:
		return strings.ToUpper(p.Method) + " " + p.URL + "\n" + p.Content
	case *RawPayload:
		return string(p.Data)
	default:
		return ""
	}
}
