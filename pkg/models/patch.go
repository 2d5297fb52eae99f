package models

import "time"

// Step fields addressable by patch operations.
const (
	FieldID           = "id"
	FieldNextStepID   = "next_step_id"
	FieldBranchTarget = "branch_target"
	FieldSubject      = "subject"
	FieldContent      = "content"
	FieldDuration     = "duration_seconds"
)

// PatchOpKind names a single step mutation.
type PatchOpKind string

const (
	PatchOpSetField       PatchOpKind = "set_field"
	PatchOpRenameStep     PatchOpKind = "rename_step"
	PatchOpRelink         PatchOpKind = "relink"
	PatchOpDeleteStep     PatchOpKind = "delete_step"
	PatchOpAppendContent  PatchOpKind = "append_content"
	PatchOpReplaceContent PatchOpKind = "replace_content"
)

// PatchOp is one concrete, minimal mutation of a workflow's steps.
// StepIndex pins the step's position when the ID alone is ambiguous (duplicates, empty IDs).
type PatchOp struct {
	Kind        PatchOpKind `json:"kind"`
	StepID      string      `json:"step_id"`
	StepIndex   int         `json:"step_index"`
	Field       string      `json:"field,omitempty"`
	BranchIndex int         `json:"branch_index,omitempty"`
	OldValue    string      `json:"old_value,omitempty"`
	NewValue    string      `json:"new_value,omitempty"`
}

// Patch is the proposed fix for one issue.
type Patch struct {
	Summary string    `json:"summary"`
	Ops     []PatchOp `json:"ops"`
}

// Workflow document fields that a WorkflowPatch may mutate.
const (
	WorkflowFieldSteps               = "steps"
	WorkflowFieldHealthScore         = "health_score"
	WorkflowFieldHealthStatus        = "health_status"
	WorkflowFieldLastHealthCheckDate = "last_health_check_date"
	WorkflowFieldLastRepairDate      = "last_repair_date"
	WorkflowFieldTotalRepairsMade    = "total_repairs_made"
)

// MutationKind is how a WorkflowPatch changes one field.
type MutationKind string

const (
	MutationSet        MutationKind = "set"
	MutationIncrement  MutationKind = "increment"
	MutationServerTime MutationKind = "server_time"
)

// FieldMutation is one change to a workflow document field.
type FieldMutation struct {
	Kind  MutationKind `json:"kind"`
	Field string       `json:"field"`
	Value any          `json:"value,omitempty"`
}

// WorkflowPatch describes a write-back to the workflow store without store-specific sentinels:
// stores translate increments and server timestamps into their own primitives.
type WorkflowPatch struct {
	Mutations []FieldMutation `json:"mutations"`
}

// NewWorkflowPatch returns an empty patch.
func NewWorkflowPatch() *WorkflowPatch {
	return &WorkflowPatch{}
}

// Set replaces a field value.
func (p *WorkflowPatch) Set(field string, value any) *WorkflowPatch {
	p.Mutations = append(p.Mutations, FieldMutation{Kind: MutationSet, Field: field, Value: value})

	return p
}

// Increment adds n to a numeric field.
func (p *WorkflowPatch) Increment(field string, n int) *WorkflowPatch {
	p.Mutations = append(p.Mutations, FieldMutation{Kind: MutationIncrement, Field: field, Value: n})

	return p
}

// ServerTime sets a timestamp field to the store's current time.
func (p *WorkflowPatch) ServerTime(field string) *WorkflowPatch {
	p.Mutations = append(p.Mutations, FieldMutation{Kind: MutationServerTime, Field: field})

	return p
}

// IsEmpty reports whether the patch changes nothing.
func (p *WorkflowPatch) IsEmpty() bool {
	return p == nil || len(p.Mutations) == 0
}

// ApplyTo applies the patch to an in-memory workflow, using now as the server time.
// Stores without native increment/timestamp primitives use it directly.
func (p *WorkflowPatch) ApplyTo(workflow *Workflow, now time.Time) error {
	for _, mutation := range p.Mutations {
		if err := applyMutation(workflow, mutation, now); err != nil {
			return err
		}
	}

	return nil
}

func applyMutation(workflow *Workflow, mutation FieldMutation, now time.Time) error {
	switch mutation.Kind {
	case MutationServerTime:
		t := now

		switch mutation.Field {
		case WorkflowFieldLastHealthCheckDate:
			workflow.LastHealthCheckDate = &t
		case WorkflowFieldLastRepairDate:
			workflow.LastRepairDate = &t
		default:
			return &InvalidMutationError{Mutation: mutation}
		}

	case MutationIncrement:
		n, ok := mutation.Value.(int)
		if !ok {
			return &InvalidMutationError{Mutation: mutation}
		}

		switch mutation.Field {
		case WorkflowFieldTotalRepairsMade:
			workflow.TotalRepairsMade += n
		case WorkflowFieldHealthScore:
			workflow.HealthScore += n
		default:
			return &InvalidMutationError{Mutation: mutation}
		}

	case MutationSet:
		return applySet(workflow, mutation)

	default:
		return &InvalidMutationError{Mutation: mutation}
	}

	return nil
}

func applySet(workflow *Workflow, mutation FieldMutation) error {
	var ok bool

	switch mutation.Field {
	case WorkflowFieldSteps:
		var steps []*Step

		steps, ok = mutation.Value.([]*Step)
		if ok {
			workflow.Steps = CloneSteps(steps)
		}
	case WorkflowFieldHealthScore:
		workflow.HealthScore, ok = mutation.Value.(int)
	case WorkflowFieldHealthStatus:
		workflow.HealthStatus, ok = mutation.Value.(HealthStatus)
	case WorkflowFieldTotalRepairsMade:
		workflow.TotalRepairsMade, ok = mutation.Value.(int)
	}

	if !ok {
		return &InvalidMutationError{Mutation: mutation}
	}

	return nil
}

// InvalidMutationError reports a mutation a store cannot apply.
type InvalidMutationError struct {
	Mutation FieldMutation
}

func (e *InvalidMutationError) Error() string {
	return "invalid " + string(e.Mutation.Kind) + " mutation for field " + e.Mutation.Field
}
