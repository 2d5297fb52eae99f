package health

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/creditflow/workflowdoctor/pkg/models"
)

// ApplyPatch applies every op of patch to a copy of steps. It returns the mutated copy and one log
// line per op; steps itself is never modified.
func ApplyPatch(steps []*models.Step, patch *models.Patch) ([]*models.Step, []string, error) {
	if patch == nil {
		return nil, nil, ErrNoPatch
	}

	working := models.CloneSteps(steps)
	lines := make([]string, 0, len(patch.Ops))

	for _, op := range patch.Ops {
		var (
			line string
			err  error
		)

		working, line, err = applyOp(working, op)
		if err != nil {
			return nil, nil, err
		}

		lines = append(lines, line)
	}

	return working, lines, nil
}

func applyOp(steps []*models.Step, op models.PatchOp) ([]*models.Step, string, error) {
	index, err := locate(steps, op)
	if err != nil {
		return nil, "", err
	}

	step := steps[index]
	name := displayID(step, index)

	switch op.Kind {
	case models.PatchOpSetField:
		old, err := setField(step, op)
		if err != nil {
			return nil, "", err
		}

		return steps, fmt.Sprintf("step %s: %s %q → %q", name, op.Field, old, op.NewValue), nil

	case models.PatchOpRenameStep:
		if step.ID != op.OldValue {
			return nil, "", opError(op, ErrStaleStep)
		}

		step.ID = op.NewValue

		return steps, fmt.Sprintf("step %s at position %d: renamed %q → %q", name, index+1, op.OldValue, op.NewValue), nil

	case models.PatchOpRelink:
		if err := relink(step, op); err != nil {
			return nil, "", err
		}

		return steps, fmt.Sprintf("step %s: %s %q → %q", name, linkName(op), op.OldValue, op.NewValue), nil

	case models.PatchOpDeleteStep:
		if step.ID != op.OldValue {
			return nil, "", opError(op, ErrStaleStep)
		}

		out := make([]*models.Step, 0, len(steps)-1)
		out = append(out, steps[:index]...)
		out = append(out, steps[index+1:]...)

		return out, fmt.Sprintf("step %s: deleted", name), nil

	case models.PatchOpAppendContent:
		old, ok := textField(step, op.Field)
		if !ok {
			return nil, "", opError(op, ErrUnsupportedOp)
		}

		writeTextField(step, op.Field, old+op.NewValue)

		return steps, fmt.Sprintf("step %s: %s %q → %q", name, op.Field, old, old+op.NewValue), nil

	case models.PatchOpReplaceContent:
		old, ok := textField(step, op.Field)
		if !ok {
			return nil, "", opError(op, ErrUnsupportedOp)
		}

		if op.OldValue == "" || !strings.Contains(old, op.OldValue) {
			return nil, "", opError(op, ErrStaleStep)
		}

		writeTextField(step, op.Field, strings.ReplaceAll(old, op.OldValue, op.NewValue))

		return steps, fmt.Sprintf("step %s: %s %s → %s", name, op.Field, op.OldValue, op.NewValue), nil

	default:
		return nil, "", opError(op, ErrUnsupportedOp)
	}
}

// locate finds the op's step: at StepIndex when that step still carries the expected ID, otherwise by a
// unique ID match.
func locate(steps []*models.Step, op models.PatchOp) (int, error) {
	if op.StepIndex >= 0 && op.StepIndex < len(steps) && steps[op.StepIndex] != nil && steps[op.StepIndex].ID == op.StepID {
		return op.StepIndex, nil
	}

	if op.StepID == "" {
		return 0, opError(op, ErrStepNotFound)
	}

	found := -1

	for i, step := range steps {
		if step == nil || step.ID != op.StepID {
			continue
		}

		if found >= 0 {
			return 0, opError(op, fmt.Errorf("%w: id %s is ambiguous", ErrStepNotFound, op.StepID))
		}

		found = i
	}

	if found < 0 {
		return 0, opError(op, ErrStepNotFound)
	}

	return found, nil
}

func setField(step *models.Step, op models.PatchOp) (string, error) {
	switch op.Field {
	case models.FieldID:
		if step.ID != op.OldValue {
			return "", opError(op, ErrStaleStep)
		}

		step.ID = op.NewValue

		return op.OldValue, nil

	case models.FieldDuration:
		seconds, err := strconv.ParseInt(op.NewValue, 10, 64)
		if err != nil {
			return "", opError(op, fmt.Errorf("invalid duration %q: %w", op.NewValue, err))
		}

		if step.Payload == nil && step.Type == models.StepTypeWait {
			step.Payload = &models.WaitPayload{}
		}

		wait, ok := step.Payload.(*models.WaitPayload)
		if !ok {
			return "", opError(op, ErrUnsupportedOp)
		}

		old := ""
		if op.OldValue != "" {
			old = strconv.FormatInt(wait.DurationSeconds, 10)
		}

		if old != op.OldValue {
			return "", opError(op, ErrStaleStep)
		}

		wait.DurationSeconds = seconds

		return old, nil

	case models.FieldSubject, models.FieldContent:
		old, ok := textField(step, op.Field)
		if !ok {
			return "", opError(op, ErrUnsupportedOp)
		}

		if old != op.OldValue {
			return "", opError(op, ErrStaleStep)
		}

		writeTextField(step, op.Field, op.NewValue)

		return old, nil

	default:
		return "", opError(op, ErrUnsupportedOp)
	}
}

func relink(step *models.Step, op models.PatchOp) error {
	switch op.Field {
	case models.FieldNextStepID:
		if step.NextStepID != op.OldValue {
			return opError(op, ErrStaleStep)
		}

		step.NextStepID = op.NewValue

	case models.FieldBranchTarget:
		if op.BranchIndex < 0 || op.BranchIndex >= len(step.Branches) {
			return opError(op, fmt.Errorf("%w: branch %d", ErrStepNotFound, op.BranchIndex+1))
		}

		if step.Branches[op.BranchIndex].TargetStepID != op.OldValue {
			return opError(op, ErrStaleStep)
		}

		step.Branches[op.BranchIndex].TargetStepID = op.NewValue

	default:
		return opError(op, ErrUnsupportedOp)
	}

	return nil
}

func linkName(op models.PatchOp) string {
	if op.Field == models.FieldBranchTarget {
		return "branch " + strconv.Itoa(op.BranchIndex+1) + " target"
	}

	return op.Field
}

func textField(step *models.Step, field string) (string, bool) {
	switch p := step.Payload.(type) {
	case *models.EmailPayload:
		switch field {
		case models.FieldSubject:
			return p.Subject, true
		case models.FieldContent:
			return p.Content, true
		}
	case *models.SMSPayload:
		if field == models.FieldContent {
			return p.Content, true
		}
	case *models.WebhookPayload:
		if field == models.FieldContent {
			return p.Content, true
		}
	}

	return "", false
}

func writeTextField(step *models.Step, field, value string) {
	switch p := step.Payload.(type) {
	case *models.EmailPayload:
		if field == models.FieldSubject {
			p.Subject = value
		} else {
			p.Content = value
		}
	case *models.SMSPayload:
		p.Content = value
	case *models.WebhookPayload:
		p.Content = value
	}
}

func opError(op models.PatchOp, err error) error {
	return &PatchError{Op: string(op.Kind), StepID: op.StepID, Err: err}
}
