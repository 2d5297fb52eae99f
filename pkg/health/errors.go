package health

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPatchRegression = errors.New("patch would introduce new defect")
	ErrUnknownIssueIDs = errors.New("issue ids not found in current analysis")
	ErrStepNotFound    = errors.New("step not found")
	ErrStaleStep       = errors.New("step no longer matches the analyzed state")
	ErrUnsupportedOp   = errors.New("unsupported patch operation")
	ErrNoPatch         = errors.New("no patch available")
)

// UnknownIssuesError lists issue IDs a repair request named that the current analysis does not contain.
type UnknownIssuesError struct {
	IssueIDs []string
}

func (e *UnknownIssuesError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnknownIssueIDs, strings.Join(e.IssueIDs, ", "))
}

func (e *UnknownIssuesError) Unwrap() error {
	return ErrUnknownIssueIDs
}

// PatchError describes why one op of a patch could not be applied.
type PatchError struct {
	Op     string
	StepID string
	Err    error
}

func (e *PatchError) Error() string {
	if e.StepID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s on step %s: %v", e.Op, e.StepID, e.Err)
}

func (e *PatchError) Unwrap() error {
	return e.Err
}
