package health

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/creditflow/workflowdoctor/pkg/models"
)

// stepGraph is the directed graph derived from a step list. Nodes are step IDs; the first step
// carrying an ID is the canonical node for it, later copies are reported as duplicates.
type stepGraph struct {
	steps []*models.Step
	first map[string]int
	count map[string]int
	entry string
}

func buildGraph(steps []*models.Step, entryStepID string) *stepGraph {
	g := &stepGraph{
		steps: steps,
		first: make(map[string]int, len(steps)),
		count: make(map[string]int, len(steps)),
	}

	for i, step := range steps {
		if step == nil || step.ID == "" {
			continue
		}

		g.count[step.ID]++

		if _, ok := g.first[step.ID]; !ok {
			g.first[step.ID] = i
		}
	}

	g.entry = g.resolveEntry(entryStepID)

	return g
}

// resolveEntry picks the first step flagged IsEntry, then the workflow's declared entry, then the first step.
func (g *stepGraph) resolveEntry(entryStepID string) string {
	for _, step := range g.steps {
		if step != nil && step.IsEntry && step.ID != "" {
			return step.ID
		}
	}

	if _, ok := g.first[entryStepID]; ok {
		return entryStepID
	}

	for _, step := range g.steps {
		if step != nil && step.ID != "" {
			return step.ID
		}
	}

	return ""
}

func (g *stepGraph) has(id string) bool {
	_, ok := g.first[id]

	return ok
}

func (g *stepGraph) node(id string) *models.Step {
	i, ok := g.first[id]
	if !ok {
		return nil
	}

	return g.steps[i]
}

// successors returns the existing targets of a node in declaration order, without repeats.
func (g *stepGraph) successors(id string) []string {
	step := g.node(id)
	if step == nil {
		return nil
	}

	out := make([]string, 0, len(step.Branches)+1)
	seen := make(map[string]bool)

	for _, target := range step.Targets() {
		if target == models.EndStepID || !g.has(target) || seen[target] {
			continue
		}

		seen[target] = true
		out = append(out, target)
	}

	return out
}

func (g *stepGraph) reachable() map[string]bool {
	visited := make(map[string]bool, len(g.first))
	if g.entry == "" {
		return visited
	}

	queue := []string{g.entry}
	visited[g.entry] = true

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, next := range g.successors(id) {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	return visited
}

// ValidateGraph checks a workflow's structural and logical invariants.
func (e *Engine) ValidateGraph(workflow *models.Workflow) []*models.Issue {
	return finalize(e.validateGraph(workflow.Steps, workflow.EntryStepID))
}

func (e *Engine) validateGraph(steps []*models.Step, entryStepID string) []finding {
	g := buildGraph(steps, entryStepID)

	findings := make([]finding, 0)
	findings = append(findings, e.checkIdentity(g)...)
	findings = append(findings, e.checkReferences(g)...)
	findings = append(findings, e.checkBranches(g)...)
	findings = append(findings, e.checkOrphans(g)...)
	findings = append(findings, e.checkCycles(g)...)

	return findings
}

func (e *Engine) checkIdentity(g *stepGraph) []finding {
	var findings []finding

	taken := make(map[string]bool, len(g.first))
	for id := range g.first {
		taken[id] = true
	}

	for i, step := range g.steps {
		if step == nil {
			continue
		}

		if !step.Type.IsKnown() {
			findings = append(findings, newFinding(
				models.CodeUnknownStepType, models.CategoryStructural, models.SeverityCritical,
				step.ID, i, string(step.Type), fmt.Sprintf("step %s has unknown type %q", displayID(step, i), step.Type),
			))
		}

		if step.ID == "" {
			newID := freshID(taken, "step-"+strconv.Itoa(i+1))
			findings = append(findings, newFinding(
				models.CodeMissingStepID, models.CategoryStructural, models.SeverityCritical,
				"", i, "", fmt.Sprintf("step at position %d has no id", i+1),
			).withPatch(&models.Patch{
				Summary: fmt.Sprintf("assign id %q to the step at position %d", newID, i+1),
				Ops: []models.PatchOp{{
					Kind: models.PatchOpSetField, StepIndex: i, Field: models.FieldID, NewValue: newID,
				}},
			}))

			continue
		}

		if g.first[step.ID] == i {
			continue
		}

		canonical := g.steps[g.first[step.ID]]
		f := newFinding(
			models.CodeDuplicateStepID, models.CategoryStructural, models.SeverityCritical,
			step.ID, i, "", fmt.Sprintf("step id %s is used by more than one step (position %d)", step.ID, i+1),
		)

		if !sameStepContent(canonical, step) {
			f.issue.Description += "; copies differ and require a manual merge"
			findings = append(findings, f)

			continue
		}

		newID := freshID(taken, step.ID+"-"+strconv.Itoa(g.count[step.ID]))
		findings = append(findings, f.withPatch(&models.Patch{
			Summary: fmt.Sprintf("rename duplicate %s at position %d to %s", step.ID, i+1, newID),
			Ops: []models.PatchOp{{
				Kind: models.PatchOpRenameStep, StepID: step.ID, StepIndex: i, Field: models.FieldID,
				OldValue: step.ID, NewValue: newID,
			}},
		}))
	}

	return findings
}

// freshID returns base, or base suffixed with a counter, that is not yet taken, and reserves it.
func freshID(taken map[string]bool, base string) string {
	id := base
	for n := 2; taken[id] || id == models.EndStepID; n++ {
		id = base + "-" + strconv.Itoa(n)
	}

	taken[id] = true

	return id
}

// sameStepContent compares everything but the ID and entry flag.
func sameStepContent(a, b *models.Step) bool {
	if a.Type != b.Type || a.NextStepID != b.NextStepID || a.Name != b.Name || len(a.Branches) != len(b.Branches) {
		return false
	}

	for i := range a.Branches {
		if a.Branches[i] != b.Branches[i] {
			return false
		}
	}

	if (a.Payload == nil) != (b.Payload == nil) {
		return false
	}

	return a.RenderedPayload() == b.RenderedPayload()
}

// checkReferences flags links to missing steps. Steps without an ID are checked too, addressed by position,
// so their links are repaired before an ID is assigned.
func (e *Engine) checkReferences(g *stepGraph) []finding {
	var findings []finding

	for i, step := range g.steps {
		if step == nil {
			continue
		}

		if step.NextStepID != "" && step.NextStepID != models.EndStepID && !g.has(step.NextStepID) {
			findings = append(findings, danglingFinding(step, i, models.FieldNextStepID, 0, step.NextStepID))
		}

		for b, branch := range step.Branches {
			if branch.TargetStepID != "" && branch.TargetStepID != models.EndStepID && !g.has(branch.TargetStepID) {
				findings = append(findings, danglingFinding(step, i, models.FieldBranchTarget, b, branch.TargetStepID))
			}
		}
	}

	return findings
}

func danglingFinding(step *models.Step, position int, field string, branchIndex int, target string) finding {
	where := "next step"
	if field == models.FieldBranchTarget {
		where = fmt.Sprintf("branch %d", branchIndex+1)
	}

	name := displayID(step, position)

	return newFinding(
		models.CodeBrokenReference, models.CategoryLogic, models.SeverityCritical,
		step.ID, position, field+":"+strconv.Itoa(branchIndex)+":"+target,
		fmt.Sprintf("step %s %s points to missing step %s", name, where, target),
	).withPatch(relinkPatch(step, position, field, branchIndex, target,
		fmt.Sprintf("redirect %s of step %s from missing %s to end", where, name, target)))
}

func relinkPatch(step *models.Step, position int, field string, branchIndex int, oldTarget, summary string) *models.Patch {
	return &models.Patch{
		Summary: summary,
		Ops: []models.PatchOp{{
			Kind:        models.PatchOpRelink,
			StepID:      step.ID,
			StepIndex:   position,
			Field:       field,
			BranchIndex: branchIndex,
			OldValue:    oldTarget,
			NewValue:    models.EndStepID,
		}},
	}
}

func (e *Engine) checkBranches(g *stepGraph) []finding {
	var findings []finding

	for i, step := range g.steps {
		if step == nil {
			continue
		}

		name := displayID(step, i)

		if step.Type != models.StepTypeConditional {
			if len(step.Branches) > 0 {
				findings = append(findings, newFinding(
					models.CodeInvalidBranch, models.CategoryLogic, models.SeverityWarning,
					step.ID, i, "branches-on-linear",
					fmt.Sprintf("%s step %s declares conditional branches that will never be evaluated", step.Type, name),
				))
			}

			continue
		}

		if len(step.Branches) == 0 {
			findings = append(findings, newFinding(
				models.CodeInvalidBranch, models.CategoryLogic, models.SeverityWarning,
				step.ID, i, "no-branches", fmt.Sprintf("conditional step %s has no branches", name),
			))

			continue
		}

		for b, branch := range step.Branches {
			if strings.TrimSpace(branch.Condition) == "" {
				findings = append(findings, newFinding(
					models.CodeInvalidBranch, models.CategoryLogic, models.SeverityWarning,
					step.ID, i, "empty-condition:"+strconv.Itoa(b),
					fmt.Sprintf("branch %d of conditional step %s has no condition", b+1, name),
				))
			}

			if branch.TargetStepID == "" {
				findings = append(findings, newFinding(
					models.CodeInvalidBranch, models.CategoryLogic, models.SeverityCritical,
					step.ID, i, "empty-target:"+strconv.Itoa(b),
					fmt.Sprintf("branch %d of conditional step %s has no target", b+1, name),
				).withPatch(relinkPatch(step, i, models.FieldBranchTarget, b, "",
					fmt.Sprintf("point branch %d of step %s to end", b+1, name))))
			}
		}
	}

	return findings
}

func (e *Engine) checkOrphans(g *stepGraph) []finding {
	var findings []finding

	reachable := g.reachable()

	for i, step := range g.steps {
		if step == nil || step.ID == "" || g.first[step.ID] != i || reachable[step.ID] {
			continue
		}

		f := newFinding(
			models.CodeOrphanStep, models.CategoryStructural, models.SeverityWarning,
			step.ID, i, "", fmt.Sprintf("step %s is unreachable from entry step %s", step.ID, g.entry),
		)

		linksIn := false

		for _, next := range g.successors(step.ID) {
			if reachable[next] {
				linksIn = true

				break
			}
		}

		switch {
		case linksIn:
			f.issue.Description += "; it links into the workflow and may be an alternate entry"
			findings = append(findings, f)
		case e.config.DeleteOrphans:
			findings = append(findings, f.withPatch(&models.Patch{
				Summary: fmt.Sprintf("delete unreachable step %s", step.ID),
				Ops: []models.PatchOp{{
					Kind: models.PatchOpDeleteStep, StepID: step.ID, StepIndex: i, OldValue: step.ID,
				}},
			}))
		default:
			findings = append(findings, f)
		}
	}

	return findings
}

const (
	white = iota
	grey
	black
)

// checkCycles runs a colouring DFS from every node in step order. Each back edge closes a cycle,
// which is reported once regardless of the node the search entered it from.
func (e *Engine) checkCycles(g *stepGraph) []finding {
	var findings []finding

	colour := make(map[string]int, len(g.first))
	reported := make(map[string]bool)

	var stack []string

	var visit func(id string)
	visit = func(id string) {
		colour[id] = grey
		stack = append(stack, id)

		for _, next := range g.successors(id) {
			switch colour[next] {
			case white:
				visit(next)
			case grey:
				cycle := g.canonicalCycle(cycleFromStack(stack, next))

				key := cycleKey(cycle)
				if !reported[key] {
					reported[key] = true
					findings = append(findings, e.cycleFinding(g, cycle))
				}
			}
		}

		stack = stack[:len(stack)-1]
		colour[id] = black
	}

	for i, step := range g.steps {
		if step == nil || step.ID == "" || g.first[step.ID] != i {
			continue
		}

		if colour[step.ID] == white {
			visit(step.ID)
		}
	}

	return findings
}

func cycleFromStack(stack []string, start string) []string {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == start {
			return append([]string(nil), stack[i:]...)
		}
	}

	return nil
}

// canonicalCycle rotates the cycle so it starts at the member that appears first in the step list.
func (g *stepGraph) canonicalCycle(cycle []string) []string {
	if len(cycle) == 0 {
		return cycle
	}

	start := 0
	for i, id := range cycle {
		if g.first[id] < g.first[cycle[start]] {
			start = i
		}
	}

	return append(append([]string(nil), cycle[start:]...), cycle[:start]...)
}

func cycleKey(cycle []string) string {
	return strings.Join(cycle, ">")
}

func (e *Engine) cycleFinding(g *stepGraph, cycle []string) finding {
	members := make(map[string]bool, len(cycle))
	for _, id := range cycle {
		members[id] = true
	}

	description := fmt.Sprintf("steps form a cycle: %s -> %s", strings.Join(cycle, " -> "), cycle[0])

	f := newFinding(
		models.CodeCycle, models.CategoryLogic, models.SeverityCritical,
		cycle[0], g.first[cycle[0]], cycleKey(cycle), description,
	)
	f.issue.StepIDs = cycle

	// An edge is an unambiguous break point when its source has no way out of the loop;
	// the fix is only suggested when exactly one member is in that position.
	var breakAt []int

	for i, id := range cycle {
		if !hasExit(g.node(id), members) {
			breakAt = append(breakAt, i)
		}
	}

	if len(breakAt) != 1 {
		return f
	}

	from := cycle[breakAt[0]]
	to := cycle[(breakAt[0]+1)%len(cycle)]
	step := g.node(from)
	position := g.first[from]

	field, branchIndex := models.FieldNextStepID, 0
	if step.NextStepID != to {
		for b, branch := range step.Branches {
			if branch.TargetStepID == to {
				field, branchIndex = models.FieldBranchTarget, b

				break
			}
		}
	}

	f.issue.ProposedPatch = relinkPatch(step, position, field, branchIndex, to,
		fmt.Sprintf("break the cycle by ending the workflow after step %s instead of returning to %s", from, to))

	return f
}

// hasExit reports whether the step links to the end marker or to any step outside members.
func hasExit(step *models.Step, members map[string]bool) bool {
	for _, target := range step.Targets() {
		if !members[target] {
			return true
		}
	}

	return false
}
