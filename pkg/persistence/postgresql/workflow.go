package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/persistence"
	json "github.com/goccy/go-json"
)

const workflowColumns = `
			id
		  , name
		  , status
		  , entry_step_id
		  , steps
		  , health_score
		  , health_status
		  , last_health_check_date
		  , last_repair_date
		  , total_repairs_made
		  , version
		  , created_at
		  , updated_at`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetByID returns a workflow by its ID.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)

	workflow, err := r.scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

// ListIDs returns the ids of the workflows in the given status, sorted. An empty status lists all.
func (r *WorkflowRepository) ListIDs(ctx context.Context, status models.WorkflowStatus) ([]string, error) {
	query := `SELECT id FROM workflows ORDER BY id`
	args := []any{}

	if status != "" {
		query = `SELECT id FROM workflows WHERE status = $1 ORDER BY id`
		args = append(args, string(status))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow ids: %w", err)
	}

	defer func(ctx context.Context, r *WorkflowRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	ids := make([]string, 0)

	for rows.Next() {
		var id string

		err := rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow id: %w", err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow ids: %w", err)
	}

	return ids, nil
}

// Save creates or replaces a workflow, bumping its version past the stored one.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	steps, err := json.Marshal(workflow.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps: %w", err)
	}

	query := `
		INSERT INTO workflows (
			id, name, status, entry_step_id, steps, health_score, health_status,
			last_health_check_date, last_repair_date, total_repairs_made, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , status = EXCLUDED.status
		  , entry_step_id = EXCLUDED.entry_step_id
		  , steps = EXCLUDED.steps
		  , health_score = EXCLUDED.health_score
		  , health_status = EXCLUDED.health_status
		  , last_health_check_date = EXCLUDED.last_health_check_date
		  , last_repair_date = EXCLUDED.last_repair_date
		  , total_repairs_made = EXCLUDED.total_repairs_made
		  , version = workflows.version + 1
		  , updated_at = EXCLUDED.updated_at
		RETURNING version, created_at
	`

	err = r.db.QueryRowContext(ctx, query,
		workflow.ID,
		workflow.Name,
		string(workflow.Status),
		workflow.EntryStepID,
		steps,
		workflow.HealthScore,
		string(workflow.HealthStatus),
		nullTime(workflow.LastHealthCheckDate),
		nullTime(workflow.LastRepairDate),
		workflow.TotalRepairsMade,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	).Scan(&workflow.Version, &workflow.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

// Update applies patch in one conditional statement; increments and timestamps are computed by the database.
func (r *WorkflowRepository) Update(ctx context.Context, id string, patch *models.WorkflowPatch, expectedVersion int64) (*models.Workflow, error) {
	assignments, args, err := compileAssignments(patch, 3)
	if err != nil {
		return nil, persistence.NewWorkflowError("Update", id, fmt.Errorf("%w: %w", persistence.ErrUnsupportedMutation, err))
	}

	assignments = append(assignments, "version = version + 1", "updated_at = NOW()")

	query := `UPDATE workflows SET ` + strings.Join(assignments, ", ") +
		` WHERE id = $1 AND version = $2 RETURNING ` + workflowColumns

	row := r.db.QueryRowContext(ctx, query, append([]any{id, expectedVersion}, args...)...)

	workflow, err := r.scanWorkflow(row)
	if err == nil {
		return workflow, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to update workflow %s: %w", id, err)
	}

	var actual int64

	err = r.db.QueryRowContext(ctx, `SELECT version FROM workflows WHERE id = $1`, id).Scan(&actual)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("Update", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to read workflow version: %w", err)
	}

	return nil, persistence.NewVersionConflictError("Update", id, expectedVersion, actual)
}

// compileAssignments translates mutations into SET clauses over a fixed column set, numbering
// placeholders from firstArg.
func compileAssignments(patch *models.WorkflowPatch, firstArg int) ([]string, []any, error) {
	if patch == nil {
		return nil, nil, nil
	}

	assignments := make([]string, 0, len(patch.Mutations))
	args := make([]any, 0, len(patch.Mutations))

	placeholder := func(value any) string {
		args = append(args, value)

		return "$" + strconv.Itoa(firstArg+len(args)-1)
	}

	for _, mutation := range patch.Mutations {
		invalid := &models.InvalidMutationError{Mutation: mutation}

		switch mutation.Kind {
		case models.MutationServerTime:
			switch mutation.Field {
			case models.WorkflowFieldLastHealthCheckDate, models.WorkflowFieldLastRepairDate:
				assignments = append(assignments, mutation.Field+" = NOW()")
			default:
				return nil, nil, invalid
			}

		case models.MutationIncrement:
			n, ok := mutation.Value.(int)
			if !ok {
				return nil, nil, invalid
			}

			switch mutation.Field {
			case models.WorkflowFieldTotalRepairsMade, models.WorkflowFieldHealthScore:
				assignments = append(assignments, mutation.Field+" = "+mutation.Field+" + "+placeholder(n))
			default:
				return nil, nil, invalid
			}

		case models.MutationSet:
			value, err := columnValue(mutation)
			if err != nil {
				return nil, nil, err
			}

			assignments = append(assignments, mutation.Field+" = "+placeholder(value))

		default:
			return nil, nil, invalid
		}
	}

	return assignments, args, nil
}

func columnValue(mutation models.FieldMutation) (any, error) {
	switch mutation.Field {
	case models.WorkflowFieldSteps:
		steps, ok := mutation.Value.([]*models.Step)
		if !ok {
			break
		}

		data, err := json.Marshal(steps)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal steps: %w", err)
		}

		return data, nil
	case models.WorkflowFieldHealthScore, models.WorkflowFieldTotalRepairsMade:
		if n, ok := mutation.Value.(int); ok {
			return n, nil
		}
	case models.WorkflowFieldHealthStatus:
		if status, ok := mutation.Value.(models.HealthStatus); ok {
			return string(status), nil
		}
	}

	return nil, &models.InvalidMutationError{Mutation: mutation}
}

func (r *WorkflowRepository) scanWorkflow(scanner interface{ Scan(dest ...any) error }) (*models.Workflow, error) {
	var (
		workflow          models.Workflow
		status            string
		healthStatus      string
		steps             []byte
		lastHealthCheckAt sql.NullTime
		lastRepairAt      sql.NullTime
	)

	err := scanner.Scan(
		&workflow.ID,
		&workflow.Name,
		&status,
		&workflow.EntryStepID,
		&steps,
		&workflow.HealthScore,
		&healthStatus,
		&lastHealthCheckAt,
		&lastRepairAt,
		&workflow.TotalRepairsMade,
		&workflow.Version,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.Status = models.WorkflowStatus(status)
	workflow.HealthStatus = models.HealthStatus(healthStatus)
	workflow.LastHealthCheckDate = timePtr(lastHealthCheckAt)
	workflow.LastRepairDate = timePtr(lastRepairAt)

	err = json.Unmarshal(steps, &workflow.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal steps of workflow %s: %w", workflow.ID, err)
	}

	return &workflow, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	value := t.Time.UTC()

	return &value
}
