package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/persistence"
	json "github.com/goccy/go-json"
)

var workflowIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// WorkflowRepository stores one JSON document per workflow. A single mutex serialises read-modify-write
// cycles so version checks are atomic within the process.
type WorkflowRepository struct {
	root string
	mu   sync.Mutex
	now  func() time.Time
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root, now: func() time.Time { return time.Now().UTC() }}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

func (wr *WorkflowRepository) path(id string) (string, error) {
	if !workflowIDPattern.MatchString(id) || strings.Contains(id, "..") {
		return "", persistence.NewWorkflowError("Resolve", id, persistence.ErrInvalidWorkflowID)
	}

	return filepath.Join(wr.dir(), id+".json"), nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	return wr.read(workflowID)
}

func (wr *WorkflowRepository) read(workflowID string) (*models.Workflow, error) {
	filePath, err := wr.path(workflowID)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("GetByID", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", workflowID, err)
	}

	return &workflow, nil
}

// ListIDs returns the ids of the stored workflows in the given status, sorted.
func (wr *WorkflowRepository) ListIDs(_ context.Context, status models.WorkflowStatus) ([]string, error) {
	jsonFiles, err := fs.Glob(os.DirFS(wr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	ids := make([]string, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		workflowID := strings.TrimSuffix(file, ".json")

		if status != "" {
			workflow, err := wr.read(workflowID)
			if err != nil {
				return nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
			}

			if workflow.Status != status {
				continue
			}
		}

		ids = append(ids, workflowID)
	}

	sort.Strings(ids)

	return ids, nil
}

// Save creates or replaces a workflow document, bumping its version past the stored one.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	existing, err := wr.read(workflow.ID)
	if err != nil && !persistence.IsWorkflowNotFound(err) {
		return err
	}

	now := wr.now()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now
	workflow.Version = 1

	if existing != nil {
		workflow.CreatedAt = existing.CreatedAt
		workflow.Version = existing.Version + 1
	}

	return wr.write(workflow)
}

// Update applies patch when the stored version matches expectedVersion.
func (wr *WorkflowRepository) Update(_ context.Context, id string, patch *models.WorkflowPatch, expectedVersion int64) (*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.read(id)
	if err != nil {
		return nil, err
	}

	if workflow.Version != expectedVersion {
		return nil, persistence.NewVersionConflictError("Update", id, expectedVersion, workflow.Version)
	}

	now := wr.now()
	if err := patch.ApplyTo(workflow, now); err != nil {
		return nil, persistence.NewWorkflowError("Update", id, fmt.Errorf("%w: %w", persistence.ErrUnsupportedMutation, err))
	}

	workflow.Version++
	workflow.UpdatedAt = now

	if err := wr.write(workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// write replaces the document atomically through a temp file and rename.
func (wr *WorkflowRepository) write(workflow *models.Workflow) error {
	filePath, err := wr.path(workflow.ID)
	if err != nil {
		return err
	}

	err = os.MkdirAll(wr.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", workflow.ID, err)
	}

	tmp, err := os.CreateTemp(wr.dir(), workflow.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for workflow %s: %w", workflow.ID, err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write workflow %s: %w", workflow.ID, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close workflow %s: %w", workflow.ID, err)
	}

	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to replace workflow %s: %w", workflow.ID, err)
	}

	return nil
}
