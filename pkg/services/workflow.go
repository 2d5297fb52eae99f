package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/creditflow/workflowdoctor/pkg/eventbus"
	"github.com/creditflow/workflowdoctor/pkg/health"
	"github.com/creditflow/workflowdoctor/pkg/latency"
	"github.com/creditflow/workflowdoctor/pkg/log"
	"github.com/creditflow/workflowdoctor/pkg/metrics"
	"github.com/creditflow/workflowdoctor/pkg/models"
	"github.com/creditflow/workflowdoctor/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config tunes the invocation surface.
type Config struct {
	// BatchConcurrency bounds concurrent analyses in a batch.
	BatchConcurrency int
	// PerWorkflowTimeout bounds one workflow's analysis inside a batch.
	PerWorkflowTimeout time.Duration
	// RecordHealth writes score, status and check time back to the workflow after each analysis.
	RecordHealth bool
	// HistoryLimit caps the health history returned when the caller asks for none or too many.
	HistoryLimit int
	// SweepMinHealthScore is the threshold the daily sweep counts workflows below.
	SweepMinHealthScore int
}

// DefaultConfig returns the configuration used by the binaries.
func DefaultConfig() Config {
	return Config{
		BatchConcurrency:    8,
		PerWorkflowTimeout:  30 * time.Second,
		RecordHealth:        true,
		HistoryLimit:        50,
		SweepMinHealthScore: 70,
	}
}

// WorkflowHealth runs the health engine against stored workflows.
type WorkflowHealth struct {
	engine      *health.Engine
	persistence persistence.Persistence
	latencies   latency.Source
	publisher   eventbus.EventPublisher
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	logger      *slog.Logger
	validate    *validator.Validate
	config      Config
	now         func() time.Time
}

// Option customises a WorkflowHealth.
type Option func(*WorkflowHealth)

// WithLatencySource sets the step latency source. Without one, no latency data is used.
func WithLatencySource(source latency.Source) Option {
	return func(w *WorkflowHealth) { w.latencies = source }
}

// WithPublisher sets where audit events go. Without one, events are dropped.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(w *WorkflowHealth) { w.publisher = publisher }
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *WorkflowHealth) { w.metrics = m }
}

// WithTracer sets the tracer used for spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(w *WorkflowHealth) { w.tracer = tracer }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *WorkflowHealth) { w.logger = logger }
}

// WithConfig replaces the default configuration. Zero numeric fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(w *WorkflowHealth) {
		defaults := DefaultConfig()

		if cfg.BatchConcurrency <= 0 {
			cfg.BatchConcurrency = defaults.BatchConcurrency
		}

		if cfg.PerWorkflowTimeout <= 0 {
			cfg.PerWorkflowTimeout = defaults.PerWorkflowTimeout
		}

		if cfg.HistoryLimit <= 0 {
			cfg.HistoryLimit = defaults.HistoryLimit
		}

		if cfg.SweepMinHealthScore <= 0 || cfg.SweepMinHealthScore > 100 {
			cfg.SweepMinHealthScore = defaults.SweepMinHealthScore
		}

		w.config = cfg
	}
}

// WithClock overrides the analysis clock.
func WithClock(now func() time.Time) Option {
	return func(w *WorkflowHealth) { w.now = now }
}

// NewWorkflowHealth creates the service.
func NewWorkflowHealth(engine *health.Engine, persistence persistence.Persistence, opts ...Option) *WorkflowHealth {
	w := &WorkflowHealth{
		engine:      engine,
		persistence: persistence,
		latencies:   latency.None{},
		tracer:      noop.NewTracerProvider().Tracer("workflowdoctor"),
		logger:      slog.Default(),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		config:      DefaultConfig(),
		now:         func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(w)
	}

	w.logger = w.logger.With("module", "workflow_health")

	return w
}

// loggerFrom prefers the request-scoped logger carried by ctx.
func (w *WorkflowHealth) loggerFrom(ctx context.Context) *slog.Logger {
	if scoped := log.FromContext(ctx, nil); scoped != nil {
		return scoped.With("module", "workflow_health")
	}

	return w.logger
}

// HealthCheck checks the health of the persistence layer.
func (w *WorkflowHealth) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// FetchByID retrieves a workflow by its ID.
func (w *WorkflowHealth) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	if id == "" {
		return nil, ErrWorkflowIDRequired
	}

	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}

	return workflow, nil
}

// Import creates or replaces a workflow document.
func (w *WorkflowHealth) Import(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrInvalidWorkflow
	}

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusDraft
	}

	err := w.validate.StructCtx(ctx, workflow)
	if err != nil {
		return nil, NewValidationError("Import", "INVALID_WORKFLOW", err.Error(), ErrInvalidWorkflow)
	}

	err = w.persistence.WorkflowRepository().Save(ctx, workflow)
	if err != nil {
		if persistence.IsInvalidWorkflowID(err) {
			return nil, NewValidationError("Import", "INVALID_WORKFLOW_ID", err.Error(), ErrInvalidWorkflow)
		}

		return nil, fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	w.loggerFrom(ctx).InfoContext(ctx, "Workflow imported", "workflow_id", workflow.ID, "version", workflow.Version)

	return workflow, nil
}

// HealthHistory returns the most recent health report summaries of a workflow, newest first.
func (w *WorkflowHealth) HealthHistory(ctx context.Context, id string, limit int) ([]*models.HealthReportSummary, error) {
	if id == "" {
		return nil, ErrWorkflowIDRequired
	}

	if limit <= 0 || limit > w.config.HistoryLimit {
		limit = w.config.HistoryLimit
	}

	summaries, err := w.persistence.AuditRepository().ListHealthReports(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list health history of %s: %w", id, err)
	}

	return summaries, nil
}

func (w *WorkflowHealth) publish(ctx context.Context, key string, event eventbus.Event) {
	if w.publisher == nil {
		return
	}

	err := w.publisher.Publish(ctx, key, event)
	if err != nil {
		w.loggerFrom(ctx).ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
	}
}
