package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/creditflow/workflowdoctor/pkg/audit"
	"github.com/creditflow/workflowdoctor/pkg/eventbus"
	"github.com/creditflow/workflowdoctor/pkg/health"
	"github.com/creditflow/workflowdoctor/pkg/metrics"
	"github.com/creditflow/workflowdoctor/pkg/otelhelper"
	"github.com/creditflow/workflowdoctor/pkg/persistence"
	"github.com/creditflow/workflowdoctor/pkg/services"
)

// Options configures a Runtime.
type Options struct {
	ServiceName    string
	DatabaseURL    string
	EventBus       string
	KafkaBrokers   string
	RedisURL       string
	MinWaitSeconds int64
	DeleteOrphans  bool
	OtelEnabled    bool
}

// Runtime holds the wired service and everything that has to be closed with it.
type Runtime struct {
	Service     *services.WorkflowHealth
	Persistence persistence.Persistence
	EventBus    eventbus.EventBus
	Metrics     *metrics.Metrics

	closers []func(context.Context) error
	logger  *slog.Logger
}

// NewRuntime opens the store, the event bus and the latency source, registers the audit recorder and
// builds the health service. On error everything opened so far is closed.
func NewRuntime(ctx context.Context, logger *slog.Logger, opts Options) (_ *Runtime, err error) {
	r := &Runtime{logger: logger}

	defer func() {
		if err != nil {
			r.Close(ctx)
		}
	}()

	engine, err := health.NewEngine(health.Config{
		MinWaitSeconds: opts.MinWaitSeconds,
		DeleteOrphans:  opts.DeleteOrphans,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create health engine: %w", err)
	}

	r.Persistence, err = NewPersistence(ctx, logger, opts.DatabaseURL)
	if err != nil {
		return nil, err
	}

	r.closers = append(r.closers, r.Persistence.Close)

	r.EventBus, err = NewEventBus(opts.EventBus, opts.KafkaBrokers, opts.ServiceName, logger)
	if err != nil {
		return nil, err
	}

	r.closers = append(r.closers, func(context.Context) error { return r.EventBus.Close() })

	if err = audit.NewRecorder(r.Persistence.AuditRepository(), logger).Register(r.EventBus); err != nil {
		return nil, err
	}

	if err = r.EventBus.Subscribe(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe audit recorder: %w", err)
	}

	latencies, closeLatencies, err := NewLatencySource(ctx, logger, opts.RedisURL)
	if err != nil {
		return nil, err
	}

	r.closers = append(r.closers, func(context.Context) error { return closeLatencies() })

	tracer, shutdownTracer, err := otelhelper.NewTracer(ctx, opts.ServiceName, opts.OtelEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	r.closers = append(r.closers, shutdownTracer)
	r.Metrics = metrics.New()

	r.Service = services.NewWorkflowHealth(engine, r.Persistence,
		services.WithLatencySource(latencies),
		services.WithPublisher(r.EventBus),
		services.WithMetrics(r.Metrics),
		services.WithTracer(tracer),
		services.WithLogger(logger),
	)

	return r, nil
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close(ctx context.Context) {
	var errs []error

	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	r.closers = nil

	if err := errors.Join(errs...); err != nil {
		r.logger.ErrorContext(ctx, "Failed to close runtime", "error", err)
	}
}
