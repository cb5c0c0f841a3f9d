package upload

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "massupload.upload"

// Request describes one batch to run.
type Request struct {
	Type UploadType
	User string
	// ID is the upload id; a new one is generated when zero.
	ID       uuid.UUID
	Progress ProgressReporter
}

// Pipeline runs batches against a registry of upload types. It holds no
// per-batch state and may be shared by concurrent uploads.
type Pipeline struct {
	registry *Registry
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// PipelineOption customises a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the base logger of every run.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock replaces time.Now as the source of batch start instants.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline over registry.
func NewPipeline(registry *Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry: registry,
		logger:   slog.Default(),
		tracer:   otel.Tracer(TracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", "upload_pipeline"))
	return p
}

// Registry returns the upload types the pipeline knows.
func (p *Pipeline) Registry() *Registry { return p.registry }

// Run processes s as a batch of req.Type. The returned Run carries the
// complete Result whatever happened to the rows; the only error is an
// unregistered upload type.
func (p *Pipeline) Run(ctx context.Context, s Sheet, req Request) (*Run, error) {
	def, err := p.registry.Lookup(req.Type)
	if err != nil {
		return nil, err
	}

	opts := []RunOption{
		WithStartTime(p.now()),
		WithProgress(req.Progress),
		WithRunLogger(p.logger),
	}
	if req.ID != uuid.Nil {
		opts = append(opts, WithRunID(req.ID))
	}
	run := NewRun(def.Config, req.User, opts...)

	ctx, span := p.tracer.Start(ctx, "upload.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("upload.id", run.ID.String()),
			attribute.String("upload.type", string(run.Type)),
			attribute.Int("upload.rows", max(s.LastRow(), 0)),
		))
	defer span.End()

	run.logger.InfoContext(ctx, "upload started", slog.Int("rows", max(s.LastRow(), 0)))

	accepted := p.phase(ctx, "verify", func(ctx context.Context) bool {
		return Verify(ctx, s, run)
	})
	if !accepted {
		span.SetStatus(codes.Error, "sheet rejected")
		run.logger.WarnContext(ctx, "upload rejected", slog.Int("errors", run.Result.Counts().Error))
		return run, nil
	}

	var records []*Record
	p.phase(ctx, "extract", func(ctx context.Context) bool {
		records = Extract(ctx, s, run)
		return true
	})
	p.phase(ctx, "transform", func(ctx context.Context) bool {
		records = Transform(ctx, records, def.NewTransformer(run.StartedAt), run)
		return true
	})
	p.phase(ctx, "load", func(ctx context.Context) bool {
		return Load(ctx, records, def.Loader, run)
	})

	counts := run.Result.Counts()
	span.SetAttributes(
		attribute.Int("upload.success", counts.Success),
		attribute.Int("upload.errors", counts.Error),
		attribute.Int("upload.ignored", counts.Ignore),
	)
	run.logger.InfoContext(ctx, "upload finished",
		slog.Int("success", counts.Success),
		slog.Int("errors", counts.Error),
		slog.Int("warnings", counts.Warning),
		slog.Duration("duration", time.Since(run.StartedAt)))
	return run, nil
}

func (p *Pipeline) phase(ctx context.Context, name string, fn func(context.Context) bool) bool {
	ctx, span := p.tracer.Start(ctx, "upload."+name)
	defer span.End()
	ok := fn(ctx)
	span.SetAttributes(attribute.Bool("upload.phase_ok", ok))
	return ok
}
