package stats

import (
	"context"
	"log/slog"

	apperrors "pitchstats/internal/errors"
)

// Options controls how the engine reacts to sample-size precondition
// violations.
//
// In the default mode a violated precondition (too few pairs, members, or
// buckets) produces a degenerate Result and no error. With FailFast set the
// same condition returns an InsufficientSampleError instead, for batch
// callers that consider an underpowered battery a configuration mistake
// rather than a finding. Value anomalies (zero variance, zero baseline,
// zero pooled spread) are recorded as degenerate data in both modes.
type Options struct {
	FailFast bool
}

// Engine runs the inference procedures. The zero-value Options give the
// record-degeneracy-as-data behavior.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// NewEngine creates a statistical inference engine.
func NewEngine(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		opts:   opts,
		logger: logger.With(slog.String("component", "stats")),
	}
}

// insufficient handles a precondition violation: a degenerate Result in the
// default mode, an InsufficientSampleError in fail-fast mode.
func (e *Engine) insufficient(ctx context.Context, procedure, reason string, sizes map[string]int, warnings ...string) (Result, error) {
	if e.opts.FailFast {
		e.logger.ErrorContext(ctx, "procedure precondition violated",
			slog.String("procedure", procedure),
			slog.String("reason", reason),
		)
		return Result{}, apperrors.NewInsufficientSampleError(procedure, reason, sizes)
	}
	return e.degenerate(ctx, procedure, reason, sizes, warnings...)
}

// degenerate records a numeric anomaly as data in both modes.
func (e *Engine) degenerate(ctx context.Context, procedure, reason string, sizes map[string]int, warnings ...string) (Result, error) {
	e.logger.WarnContext(ctx, "degenerate statistical result",
		slog.String("procedure", procedure),
		slog.String("reason", reason),
	)
	return Result{
		Procedure:   procedure,
		SampleSizes: sizes,
		Degenerate:  true,
		Reason:      reason,
		Warnings:    warnings,
	}, nil
}
