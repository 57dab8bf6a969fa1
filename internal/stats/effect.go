package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// PercentChange computes the relative change from a baseline value to a
// comparison value, in percent, signed by direction of movement (the
// denominator is the baseline's magnitude, so a negative baseline still
// reports an increase as positive). A zero baseline leaves relative change
// undefined; the result is degenerate, never ±Inf.
func (e *Engine) PercentChange(ctx context.Context, baseline, comparison float64) (Result, error) {
	sizes := map[string]int{}

	if math.IsNaN(baseline) || math.IsInf(baseline, 0) || math.IsNaN(comparison) || math.IsInf(comparison, 0) {
		return Result{}, fmt.Errorf("percent change: non-finite input (baseline=%v, comparison=%v)", baseline, comparison)
	}
	if baseline == 0 {
		return e.degenerate(ctx, ProcedurePercentChange, "baseline is zero", sizes)
	}

	change := (comparison - baseline) / math.Abs(baseline) * 100

	e.logger.DebugContext(ctx, "percent change computed",
		slog.Float64("baseline", baseline),
		slog.Float64("comparison", comparison),
		slog.Float64("change_pct", change),
	)

	return Result{
		Procedure:   ProcedurePercentChange,
		Statistic:   fptr(change),
		SampleSizes: sizes,
	}, nil
}

// CoefficientOfVariation computes the ratio of the sample standard deviation
// to the mean, a scale-free spread measure meaningful for positive-mean
// series. A zero mean leaves the ratio undefined.
func (e *Engine) CoefficientOfVariation(ctx context.Context, series []float64) (Result, error) {
	sizes := map[string]int{"series": len(series)}

	if len(series) < 2 {
		return e.insufficient(ctx, ProcedureCV,
			fmt.Sprintf("need at least 2 values, have %d", len(series)), sizes)
	}

	mean := Mean(series)
	if mean == 0 {
		return e.degenerate(ctx, ProcedureCV, "zero mean", sizes)
	}

	cv := StdDev(series) / mean

	return Result{
		Procedure:   ProcedureCV,
		Statistic:   fptr(cv),
		SampleSizes: sizes,
	}, nil
}
