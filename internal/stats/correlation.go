package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Pearson computes the Pearson correlation coefficient between two paired
// series together with a two-sided p-value from the t transform
// t = r*sqrt((n-2)/(1-r^2)) against Student's t with n-2 degrees of freedom.
//
// The series must already be paired and null-free; pairing by canonical ID is
// the caller's responsibility. Fewer than 3 pairs, mismatched lengths, or
// zero variance in either series cannot define a coefficient.
func (e *Engine) Pearson(ctx context.Context, x, y []float64) (Result, error) {
	sizes := map[string]int{"pairs": len(x)}

	if len(x) != len(y) {
		return Result{}, fmt.Errorf("pearson: series lengths differ (%d vs %d)", len(x), len(y))
	}
	if len(x) < 3 {
		return e.insufficient(ctx, ProcedurePearson,
			fmt.Sprintf("need at least 3 pairs, have %d", len(x)), sizes)
	}

	meanX, meanY := Mean(x), Mean(y)
	var sxx, syy, sxy float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}

	if sxx == 0 || syy == 0 {
		return e.degenerate(ctx, ProcedurePearson, "zero variance in a series", sizes)
	}

	r := sxy / math.Sqrt(sxx*syy)
	// Guard against r drifting past ±1 through rounding.
	if r > 1 {
		r = 1
	} else if r < -1 {
		r = -1
	}

	n := float64(len(x))
	var p float64
	if rr := r * r; rr >= 1 {
		// Perfectly collinear pairs: the t statistic diverges and the
		// p-value collapses to zero.
		p = 0
	} else {
		t := r * math.Sqrt((n-2)/(1-rr))
		dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 2}
		p = 2 * (1 - dist.CDF(math.Abs(t)))
	}

	e.logger.DebugContext(ctx, "pearson correlation computed",
		slog.Int("pairs", len(x)),
		slog.Float64("r", r),
		slog.Float64("p_value", p),
	)

	return Result{
		Procedure:   ProcedurePearson,
		Statistic:   fptr(r),
		PValue:      fptr(p),
		SampleSizes: sizes,
	}, nil
}
