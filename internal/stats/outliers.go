package stats

import (
	"context"
	"fmt"
	"log/slog"
)

// OutlierReport extends Result with the fences and the flagged values. The
// embedded Result's Statistic is the number of outliers found.
type OutlierReport struct {
	Result
	Q1         float64   `json:"q1"`
	Q3         float64   `json:"q3"`
	IQR        float64   `json:"iqr"`
	LowerFence float64   `json:"lower_fence"`
	UpperFence float64   `json:"upper_fence"`
	Indices    []int     `json:"indices"`
	Values     []float64 `json:"values"`
}

// Outliers flags values outside the Tukey fences Q1-1.5*IQR and Q3+1.5*IQR,
// with quartiles from the package's fixed interpolation rule. Indices refer
// to positions in the input series, in input order, so flags can be traced
// back to entities. Fewer than 4 values cannot define quartiles.
func (e *Engine) Outliers(ctx context.Context, series []float64) (OutlierReport, error) {
	sizes := map[string]int{"series": len(series)}

	if len(series) < 4 {
		res, err := e.insufficient(ctx, ProcedureOutliers,
			fmt.Sprintf("need at least 4 values, have %d", len(series)), sizes)
		return OutlierReport{Result: res}, err
	}

	q1, _, q3 := Quartiles(series)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	var indices []int
	var values []float64
	for i, v := range series {
		if v < lower || v > upper {
			indices = append(indices, i)
			values = append(values, v)
		}
	}

	e.logger.DebugContext(ctx, "iqr outliers computed",
		slog.Int("series", len(series)),
		slog.Int("outliers", len(indices)),
		slog.Float64("lower_fence", lower),
		slog.Float64("upper_fence", upper),
	)

	return OutlierReport{
		Result: Result{
			Procedure:   ProcedureOutliers,
			Statistic:   fptr(float64(len(indices))),
			SampleSizes: sizes,
		},
		Q1:         q1,
		Q3:         q3,
		IQR:        iqr,
		LowerFence: lower,
		UpperFence: upper,
		Indices:    indices,
		Values:     values,
	}, nil
}
