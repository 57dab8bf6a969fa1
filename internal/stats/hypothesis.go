package stats

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// WelchTTest compares the means of a baseline and a comparison cohort using
// the Welch (unequal variance) formulation; the equal-variance Student test
// is never used. The statistic is signed: positive when the comparison
// cohort's mean exceeds the baseline's. The two-sided p-value comes from
// Student's t with Welch-Satterthwaite degrees of freedom.
func (e *Engine) WelchTTest(ctx context.Context, baseline, comparison []float64) (Result, error) {
	sizes := map[string]int{"baseline": len(baseline), "comparison": len(comparison)}

	if len(baseline) < 2 || len(comparison) < 2 {
		return e.insufficient(ctx, ProcedureWelchTTest,
			fmt.Sprintf("need at least 2 values per cohort, have %d and %d", len(baseline), len(comparison)), sizes)
	}

	n1, n2 := float64(len(baseline)), float64(len(comparison))
	m1, m2 := Mean(baseline), Mean(comparison)
	v1, v2 := Variance(baseline), Variance(comparison)

	se2 := v1/n1 + v2/n2
	if se2 == 0 {
		return e.degenerate(ctx, ProcedureWelchTTest, "zero variance in both cohorts", sizes)
	}

	t := (m2 - m1) / math.Sqrt(se2)
	df := se2 * se2 / ((v1/n1)*(v1/n1)/(n1-1) + (v2/n2)*(v2/n2)/(n2-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * (1 - dist.CDF(math.Abs(t)))

	e.logger.DebugContext(ctx, "welch t-test computed",
		slog.Float64("t", t),
		slog.Float64("df", df),
		slog.Float64("p_value", p),
	)

	return Result{
		Procedure:   ProcedureWelchTTest,
		Statistic:   fptr(t),
		PValue:      fptr(p),
		SampleSizes: sizes,
	}, nil
}

// OneWayANOVA tests whether the bucket means differ, via the F distribution.
// Buckets with fewer than 2 members cannot contribute a within-bucket
// variance; they are excluded from the computation and recorded in Warnings
// rather than silently dropped. SampleSizes records every input bucket,
// excluded ones included.
func (e *Engine) OneWayANOVA(ctx context.Context, buckets []CohortBucket) (Result, error) {
	sizes := make(map[string]int, len(buckets))
	for _, b := range buckets {
		sizes[b.Name] = len(b.Values)
	}

	var surviving []CohortBucket
	var warnings []string
	for _, b := range buckets {
		if len(b.Values) < 2 {
			warnings = append(warnings,
				fmt.Sprintf("bucket %q excluded: %d members, need at least 2", b.Name, len(b.Values)))
			continue
		}
		surviving = append(surviving, b)
	}

	if len(surviving) < 2 {
		return e.insufficient(ctx, ProcedureOneWayANOVA,
			fmt.Sprintf("need at least 2 buckets with 2 or more members, have %d", len(surviving)),
			sizes, warnings...)
	}

	total := 0
	grandSum := 0.0
	for _, b := range surviving {
		total += len(b.Values)
		for _, v := range b.Values {
			grandSum += v
		}
	}
	grandMean := grandSum / float64(total)

	var ssBetween, ssWithin float64
	for _, b := range surviving {
		m := Mean(b.Values)
		d := m - grandMean
		ssBetween += float64(len(b.Values)) * d * d
		for _, v := range b.Values {
			dv := v - m
			ssWithin += dv * dv
		}
	}

	dfBetween := float64(len(surviving) - 1)
	dfWithin := float64(total - len(surviving))

	if ssWithin == 0 {
		return e.degenerate(ctx, ProcedureOneWayANOVA, "zero within-bucket variance", sizes, warnings...)
	}

	f := (ssBetween / dfBetween) / (ssWithin / dfWithin)
	dist := distuv.F{D1: dfBetween, D2: dfWithin}
	p := 1 - dist.CDF(f)

	e.logger.DebugContext(ctx, "one-way anova computed",
		slog.Int("buckets", len(surviving)),
		slog.Int("excluded", len(buckets)-len(surviving)),
		slog.Float64("f", f),
		slog.Float64("p_value", p),
	)

	return Result{
		Procedure:   ProcedureOneWayANOVA,
		Statistic:   fptr(f),
		PValue:      fptr(p),
		SampleSizes: sizes,
		Warnings:    warnings,
	}, nil
}

// CohenD computes the standardized mean difference between a baseline and a
// comparison cohort, (mean(comparison)-mean(baseline))/pooledSD, reported in
// EffectSize. Identical cohorts yield a degenerate result, never ±Inf: a
// zero pooled spread means the scale of the difference is undefined, not
// that the effect is infinite.
func (e *Engine) CohenD(ctx context.Context, baseline, comparison []float64) (Result, error) {
	sizes := map[string]int{"baseline": len(baseline), "comparison": len(comparison)}

	if len(baseline) < 2 || len(comparison) < 2 {
		return e.insufficient(ctx, ProcedureCohenD,
			fmt.Sprintf("need at least 2 values per cohort, have %d and %d", len(baseline), len(comparison)), sizes)
	}

	n1, n2 := float64(len(baseline)), float64(len(comparison))
	v1, v2 := Variance(baseline), Variance(comparison)

	pooled := math.Sqrt(((n1-1)*v1 + (n2-1)*v2) / (n1 + n2 - 2))
	if pooled == 0 {
		return e.degenerate(ctx, ProcedureCohenD, "pooled standard deviation is zero", sizes)
	}

	d := (Mean(comparison) - Mean(baseline)) / pooled

	e.logger.DebugContext(ctx, "cohen's d computed",
		slog.Float64("d", d),
		slog.String("magnitude", InterpretEffectSize(d)),
	)

	return Result{
		Procedure:   ProcedureCohenD,
		EffectSize:  fptr(d),
		SampleSizes: sizes,
	}, nil
}
