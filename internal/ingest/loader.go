package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"pitchstats/internal/dataset"
)

// PerformanceSource is one performance export on disk.
type PerformanceSource struct {
	Path    string  `yaml:"path" validate:"required"`
	Columns Columns `yaml:"columns"`
}

// AttributeSource is one attribute table on disk. Period labels the edition
// when the table has no period column of its own.
type AttributeSource struct {
	Path    string           `yaml:"path" validate:"required"`
	Period  string           `yaml:"period"`
	Columns AttributeColumns `yaml:"columns"`
}

// Loader reads both providers' exports. The two providers load concurrently;
// files within a provider load in declared order so the returned slices are
// reproducible.
type Loader struct {
	performance []PerformanceSource
	attributes  []AttributeSource
	logger      *slog.Logger
}

// NewLoader creates a loader over the declared sources.
func NewLoader(performance []PerformanceSource, attributes []AttributeSource, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		performance: performance,
		attributes:  attributes,
		logger:      logger.With(slog.String("component", "ingest")),
	}
}

// Load fetches every declared source. An error in either provider cancels
// the other.
func (l *Loader) Load(ctx context.Context) ([]dataset.PerformanceRecord, []dataset.AttributeRecord, error) {
	var performance []dataset.PerformanceRecord
	var attributes []dataset.AttributeRecord

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for _, src := range l.performance {
			if err := gctx.Err(); err != nil {
				return err
			}
			records, err := ReadPerformanceCSV(src.Path, src.Columns, l.logger)
			if err != nil {
				return fmt.Errorf("performance source %s: %w", src.Path, err)
			}
			performance = append(performance, records...)
		}
		return nil
	})

	g.Go(func() error {
		for _, src := range l.attributes {
			if err := gctx.Err(); err != nil {
				return err
			}
			records, err := readAttributeSource(src, l.logger)
			if err != nil {
				return fmt.Errorf("attribute source %s: %w", src.Path, err)
			}
			attributes = append(attributes, records...)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	l.logger.InfoContext(ctx, "providers loaded",
		slog.Int("performance_rows", len(performance)),
		slog.Int("attribute_rows", len(attributes)),
		slog.Int("performance_files", len(l.performance)),
		slog.Int("attribute_files", len(l.attributes)),
	)
	return performance, attributes, nil
}

// readAttributeSource dispatches on file extension: workbooks go through
// excelize, anything else is treated as CSV.
func readAttributeSource(src AttributeSource, logger *slog.Logger) ([]dataset.AttributeRecord, error) {
	switch strings.ToLower(filepath.Ext(src.Path)) {
	case ".xlsx", ".xlsm":
		return ReadAttributeXLSX(src.Path, src.Period, src.Columns, logger)
	default:
		return ReadAttributeCSV(src.Path, src.Period, src.Columns, logger)
	}
}
