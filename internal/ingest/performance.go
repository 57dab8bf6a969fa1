package ingest

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"pitchstats/internal/dataset"
	apperrors "pitchstats/internal/errors"
)

// Columns declares where a performance CSV keeps its fields, by header name.
// Matching is case-insensitive on trimmed headers. Metrics maps metric keys
// to the headers carrying their numerator counts.
type Columns struct {
	Entity  string            `yaml:"entity" validate:"required"`
	Period  string            `yaml:"period" validate:"required"`
	Weight  string            `yaml:"weight" validate:"required"`
	Metrics map[string]string `yaml:"metrics" validate:"min=1"`
}

// utf8BOM is tolerated at the start of provider CSV exports; spreadsheet
// tools prepend it on save.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadPerformanceCSV parses one performance export. Rows with an unparseable
// weight or metric cell are skipped with a warning; a missing declared
// column fails the whole file.
func ReadPerformanceCSV(path string, cols Columns, logger *slog.Logger) ([]dataset.PerformanceRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("open performance file %s", path), err)
	}
	defer f.Close()

	reader := csv.NewReader(newBOMReader(f))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("read header of %s", path), err)
	}

	index := headerIndex(header)
	entityCol, ok := index[normalizeHeader(cols.Entity)]
	if !ok {
		return nil, missingColumn(path, cols.Entity)
	}
	periodCol, ok := index[normalizeHeader(cols.Period)]
	if !ok {
		return nil, missingColumn(path, cols.Period)
	}
	weightCol, ok := index[normalizeHeader(cols.Weight)]
	if !ok {
		return nil, missingColumn(path, cols.Weight)
	}

	metricCols := make(map[string]int, len(cols.Metrics))
	for metric, headerName := range cols.Metrics {
		col, ok := index[normalizeHeader(headerName)]
		if !ok {
			return nil, missingColumn(path, headerName)
		}
		metricCols[metric] = col
	}

	var records []dataset.PerformanceRecord
	line := 1
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("read %s line %d", path, line), err)
		}

		record, parseErr := parsePerformanceRow(row, entityCol, periodCol, weightCol, metricCols)
		if parseErr != nil {
			skipped++
			logger.Warn("skipping performance row",
				slog.String("file", path),
				slog.Int("line", line),
				slog.Any("error", parseErr),
			)
			continue
		}
		records = append(records, record)
	}

	logger.Info("performance file loaded",
		slog.String("file", path),
		slog.Int("rows", len(records)),
		slog.Int("skipped", skipped),
	)
	return records, nil
}

func parsePerformanceRow(row []string, entityCol, periodCol, weightCol int, metricCols map[string]int) (dataset.PerformanceRecord, error) {
	entity := cellAt(row, entityCol)
	period := cellAt(row, periodCol)
	if entity == "" || period == "" {
		return dataset.PerformanceRecord{}, fmt.Errorf("blank entity or period")
	}

	weight, err := parseFloatCell(cellAt(row, weightCol))
	if err != nil {
		return dataset.PerformanceRecord{}, fmt.Errorf("weight: %w", err)
	}
	if weight < 0 {
		return dataset.PerformanceRecord{}, fmt.Errorf("negative weight %v", weight)
	}

	metrics := make(map[string]float64, len(metricCols))
	for metric, col := range metricCols {
		cell := cellAt(row, col)
		if cell == "" {
			// Providers leave unreported counts blank; that is a zero.
			metrics[metric] = 0
			continue
		}
		v, err := parseFloatCell(cell)
		if err != nil {
			return dataset.PerformanceRecord{}, fmt.Errorf("metric %s: %w", metric, err)
		}
		metrics[metric] = v
	}

	return dataset.PerformanceRecord{
		EntityName:   entity,
		Period:       period,
		SampleWeight: weight,
		Metrics:      metrics,
	}, nil
}

// newBOMReader strips a UTF-8 byte order mark if present.
func newBOMReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && string(head) == string(utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	return br
}

// headerIndex maps normalized header names to their column positions. The
// first occurrence wins when a provider repeats a header.
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	return index
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func missingColumn(path, column string) error {
	return apperrors.NewParsingError(
		fmt.Sprintf("file %s is missing declared column %q", path, column), nil)
}

func cellAt(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// parseFloatCell parses a numeric cell, tolerating thousands separators the
// way provider exports format them.
func parseFloatCell(cell string) (float64, error) {
	cleaned := strings.ReplaceAll(cell, ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", cell, err)
	}
	return v, nil
}
