package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/xuri/excelize/v2"

	"pitchstats/internal/dataset"
	apperrors "pitchstats/internal/errors"
)

// AttributeColumns declares where an attribute table keeps its fields.
// Period may be empty when the file itself is one edition; the source's
// period label is used instead.
type AttributeColumns struct {
	Entity string `yaml:"entity" validate:"required"`
	Period string `yaml:"period"`
	Value  string `yaml:"value" validate:"required"`
}

// headerProbeDepth bounds how deep into a sheet the header row is searched;
// ratings workbooks put title banners above the table.
const headerProbeDepth = 10

// ReadAttributeXLSX parses an attribute workbook. Sheets are probed in
// workbook order for a header row carrying the declared columns; the first
// sheet that has one is used.
func ReadAttributeXLSX(path, periodLabel string, cols AttributeColumns, logger *slog.Logger) ([]dataset.AttributeRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("open attribute workbook %s", path), err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		headerRow, index := probeHeader(rows, cols)
		if headerRow < 0 {
			continue
		}

		logger.Info("attribute sheet located",
			slog.String("file", path),
			slog.String("sheet", sheet),
			slog.Int("header_row", headerRow),
		)
		return parseAttributeRows(rows[headerRow+1:], periodLabel, cols, index, path, logger)
	}

	return nil, apperrors.NewParsingError(
		fmt.Sprintf("no sheet in %s carries columns %q and %q", path, cols.Entity, cols.Value), nil)
}

// ReadAttributeCSV parses an attribute table exported as CSV.
func ReadAttributeCSV(path, periodLabel string, cols AttributeColumns, logger *slog.Logger) ([]dataset.AttributeRecord, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("open attribute file %s", path), err)
	}
	defer f.Close()

	reader := csv.NewReader(newBOMReader(f))
	reader.TrimLeadingSpace = true
	// Ratings exports put title banners above the table; row widths vary.
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("read %s", path), err)
		}
		rows = append(rows, row)
	}

	headerRow, index := probeHeader(rows, cols)
	if headerRow < 0 {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("file %s is missing columns %q and %q", path, cols.Entity, cols.Value), nil)
	}
	return parseAttributeRows(rows[headerRow+1:], periodLabel, cols, index, path, logger)
}

// probeHeader scans the leading rows for one carrying the declared entity
// and value columns. Returns the header row index and the column map, or -1.
func probeHeader(rows [][]string, cols AttributeColumns) (int, map[string]int) {
	depth := headerProbeDepth
	if len(rows) < depth {
		depth = len(rows)
	}

	for i := 0; i < depth; i++ {
		index := headerIndex(rows[i])
		_, hasEntity := index[normalizeHeader(cols.Entity)]
		_, hasValue := index[normalizeHeader(cols.Value)]
		if hasEntity && hasValue {
			return i, index
		}
	}
	return -1, nil
}

func parseAttributeRows(rows [][]string, periodLabel string, cols AttributeColumns, index map[string]int, path string, logger *slog.Logger) ([]dataset.AttributeRecord, error) {
	entityCol := index[normalizeHeader(cols.Entity)]
	valueCol := index[normalizeHeader(cols.Value)]

	periodCol := -1
	if cols.Period != "" {
		if col, ok := index[normalizeHeader(cols.Period)]; ok {
			periodCol = col
		}
	}

	var records []dataset.AttributeRecord
	skipped := 0
	for _, row := range rows {
		entity := cellAt(row, entityCol)
		cell := cellAt(row, valueCol)
		if entity == "" || cell == "" {
			skipped++
			continue
		}

		value, err := parseFloatCell(cell)
		if err != nil || value <= 0 {
			skipped++
			continue
		}

		period := periodLabel
		if periodCol >= 0 {
			if p := cellAt(row, periodCol); p != "" {
				period = p
			}
		}

		records = append(records, dataset.AttributeRecord{
			EntityName: entity,
			Period:     period,
			Value:      value,
		})
	}

	logger.Info("attribute table loaded",
		slog.String("file", path),
		slog.Int("rows", len(records)),
		slog.Int("skipped", skipped),
	)
	return records, nil
}
