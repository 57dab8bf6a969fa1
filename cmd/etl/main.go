package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"pitchstats/internal/aggregate"
	"pitchstats/internal/config"
	"pitchstats/internal/dataset"
	"pitchstats/internal/infrastructure"
	"pitchstats/internal/ingest"
	"pitchstats/internal/report"
	"pitchstats/internal/study"
	"pitchstats/internal/validation"
)

// datasetDocument is the JSON shape of one study's canonical dataset.
type datasetDocument struct {
	Study           string                    `json:"study"`
	Fingerprint     string                    `json:"fingerprint"`
	PerformanceRows int                       `json:"performance_rows"`
	AttributeRows   int                       `json:"attribute_rows"`
	Records         []dataset.AggregateRecord `json:"records"`
}

func main() {
	configFile := flag.String("config", "", "config file (defaults to the standard lookup locations)")
	studyName := flag.String("study", "all", "study to build the dataset for: goalkeeper, var_impact, or all")
	outDir := flag.String("out", "", "output directory for dataset files (defaults to the data directory)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		logger.Error("Failed to resolve paths", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		logger.Error("Failed to create required directories", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *outDir == "" {
		*outDir = paths.DataDir
	}

	studyCfg := study.DefaultConfig()
	if config.FileExists(paths.StudyConfigFile) {
		studyCfg, err = study.LoadConfig(paths.StudyConfigFile)
		if err != nil {
			logger.Error("Failed to load study config", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	studies, err := selectStudies(*studyName)
	if err != nil {
		logger.Error("Invalid study selection", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Starting dataset build",
		slog.String("study", *studyName),
		slog.String("output_dir", *outDir))

	ctx := context.Background()
	writer := report.NewWriter(*outDir, logger)
	validator := validation.NewSourceValidator(logger)

	if err := validator.ValidateOutputDir(*outDir); err != nil {
		logger.Error("Output directory check failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, name := range studies {
		sources := sourcesFor(cfg, name)
		if len(sources.Performance) == 0 {
			logger.Error("No performance sources configured", slog.String("study", name))
			os.Exit(1)
		}
		if err := validator.ValidateSources(sources.Performance, sources.Attributes); err != nil {
			logger.Error("Source validation failed",
				slog.String("study", name),
				slog.String("error", err.Error()))
			os.Exit(1)
		}

		fmt.Printf("Building dataset for %s\n", name)

		loader := ingest.NewLoader(sources.Performance, sources.Attributes, logger)
		performance, attributes, err := loader.Load(ctx)
		if err != nil {
			logger.Error("Ingest failed",
				slog.String("study", name),
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Printf("Loaded %d performance rows, %d attribute rows\n", len(performance), len(attributes))

		engine := aggregate.NewEngine(inclusionFor(studyCfg, name).Params(), logger)
		records, err := engine.MatchAndAggregate(ctx, performance, attributes)
		if err != nil {
			logger.Error("Aggregation failed",
				slog.String("study", name),
				slog.String("error", err.Error()))
			os.Exit(1)
		}

		doc := datasetDocument{
			Study:           name,
			Fingerprint:     dataset.Fingerprint(records),
			PerformanceRows: len(performance),
			AttributeRows:   len(attributes),
			Records:         records,
		}

		jsonFile := name + "_dataset.json"
		if err := writer.WriteJSON(jsonFile, doc); err != nil {
			logger.Error("Failed to write dataset JSON", slog.String("error", err.Error()))
			os.Exit(1)
		}

		metrics := metricColumns(records)
		rows := make([][]string, 0, len(records))
		for _, rec := range records {
			rows = append(rows, csvRow(rec, metrics))
		}
		csvFile := name + "_dataset.csv"
		if err := writer.WriteCSV(csvFile, report.WriteOptions{
			Headers:   csvHeaders(metrics),
			Records:   rows,
			BOMPrefix: true,
		}); err != nil {
			logger.Error("Failed to write dataset CSV", slog.String("error", err.Error()))
			os.Exit(1)
		}

		logger.Info("Dataset written",
			slog.String("study", name),
			slog.Int("entities", len(records)),
			slog.String("fingerprint", doc.Fingerprint))
		fmt.Printf("Dataset written: %d entities (%s, %s)\n", len(records), jsonFile, csvFile)
	}

	fmt.Println("Dataset build complete")
}

// selectStudies expands the -study flag into concrete studies, in a fixed
// order.
func selectStudies(name string) ([]string, error) {
	switch name {
	case study.StudyGoalkeeper:
		return []string{study.StudyGoalkeeper}, nil
	case study.StudyVARImpact:
		return []string{study.StudyVARImpact}, nil
	case "all":
		return []string{study.StudyGoalkeeper, study.StudyVARImpact}, nil
	}
	return nil, fmt.Errorf("unknown study %q (expected goalkeeper, var_impact, or all)", name)
}

func sourcesFor(cfg *config.Config, name string) config.ProviderSources {
	switch name {
	case study.StudyGoalkeeper:
		return cfg.Ingest.Goalkeeper
	case study.StudyVARImpact:
		return cfg.Ingest.VARImpact
	}
	return config.ProviderSources{}
}

// inclusionFor picks the study's own aggregation thresholds so the dataset
// matches what the battery would consume.
func inclusionFor(cfg study.Config, name string) study.InclusionConfig {
	switch name {
	case study.StudyGoalkeeper:
		return cfg.Goalkeeper.Inclusion
	case study.StudyVARImpact:
		return cfg.VARImpact.Inclusion
	}
	return study.InclusionConfig{MinPeriodCount: 1}
}

// metricColumns returns the sorted union of metric keys so every row shares
// one column layout.
func metricColumns(records []dataset.AggregateRecord) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for m := range rec.MetricTotals {
			seen[m] = struct{}{}
		}
	}
	metrics := make([]string, 0, len(seen))
	for m := range seen {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)
	return metrics
}

func csvHeaders(metrics []string) []string {
	headers := []string{
		"canonical_id", "entity_name", "confidence", "attribute_value",
		"periods", "period_count", "total_sample_weight",
	}
	for _, m := range metrics {
		headers = append(headers, "total_"+m, "per_unit_"+m)
	}
	return headers
}

func csvRow(rec dataset.AggregateRecord, metrics []string) []string {
	attribute := ""
	if rec.AttributeValue != nil {
		attribute = strconv.FormatFloat(*rec.AttributeValue, 'f', -1, 64)
	}
	row := []string{
		rec.CanonicalID,
		rec.EntityName,
		string(rec.Confidence),
		attribute,
		strings.Join(rec.Periods, "|"),
		strconv.Itoa(rec.PeriodCount),
		strconv.FormatFloat(rec.TotalSampleWeight, 'f', -1, 64),
	}
	for _, m := range metrics {
		total, ok := rec.MetricTotals[m]
		if !ok {
			// Metric never reported for this entity; empty cells, not zeros.
			row = append(row, "", "")
			continue
		}
		row = append(row,
			strconv.FormatFloat(total, 'f', -1, 64),
			strconv.FormatFloat(rec.PerUnit[m], 'f', -1, 64))
	}
	return row
}
