package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"pitchstats/internal/config"
	"pitchstats/internal/infrastructure"
	"pitchstats/internal/ingest"
	"pitchstats/internal/report"
	"pitchstats/internal/study"
	"pitchstats/internal/validation"
)

func main() {
	configFile := flag.String("config", "", "config file (defaults to the standard lookup locations)")
	studyName := flag.String("study", "all", "study battery to run: goalkeeper, var_impact, or all")
	outDir := flag.String("out", "", "output directory for artifacts (defaults to the artifacts directory)")
	failFast := flag.Bool("fail-fast", false, "abort on insufficient samples instead of recording degenerate results")
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
		*outDir = paths.ArtifactsDir
	}

	studyCfg := study.DefaultConfig()
	if config.FileExists(paths.StudyConfigFile) {
		studyCfg, err = study.LoadConfig(paths.StudyConfigFile)
		if err != nil {
			logger.Error("Failed to load study config", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	if *failFast {
		studyCfg.Goalkeeper.FailFast = true
		studyCfg.VARImpact.FailFast = true
	}

	studies, err := selectStudies(*studyName)
	if err != nil {
		logger.Error("Invalid study selection", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Starting study batteries",
		slog.String("study", *studyName),
		slog.Bool("fail_fast", *failFast),
		slog.String("output_dir", *outDir))

	ctx := context.Background()
	formatter := report.NewFormatter(logger)
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

		fmt.Printf("Running %s battery\n", name)

		loader := ingest.NewLoader(sources.Performance, sources.Attributes, logger)
		performance, attributes, err := loader.Load(ctx)
		if err != nil {
			logger.Error("Ingest failed",
				slog.String("study", name),
				slog.String("error", err.Error()))
			os.Exit(1)
		}

		switch name {
		case study.StudyGoalkeeper:
			findings, err := study.NewGoalkeeperStudy(studyCfg.Goalkeeper, logger).Run(ctx, performance, attributes)
			if err != nil {
				logger.Error("Goalkeeper battery failed", slog.String("error", err.Error()))
				os.Exit(1)
			}

			info := report.NewRunInfo(study.StudyGoalkeeper, findings.Fingerprint)
			art := formatter.GoalkeeperArtifact(info, findings)
			if err := writer.WriteGoalkeeperArtifact(art); err != nil {
				logger.Error("Failed to write goalkeeper artifact", slog.String("error", err.Error()))
				os.Exit(1)
			}

			fmt.Printf("Goalkeeper battery complete: %d keepers (%d with height), %d correlations\n",
				findings.Entities, findings.PairedEntities, len(art.Correlations))
			for _, w := range art.Warnings {
				fmt.Printf("  warning: %s\n", w)
			}

		case study.StudyVARImpact:
			findings, err := study.NewVARImpactStudy(studyCfg.VARImpact, logger).Run(ctx, performance)
			if err != nil {
				logger.Error("VAR impact battery failed", slog.String("error", err.Error()))
				os.Exit(1)
			}

			info := report.NewRunInfo(study.StudyVARImpact, findings.Fingerprint)
			art := formatter.VARImpactArtifact(info, findings)
			if err := writer.WriteVARImpactArtifact(art); err != nil {
				logger.Error("Failed to write VAR impact artifact", slog.String("error", err.Error()))
				os.Exit(1)
			}

			fmt.Printf("VAR impact battery complete: %d baseline vs %d comparison teams, %d metric comparisons\n",
				findings.Baseline.Teams, findings.Comparison.Teams, len(art.Comparisons))
			for _, w := range art.Warnings {
				fmt.Printf("  warning: %s\n", w)
			}
		}
	}

	fmt.Println("All batteries complete")
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
