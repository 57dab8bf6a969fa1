package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"pitchstats/internal/config"
	"pitchstats/internal/infrastructure"
	"pitchstats/internal/insights"
	"pitchstats/internal/report"
	"pitchstats/internal/study"
)

func main() {
	configFile := flag.String("config", "", "config file (defaults to the standard lookup locations)")
	studyName := flag.String("study", "all", "study to narrate: goalkeeper, var_impact, or all")
	kindName := flag.String("kind", string(insights.KindExecutiveSummary),
		"narrative kind: executive_summary, recruitment, or scouting")
	artifactsDir := flag.String("artifacts", "", "artifacts directory (defaults to the configured one)")
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
	if *artifactsDir == "" {
		*artifactsDir = paths.ArtifactsDir
	}

	if cfg.OpenAI.APIKey == "" {
		logger.Error("OpenAI API key not configured; set PITCH_OPENAI_API_KEY or the openai.api_key config value")
		os.Exit(1)
	}

	client, err := insights.NewClient(cfg.OpenAI, logger)
	if err != nil {
		logger.Error("Failed to initialize narrative client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	kind := insights.NarrativeKind(*kindName)
	if !kind.IsValid() {
		logger.Error("Unknown narrative kind", slog.String("kind", *kindName))
		os.Exit(1)
	}

	studies, err := selectStudies(*studyName)
	if err != nil {
		logger.Error("Invalid study selection", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Generating narratives",
		slog.String("study", *studyName),
		slog.String("kind", string(kind)),
		slog.String("artifacts_dir", *artifactsDir))

	ctx := context.Background()
	writer := report.NewWriter(*artifactsDir, logger)

	for _, name := range studies {
		var narrative *insights.Narrative
		var outFile string

		switch name {
		case study.StudyGoalkeeper:
			art, err := report.LoadGoalkeeperArtifact(filepath.Join(*artifactsDir, report.GoalkeeperArtifactFile))
			if err != nil {
				logger.Error("Failed to load goalkeeper artifact",
					slog.String("error", err.Error()))
				os.Exit(1)
			}
			narrative, err = client.GoalkeeperNarrative(ctx, kind, art)
			if err != nil {
				logger.Error("Goalkeeper narrative failed", slog.String("error", err.Error()))
				os.Exit(1)
			}
			outFile = narrativeFile(report.GoalkeeperNarrativeFile, kind)

		case study.StudyVARImpact:
			art, err := report.LoadVARImpactArtifact(filepath.Join(*artifactsDir, report.VARImpactArtifactFile))
			if err != nil {
				logger.Error("Failed to load VAR impact artifact",
					slog.String("error", err.Error()))
				os.Exit(1)
			}
			narrative, err = client.VARImpactNarrative(ctx, kind, art)
			if err != nil {
				logger.Error("VAR impact narrative failed", slog.String("error", err.Error()))
				os.Exit(1)
			}
			outFile = narrativeFile(report.VARImpactNarrativeFile, kind)
		}

		if err := writer.WriteJSON(outFile, narrative); err != nil {
			logger.Error("Failed to write narrative", slog.String("error", err.Error()))
			os.Exit(1)
		}

		fmt.Printf("Narrative written: %s (%s, %d chars)\n", outFile, kind, len(narrative.Content))
	}

	fmt.Println("Narrative generation complete")
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

// narrativeFile keeps the run pipeline's canonical name for executive
// summaries and suffixes the other kinds so they never clobber it.
func narrativeFile(base string, kind insights.NarrativeKind) string {
	if kind == insights.KindExecutiveSummary {
		return base
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "_" + string(kind) + ext
}
