// Package validation pre-flights the files a run is configured to touch, so
// misconfigured paths fail with a clear error before any partial work happens.
package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "pitchstats/internal/errors"
	"pitchstats/internal/ingest"
)

// SourceValidator checks the provider exports declared in configuration.
type SourceValidator struct {
	logger *slog.Logger
}

// NewSourceValidator creates a validator. A nil logger falls back to the
// default.
func NewSourceValidator(logger *slog.Logger) *SourceValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceValidator{
		logger: logger.With(slog.String("component", "validation")),
	}
}

// ValidateSources checks every declared source of one study. The first
// problem found is returned; sources are checked in declared order.
func (v *SourceValidator) ValidateSources(performance []ingest.PerformanceSource, attributes []ingest.AttributeSource) error {
	for _, src := range performance {
		if err := v.validatePerformancePath(src.Path); err != nil {
			return apperrors.NewAppError(apperrors.ErrTypeValidation, "performance source rejected", err).
				WithContext("path", src.Path)
		}
	}
	for _, src := range attributes {
		if err := v.validateAttributePath(src.Path); err != nil {
			return apperrors.NewAppError(apperrors.ErrTypeValidation, "attribute source rejected", err).
				WithContext("path", src.Path)
		}
	}

	v.logger.Debug("sources validated",
		slog.Int("performance_files", len(performance)),
		slog.Int("attribute_files", len(attributes)))
	return nil
}

// ValidateFile checks that path names an existing, readable regular file.
func (v *SourceValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("source file does not exist", slog.String("file", path))
		return fmt.Errorf("file does not exist")
	}
	if err != nil {
		return fmt.Errorf("stat failed: %w", err)
	}
	if info.IsDir() {
		v.logger.Error("source path is a directory", slog.String("path", path))
		return fmt.Errorf("path is a directory, not a file")
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("source file is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file is not readable: %w", err)
	}
	file.Close()

	return nil
}

// ValidateOutputDir ensures dir exists and is writable.
func (v *SourceValidator) ValidateOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(testFile)

	return nil
}

// validatePerformancePath accepts only CSV exports; the performance provider
// delivers nothing else.
func (v *SourceValidator) validatePerformancePath(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	if ext := strings.ToLower(filepath.Ext(path)); ext != ".csv" {
		v.logger.Error("performance source has unexpected extension",
			slog.String("file", path),
			slog.String("extension", ext))
		return fmt.Errorf("not a CSV file (extension %q)", ext)
	}
	return nil
}

// validateAttributePath accepts the formats the loader dispatches on:
// workbooks or CSV. Excel lock files are rejected up front rather than
// failing inside excelize.
func (v *SourceValidator) validateAttributePath(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Error("attribute source is an Excel lock file", slog.String("file", path))
		return fmt.Errorf("temporary Excel lock file")
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".xlsx", ".xlsm":
		return nil
	default:
		v.logger.Error("attribute source has unexpected extension",
			slog.String("file", path),
			slog.String("extension", ext))
		return fmt.Errorf("unsupported attribute format (extension %q)", ext)
	}
}
