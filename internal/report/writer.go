package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "pitchstats/internal/errors"
	"pitchstats/pkg/contracts/domain"
)

// Artifact file names inside the artifacts directory. Consumers address
// artifacts by these names, never by run ID.
const (
	GoalkeeperArtifactFile  = "goalkeeper.json"
	GoalkeeperRecordsFile   = "goalkeeper_keepers.csv"
	GoalkeeperNarrativeFile = "goalkeeper_narrative.json"
	VARImpactArtifactFile   = "var_impact.json"
	VARImpactRecordsFile    = "var_impact_teams.csv"
	VARImpactNarrativeFile  = "var_impact_narrative.json"
)

// Writer persists artifacts beneath a single directory. Each write replaces
// the previous artifact of the same name.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a writer rooted at dir. A nil logger falls back to the
// default.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		dir:    dir,
		logger: logger.With(slog.String("component", "report")),
	}
}

// WriteOptions configures CSV writing behavior.
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // UTF-8 BOM for Excel compatibility
}

// WriteGoalkeeperArtifact persists the goalkeeper artifact as JSON plus a
// keeper-records CSV for spreadsheet consumers.
func (w *Writer) WriteGoalkeeperArtifact(art *domain.GoalkeeperArtifact) error {
	if err := w.WriteJSON(GoalkeeperArtifactFile, art); err != nil {
		return err
	}

	records := make([][]string, 0, len(art.Records))
	for _, rec := range art.Records {
		records = append(records, rec.CSVRecord())
	}
	return w.WriteCSV(GoalkeeperRecordsFile, WriteOptions{
		Headers:   domain.KeeperRecordHeaders(),
		Records:   records,
		BOMPrefix: true,
	})
}

// WriteVARImpactArtifact persists the VAR artifact as JSON plus a
// team-records CSV covering both cohorts.
func (w *Writer) WriteVARImpactArtifact(art *domain.VARImpactArtifact) error {
	if err := w.WriteJSON(VARImpactArtifactFile, art); err != nil {
		return err
	}

	records := make([][]string, 0, len(art.Records))
	for _, rec := range art.Records {
		records = append(records, rec.CSVRecord())
	}
	return w.WriteCSV(VARImpactRecordsFile, WriteOptions{
		Headers:   domain.TeamRecordHeaders(),
		Records:   records,
		BOMPrefix: true,
	})
}

// WriteJSON marshals v with indentation and writes it under the artifact
// directory.
func (w *Writer) WriteJSON(name string, v any) error {
	fullPath := w.resolve(name)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	w.logger.Info("artifact written",
		slog.String("file_path", fullPath),
		slog.Int("bytes", len(data)),
	)
	return nil
}

// WriteCSV writes rows under the artifact directory with the given options.
func (w *Writer) WriteCSV(name string, options WriteOptions) error {
	fullPath := w.resolve(name)

	w.logger.Info("writing csv artifact",
		slog.String("file_path", fullPath),
		slog.Int("record_count", len(options.Records)),
	)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(fullPath, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// BOM helps Excel recognize UTF-8.
	if options.BOMPrefix && !options.Append {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if !options.Append && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	return writer.Error()
}

func (w *Writer) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(w.dir, name)
}

// LoadGoalkeeperArtifact reads a goalkeeper artifact back from disk.
func LoadGoalkeeperArtifact(path string) (*domain.GoalkeeperArtifact, error) {
	var art domain.GoalkeeperArtifact
	if err := loadJSON(path, &art); err != nil {
		return nil, err
	}
	return &art, nil
}

// LoadVARImpactArtifact reads a VAR artifact back from disk.
func LoadVARImpactArtifact(path string) (*domain.VARImpactArtifact, error) {
	var art domain.VARImpactArtifact
	if err := loadJSON(path, &art); err != nil {
		return nil, err
	}
	return &art, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.NewNotFoundError(fmt.Sprintf("artifact %s", filepath.Base(path)))
		}
		return apperrors.NewStorageError(fmt.Sprintf("failed to read artifact %s", path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.NewParsingError(fmt.Sprintf("artifact %s is not valid JSON", path), err)
	}
	return nil
}
