package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains all resolved application paths. It is the single source of
// truth for file locations across the binaries: provider exports under
// DataDir, study outputs under ArtifactsDir.
type Paths struct {
	BaseDir      string
	DataDir      string
	ArtifactsDir string
	LogsDir      string
	WebDir       string
	StaticDir    string

	// StudyConfigFile holds the study battery definitions.
	StudyConfigFile string
}

// ResolvePaths resolves the configured paths against the base directory.
// Absolute entries are kept as-is; relative ones are joined onto the base.
func (c *Config) ResolvePaths() (*Paths, error) {
	base, err := baseDir()
	if err != nil {
		return nil, err
	}
	return resolvePaths(base, c.Paths), nil
}

// GetPaths returns the default paths resolved against the base directory,
// for callers that have no Config of their own.
func GetPaths() (*Paths, error) {
	base, err := baseDir()
	if err != nil {
		return nil, err
	}
	return resolvePaths(base, Default().Paths), nil
}

// baseDir is the executable's directory, overridable with PITCH_BASE_DIR so
// development runs are not pinned to the build output location.
func baseDir() (string, error) {
	if base := os.Getenv(EnvBaseDir); base != "" {
		return base, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}
	return filepath.Dir(exe), nil
}

func resolvePaths(base string, cfg PathsConfig) *Paths {
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	webDir := resolve(cfg.WebDir)
	return &Paths{
		BaseDir:         base,
		DataDir:         resolve(cfg.DataDir),
		ArtifactsDir:    resolve(cfg.ArtifactsDir),
		LogsDir:         resolve(cfg.LogsDir),
		WebDir:          webDir,
		StaticDir:       filepath.Join(webDir, "static"),
		StudyConfigFile: resolve(cfg.StudyConfigFile),
	}
}

// EnsureDirectories creates the writable directories if they don't exist.
// The web directory ships with the binary and is not created here.
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.ArtifactsDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		slog.Debug("ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// GetDataPath returns the path for a provider export file.
func (p *Paths) GetDataPath(filename string) string {
	return filepath.Join(p.DataDir, filename)
}

// GetArtifactPath returns the path for a study artifact file.
func (p *Paths) GetArtifactPath(filename string) string {
	return filepath.Join(p.ArtifactsDir, filename)
}

// GetLogPath returns the path for a log file.
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetWebFilePath returns the path to a web file.
func (p *Paths) GetWebFilePath(filename string) string {
	return filepath.Join(p.WebDir, filename)
}

// GetStaticFilePath returns the path to a static asset.
func (p *Paths) GetStaticFilePath(filename string) string {
	return filepath.Join(p.StaticDir, filename)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// LogPathResolution logs the resolved paths for debugging.
func (p *Paths) LogPathResolution() {
	slog.Info("path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("data", p.DataDir),
			slog.String("artifacts", p.ArtifactsDir),
			slog.String("logs", p.LogsDir),
			slog.String("web", p.WebDir),
		),
		slog.Group("config_files",
			slog.String("studies", p.StudyConfigFile),
		))
}
