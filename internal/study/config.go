package study

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"pitchstats/internal/aggregate"
	"pitchstats/internal/dataset"
)

// Study name constants, used for run routing and artifact naming.
const (
	StudyGoalkeeper = "goalkeeper"
	StudyVARImpact  = "var_impact"
)

var validate = validator.New()

// InclusionConfig carries the aggregation thresholds of one study.
type InclusionConfig struct {
	PerPeriodMinWeight float64 `yaml:"per_period_min_weight" validate:"gte=0"`
	MinPeriodCount     int     `yaml:"min_period_count" validate:"gte=1"`
	MinSampleWeight    float64 `yaml:"min_sample_weight" validate:"gte=0"`
}

// Params converts the config to engine parameters.
func (c InclusionConfig) Params() aggregate.Params {
	return aggregate.Params{
		PerPeriodMinWeight: c.PerPeriodMinWeight,
		MinPeriodCount:     c.MinPeriodCount,
		MinSampleWeight:    c.MinSampleWeight,
	}
}

// GoalkeeperConfig parameterizes the goalkeeper height study.
type GoalkeeperConfig struct {
	Inclusion InclusionConfig `yaml:"inclusion"`

	// Tercile cut points as quantile fractions of the height distribution.
	LowerTercile float64 `yaml:"lower_tercile" validate:"gt=0,lt=1"`
	UpperTercile float64 `yaml:"upper_tercile" validate:"gt=0,lt=1"`

	// Top-performer view is filtered at a career matches floor, separate
	// from the inclusion thresholds.
	TopPerformerMinMatches float64 `yaml:"top_performer_min_matches" validate:"gte=0"`
	TopPerformerLimit      int     `yaml:"top_performer_limit" validate:"gte=1"`

	FailFast bool `yaml:"fail_fast"`
}

// VARImpactConfig parameterizes the VAR adoption comparison.
type VARImpactConfig struct {
	Inclusion InclusionConfig `yaml:"inclusion"`

	BaselinePeriods   []string `yaml:"baseline_periods" validate:"min=1"`
	ComparisonPeriods []string `yaml:"comparison_periods" validate:"min=1"`
	Metrics           []string `yaml:"metrics" validate:"min=1"`

	FailFast bool `yaml:"fail_fast"`
}

// Config is the root study configuration document.
type Config struct {
	Goalkeeper GoalkeeperConfig `yaml:"goalkeeper"`
	VARImpact  VARImpactConfig  `yaml:"var_impact"`
}

// DefaultConfig returns the shipped study parameters: goalkeeper inclusion at
// 900 minutes per season and 1800 total, terciles at the 0.33/0.67 quantiles,
// and the VAR cohorts split at the 2019-2020 adoption season.
func DefaultConfig() Config {
	return Config{
		Goalkeeper: GoalkeeperConfig{
			Inclusion: InclusionConfig{
				PerPeriodMinWeight: 900,
				MinPeriodCount:     1,
				MinSampleWeight:    1800,
			},
			LowerTercile:           0.33,
			UpperTercile:           0.67,
			TopPerformerMinMatches: 20,
			TopPerformerLimit:      10,
		},
		VARImpact: VARImpactConfig{
			Inclusion: InclusionConfig{
				PerPeriodMinWeight: 0,
				MinPeriodCount:     1,
				MinSampleWeight:    0,
			},
			BaselinePeriods: []string{
				"2016-2017", "2017-2018", "2018-2019",
			},
			ComparisonPeriods: []string{
				"2019-2020", "2020-2021", "2021-2022", "2022-2023", "2023-2024",
			},
			Metrics: []string{
				dataset.MetricYellowCards,
				dataset.MetricRedCards,
				dataset.MetricFoulsCommitted,
				dataset.MetricPenaltiesWon,
				dataset.MetricPenaltiesConceded,
			},
		},
	}
}

// LoadConfig reads a YAML study configuration, layered over the defaults so a
// file only needs to state what it changes.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read study config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse study config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate study config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks tag constraints and the cross-field rules the tags cannot
// express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Goalkeeper.LowerTercile >= c.Goalkeeper.UpperTercile {
		return fmt.Errorf("goalkeeper terciles out of order: lower %.2f >= upper %.2f",
			c.Goalkeeper.LowerTercile, c.Goalkeeper.UpperTercile)
	}

	seen := make(map[string]struct{}, len(c.VARImpact.BaselinePeriods))
	for _, p := range c.VARImpact.BaselinePeriods {
		seen[p] = struct{}{}
	}
	for _, p := range c.VARImpact.ComparisonPeriods {
		if _, dup := seen[p]; dup {
			return fmt.Errorf("var_impact cohorts overlap on period %s", p)
		}
	}

	return nil
}
