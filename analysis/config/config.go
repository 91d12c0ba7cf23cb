// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/awslabs/argot-sast/internal/funcutil"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the options of the taint engine, the description of the fact store and the additional patterns
// registered on top of the built-in language catalogs.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:"options"`

	sourceFile string

	// Store describes where the extracted facts are read from
	Store StoreSpec `yaml:"store"`

	// Patterns lists additional source, sink and sanitizer patterns
	Patterns []PatternSpec `yaml:"patterns"`
}

// StoreSpec describes the relational fact store the engine reads from.
type StoreSpec struct {
	// Driver is either "sqlite" (the default) or "postgres"
	Driver string `yaml:"driver"`

	// DSN is the path of the sqlite database, or the connection string of the postgres database
	DSN string `yaml:"dsn"`

	// SnapshotCache is a directory where loaded fact snapshots are cached across runs. Empty disables the cache.
	SnapshotCache string `yaml:"snapshot-cache"`
}

// Options holds the settings of the analysis.
type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If the yaml config file this config struct has
	// been loaded does not specify a ReportsDir but sets any Report* option to true, then ReportsDir will be created
	// in the folder of the config file.
	ReportsDir string `yaml:"reports-dir"`

	// ReportPaths specifies whether the taint paths should be written to a json file in the reports directory.
	ReportPaths bool `yaml:"report-paths"`

	// ReportSarif specifies whether a SARIF file should be written to the reports directory.
	ReportSarif bool `yaml:"report-sarif"`

	// MetricsFile is a path where the metrics of the run are written in the Prometheus text format. Empty disables
	// writing the metrics.
	MetricsFile string `yaml:"metrics-file"`

	// MaxDepth sets a limit for the number of function call hops explored during the analysis.
	// If the provided MaxDepth is <= 0, then the default is used. It is clamped to MaxDepthCeiling.
	MaxDepth int `yaml:"max-depth"`

	// MaxDepthCeiling is the largest accepted MaxDepth. It cannot be set above HardMaxDepthCeiling.
	MaxDepthCeiling int `yaml:"max-depth-ceiling"`

	// EnableFlowSensitive controls whether the CFG flow-sensitive engine is attempted before falling back to the
	// flow-insensitive engine.
	EnableFlowSensitive bool `yaml:"enable-flow-sensitive"`

	// EnableFlowInsensitive controls whether the flow-insensitive engine runs as its own track. When both tracks run,
	// the union of their results is reported.
	EnableFlowInsensitive bool `yaml:"enable-flow-insensitive"`

	// MultiHop enables the backward caller discovery track, which grows paths ending in a sink by prepending the
	// callers that pass tainted arguments.
	MultiHop bool `yaml:"multi-hop"`

	// Exclude lists files and directories whose facts are ignored. Entries ending in ".py", ".js", ".ts" or ".go"
	// must match a file exactly, other entries match a directory prefix.
	Exclude []string `yaml:"exclude"`

	// Languages restricts the pattern catalogs to the languages listed. Empty means all languages.
	Languages []string `yaml:"languages"`

	// Workers is the number of goroutines processing seeds in parallel. If <= 0, the number of CPUs minus one is used.
	Workers int `yaml:"workers"`

	// NodeBudget is the maximum number of worklist states a single seed may expand. If <= 0, there is no budget.
	NodeBudget int `yaml:"node-budget"`

	// Timeout is the wall-clock limit of the analysis, e.g. "5m". Empty means no timeout.
	Timeout string `yaml:"timeout"`

	// MaxPaths sets a limit for the number of paths reported. If MaxPaths <= 0, it is ignored.
	MaxPaths int `yaml:"max-paths"`

	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`
}

// NewDefault returns a default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Store: StoreSpec{
			Driver: StoreDriverSqlite,
		},
		Patterns: nil,
		Options: Options{
			ReportsDir:            "",
			ReportPaths:           false,
			ReportSarif:           false,
			MaxDepth:              DefaultMaxDepth,
			MaxDepthCeiling:       DefaultMaxDepthCeiling,
			EnableFlowSensitive:   true,
			EnableFlowInsensitive: true,
			MultiHop:              true,
			Languages:             nil,
			Workers:               0,
			NodeBudget:            DefaultNodeBudget,
			MaxPaths:              0,
			LogLevel:              int(InfoLevel),
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return LoadBytes(filename, b)
}

// LoadBytes reads a configuration from the content b of the file filename
func LoadBytes(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file %s: %w", filename, err)
	}

	cfg.sourceFile = filename

	if cfg.ReportPaths || cfg.ReportSarif {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate applies the defaults to unset options and checks that the options are consistent.
func (c *Config) Validate() error {
	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if c.LogLevel == 0 {
		c.LogLevel = int(InfoLevel)
	}

	if c.MaxDepthCeiling <= 0 {
		c.MaxDepthCeiling = DefaultMaxDepthCeiling
	}
	if c.MaxDepthCeiling > HardMaxDepthCeiling {
		return fmt.Errorf("max-depth-ceiling %d is above the hard ceiling %d", c.MaxDepthCeiling, HardMaxDepthCeiling)
	}

	// Set the MaxDepth default if it is <= 0
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxDepth > c.MaxDepthCeiling {
		return fmt.Errorf("max-depth %d is above max-depth-ceiling %d", c.MaxDepth, c.MaxDepthCeiling)
	}

	if c.Store.Driver == "" {
		c.Store.Driver = StoreDriverSqlite
	}
	if c.Store.Driver != StoreDriverSqlite && c.Store.Driver != StoreDriverPostgres {
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}

	if !c.EnableFlowSensitive && !c.EnableFlowInsensitive && !c.MultiHop {
		return fmt.Errorf("at least one of enable-flow-sensitive, enable-flow-insensitive or multi-hop must be set")
	}

	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}

	c.Languages = funcutil.Map(c.Languages, func(l string) string { return strings.ToLower(strings.TrimSpace(l)) })

	for i := range c.Patterns {
		if err := c.Patterns[i].validate(); err != nil {
			return fmt.Errorf("pattern %d: %w", i, err)
		}
	}
	return nil
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return fmt.Errorf("could not create temp dir for reports")
		}
		c.ReportsDir = tmpdir
	} else {
		err := os.Mkdir(c.ReportsDir, 0750)
		if err != nil {
			if !os.IsExist(err) {
				return fmt.Errorf("could not create directory %s", c.ReportsDir)
			}
		}
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// TimeoutDuration returns the parsed Timeout option; zero when no timeout is set.
func (c Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

// HasLanguage returns true if the language is enabled by the configuration.
func (c Config) HasLanguage(language string) bool {
	if len(c.Languages) == 0 {
		return true
	}
	return funcutil.Contains(c.Languages, strings.ToLower(language))
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// ExceedsMaxDepth returns true if the input exceeds the maximum depth parameter of the configuration.
func (c Config) ExceedsMaxDepth(d int) bool {
	if c.MaxDepth <= 0 {
		return d > DefaultMaxDepth
	}
	return d > c.MaxDepth
}

// ExceedsMaxPaths returns true if n paths is more than the configured maximum.
func (c Config) ExceedsMaxPaths(n int) bool {
	return c.MaxPaths > 0 && n > c.MaxPaths
}
