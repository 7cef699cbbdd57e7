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
	"regexp"
	"strings"

	"github.com/awslabs/ar-go-droptrack/internal/funcutil"
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

// LoadGlobal loads the config file that has been set by SetGlobalConfig. If no file has been set, the default
// configuration is returned.
func LoadGlobal() (*Config, error) {
	if configFile == "" {
		return NewDefault(), nil
	}
	return Load(configFile)
}

// Config contains the options of the analyses and the list of release functions.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:"options"`

	sourceFile string

	// summariesFile is a file name in ReportsDir when ReportSummaries is true
	summariesFile string

	// if the PkgFilter is specified
	pkgFilterRegex *regexp.Regexp

	// ReleaseFunctions lists the functions that explicitly release the resource held by their receiver (or first
	// argument). When empty, DefaultReleaseFunctions is used.
	ReleaseFunctions []CodeIdentifier `yaml:"release-functions"`
}

// Options are the scalar settings of the tool
type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If the yaml config file this config struct has
	// been loaded does not specify a ReportsDir but sets any Report* option to true, then ReportsDir will be created
	// in the folder the config file is in.
	ReportsDir string `yaml:"reports-dir"`

	// PkgFilter restricts the analysis to the functions whose name matches the filter. The filter is a regex if it
	// compiles, otherwise a prefix.
	PkgFilter string `yaml:"pkg-filter"`

	// ReportSummaries can be set to true, in which case summaries will be written in a file named summaries-*.yaml
	// in the reports directory
	ReportSummaries bool `yaml:"report-summaries"`

	// SummariesDB is a yaml file containing summaries of library functions. The path is relative to the config file.
	SummariesDB string `yaml:"summaries-db"`

	// FieldDepth is the maximum depth of field projections tracked by the location store
	FieldDepth int `yaml:"field-depth"`

	// VisitCeiling is the maximum number of blocks visited per procedure
	VisitCeiling int `yaml:"visit-ceiling"`

	// SccOrder is either "ordered" or "batch"
	SccOrder string `yaml:"scc-order"`

	// Parallelism is the number of procedures checked concurrently
	Parallelism int `yaml:"parallelism"`

	// MaxAlarms sets a limit for the number of findings reported. If MaxAlarms > 0, then at most
	// MaxAlarms will be reported. Otherwise, if MaxAlarms <= 0, it is ignored.
	MaxAlarms int `yaml:"max-alarms"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns a default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:       "",
		summariesFile:    "",
		ReleaseFunctions: funcutil.Map(DefaultReleaseFunctions(), compileRegexes),
		Options: Options{
			ReportsDir:      "",
			PkgFilter:       "",
			ReportSummaries: false,
			SummariesDB:     "",
			FieldDepth:      DefaultFieldDepth,
			VisitCeiling:    DefaultVisitCeiling,
			SccOrder:        SccOrderOrdered,
			Parallelism:     DefaultParallelism,
			MaxAlarms:       0,
			LogLevel:        int(InfoLevel),
			SilenceWarn:     false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return Parse(filename, b)
}

// Parse reads a configuration from the contents b of the file filename. The filename is used to resolve the
// relative paths in the configuration.
func Parse(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	cfg.ReleaseFunctions = nil
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	if cfg.ReportSummaries {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}
	if cfg.FieldDepth <= 0 {
		cfg.FieldDepth = DefaultFieldDepth
	}
	if cfg.VisitCeiling <= 0 {
		cfg.VisitCeiling = DefaultVisitCeiling
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	switch cfg.SccOrder {
	case "":
		cfg.SccOrder = SccOrderOrdered
	case SccOrderOrdered, SccOrderBatch:
	default:
		return nil, fmt.Errorf("invalid scc-order %q, expected %q or %q", cfg.SccOrder, SccOrderOrdered,
			SccOrderBatch)
	}

	if cfg.PkgFilter != "" {
		r, err := regexp.Compile(cfg.PkgFilter)
		if err == nil {
			cfg.pkgFilterRegex = r
		}
	}

	if len(cfg.ReleaseFunctions) == 0 {
		cfg.ReleaseFunctions = DefaultReleaseFunctions()
	}
	cfg.ReleaseFunctions = funcutil.Map(cfg.ReleaseFunctions, compileRegexes)

	return cfg, nil
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
	if c.ReportSummaries {
		reportFile, err := os.CreateTemp(c.ReportsDir, "summaries-*.yaml")
		if err != nil {
			return fmt.Errorf("could not create report file for summaries: %w", err)
		}
		c.summariesFile = reportFile.Name()
		reportFile.Close() // the file will be reopened as needed
	}
	return nil
}

// SummariesFile returns the file name that will contain the computed summaries, or the empty string if summaries
// are not reported
func (c Config) SummariesFile() string {
	return c.summariesFile
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	if path.IsAbs(filename) {
		return filename
	}
	return path.Join(path.Dir(c.sourceFile), filename)
}

// MatchPkgFilter returns true if the function name fname matches the package filter set in the config file. If no
// package filter has been set in the config file, the regex will match anything and return true. This function safely
// considers the case where a filter has been specified by the user, but it could not be compiled to a regex. The safe
// case is to check whether the package filter string is a prefix of the fname
func (c Config) MatchPkgFilter(fname string) bool {
	if c.pkgFilterRegex != nil {
		return c.pkgFilterRegex.MatchString(fname)
	} else if c.PkgFilter != "" {
		return strings.HasPrefix(fname, c.PkgFilter)
	} else {
		return true
	}
}

// IsReleaseFunction returns true if the code identifier matches a release function of the config
func (c Config) IsReleaseFunction(cid CodeIdentifier) bool {
	return ExistsCid(c.ReleaseFunctions, cid.Matches)
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// BatchSccOrder returns true if the loops are visited in batch mode
func (c Config) BatchSccOrder() bool {
	return c.SccOrder == SccOrderBatch
}
