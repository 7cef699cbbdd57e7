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

// Package tools contains utility types and functions for the droptrack subcommands.
package tools

import (
	"flag"
	"fmt"
	"go/build"
	"go/token"
	"os"
	"strings"

	"github.com/awslabs/ar-go-droptrack/analysis/config"
	"github.com/awslabs/ar-go-droptrack/analysis/goir"
	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"github.com/awslabs/ar-go-droptrack/internal/analysisutil"
	"github.com/awslabs/ar-go-droptrack/internal/formatutil"
	"golang.org/x/tools/go/buildutil"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
)

// UnparsedCommonFlags represents an unparsed CLI sub-command flags.
type UnparsedCommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath *string
	Verbose    *bool
	WithTest   *bool
	Exclude    *ExcludePaths
}

// NewUnparsedCommonFlags returns an unparsed flag set with a given name.
// This is useful for creating sub-commands that have the flags -config,
// -verbose, -with-test, -exclude and -build-tags but need other flags in addition.
func NewUnparsedCommonFlags(name string) UnparsedCommonFlags {
	cmd := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := cmd.String("config", "", "config file path for analysis")
	verbose := cmd.Bool("verbose", false, "verbose printing on standard output")
	withTest := cmd.Bool("with-test", false, "load tests during analysis")
	exclude := &ExcludePaths{}
	cmd.Var(exclude, "exclude", "files or directories whose functions are not analyzed (repeatable)")
	cmd.Var((*buildutil.TagsFlag)(&build.Default.BuildTags), "build-tags", buildutil.TagsFlagDoc)
	return UnparsedCommonFlags{
		FlagSet:    cmd,
		ConfigPath: configPath,
		Verbose:    verbose,
		WithTest:   withTest,
		Exclude:    exclude,
	}
}

// CommonFlags represents a parsed CLI sub-command flags.
type CommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath string
	Verbose    bool
	WithTest   bool
	Exclude    []string
}

// Parse parses args and returns the common flags
func (f UnparsedCommonFlags) Parse(args []string) (CommonFlags, error) {
	if err := f.FlagSet.Parse(args); err != nil {
		return CommonFlags{}, fmt.Errorf("failed to parse command %s with args %v: %v", f.FlagSet.Name(), args, err)
	}
	return CommonFlags{
		FlagSet:    f.FlagSet,
		ConfigPath: *f.ConfigPath,
		Verbose:    *f.Verbose,
		WithTest:   *f.WithTest,
		Exclude:    analysisutil.MakeAbsolute(*f.Exclude),
	}, nil
}

// NewCommonFlags returns a parsed flag set with a given name.
// Returns an error if args are invalid.
// Prints cmdUsage along with flag docs as the --help message.
func NewCommonFlags(name string, args []string, cmdUsage string) (CommonFlags, error) {
	flags := NewUnparsedCommonFlags(name)
	SetUsage(flags.FlagSet, cmdUsage)
	return flags.Parse(args)
}

// SetUsage sets cmd's usage (for --help flag) to output the string cmdUsage
// followed by each flag's documentation.
func SetUsage(cmd *flag.FlagSet, cmdUsage string) {
	cmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n", cmdUsage)
		fmt.Fprintf(os.Stderr, "Options:\n")
		cmd.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  %s: %s (default: %q)\n", f.Name, f.Usage, f.DefValue)
		})
	}
}

// ExcludePaths represents filepaths to exclude.
type ExcludePaths []string

func (e *ExcludePaths) String() string {
	if e == nil {
		return "[]"
	}
	return fmt.Sprintf("%v", []string(*e))
}

// Set adds value to e.
// This method satisfies the flag.Value interface.
func (e *ExcludePaths) Set(value string) error {
	*e = append(*e, value)
	return nil
}

// LoadConfig loads the config file from configPath. Without a path, the default config is returned.
func LoadConfig(configPath string) (*config.Config, error) {
	config.SetGlobalConfig(configPath)
	cfg, err := config.LoadGlobal()
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %v", configPath, err)
	}
	return cfg, nil
}

// Program is a program loaded from the command line and lowered for the analyses
type Program struct {
	Loaded goir.LoadedProgram
	IR     *ir.Program
	Config *config.Config
	Logger *config.LogGroup
}

// Load loads the config and the program designated by the positional arguments of the flags, and lowers the
// program.
func Load(flags CommonFlags) (*Program, error) {
	cfg, err := LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if flags.Verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	logger := config.NewLogGroup(cfg)
	logger.Infof(formatutil.Faint("Reading sources"))

	pkgConfig := &packages.Config{
		Mode:  goir.PkgLoadMode,
		Tests: flags.WithTest,
		Fset:  token.NewFileSet(),
	}
	if len(build.Default.BuildTags) > 0 {
		pkgConfig.BuildFlags = []string{"-tags=" + strings.Join(build.Default.BuildTags, ",")}
	}
	lp, err := goir.LoadProgram(pkgConfig, "", ssa.InstantiateGenerics, flags.FlagSet.Args())
	if err != nil {
		return nil, fmt.Errorf("could not load program: %v", err)
	}
	var funcs []*ssa.Function
	for _, fn := range goir.Functions(lp.Packages) {
		if analysisutil.IsExcluded(lp.Program, fn, flags.Exclude) {
			logger.Debugf("excluded %s", fn)
			continue
		}
		funcs = append(funcs, fn)
	}
	prog, err := goir.Lower(funcs, goir.NewLayout(goir.FindResources(lp.Program, cfg)), cfg)
	if err != nil {
		return nil, fmt.Errorf("could not lower program: %v", err)
	}
	logger.Debugf("lowered %d functions", len(prog.Bodies))
	return &Program{Loaded: lp, IR: prog, Config: cfg, Logger: logger}, nil
}
