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

// Package check implements the droptrack check subcommand, which reports the misuses of released values.
package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/awslabs/ar-go-droptrack/analysis/driver"
	"github.com/awslabs/ar-go-droptrack/cmd/droptrack/tools"
	"github.com/awslabs/ar-go-droptrack/internal/formatutil"
)

// Usage is the usage message of the subcommand
const Usage = ` Report the uses after release, double releases and dangling released values in your packages.
Usage:
  droptrack check [options] <package path(s)>
Examples:
  % droptrack check -config config.yaml ./...
`

// ErrFindings is returned by Run when some finding was reported
var ErrFindings = errors.New("findings reported")

// Flags represents the parsed flags of the check subcommand
type Flags struct {
	tools.CommonFlags
	maxAlarms   int
	parallelism int
}

// NewFlags returns the parsed flags of the check subcommand with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("check")
	maxAlarms := flags.FlagSet.Int("max-alarms", 0, "override max-alarms in config")
	parallelism := flags.FlagSet.Int("parallelism", 0, "override parallelism in config")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, maxAlarms: *maxAlarms, parallelism: *parallelism}, nil
}

// Run runs the check with flags. Findings are printed on the standard output; ErrFindings is returned when there
// is at least one.
func Run(flags Flags) error {
	prog, err := tools.Load(flags.CommonFlags)
	if err != nil {
		return err
	}
	if flags.maxAlarms > 0 {
		prog.Config.MaxAlarms = flags.maxAlarms
	}
	if flags.parallelism > 0 {
		prog.Config.Parallelism = flags.parallelism
	}
	d, err := driver.New(prog.IR, prog.Config, prog.Logger)
	if err != nil {
		return err
	}
	for _, id := range d.Skipped() {
		prog.Logger.Warnf("%s is not analyzed", id)
	}
	d.Ignore = prog.Loaded.Directives.Ignores

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	report, err := d.Check(ctx, driver.TextSink{W: os.Stdout})
	if err != nil {
		return fmt.Errorf("check failed: %v", err)
	}
	logger := prog.Logger
	logger.Infof("")
	logger.Infof(strings.Repeat("*", 80))
	logger.Infof("Checked %d functions in %3.4f s", report.Checked, time.Since(start).Seconds())
	if len(report.OverBudget) > 0 {
		logger.Warnf("%d functions exceeded the visit ceiling, %d findings suppressed",
			len(report.OverBudget), report.Suppressed)
	}
	if report.Truncated {
		logger.Warnf("stopped after %d findings (max-alarms)", report.Findings)
	}
	if report.Findings == 0 {
		logger.Infof("RESULT:\n\t\t%s", formatutil.Green("No misuse of released values detected ✓"))
		return nil
	}
	logger.Errorf("RESULT:\n\t\t%s", formatutil.Red(fmt.Sprintf("%d misuses of released values", report.Findings)))
	return ErrFindings
}
