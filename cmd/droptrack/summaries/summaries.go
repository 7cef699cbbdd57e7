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

// Package summaries implements the droptrack summaries subcommand, which prints the alias summaries of the
// functions of a program in the format of the summaries database.
package summaries

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/awslabs/ar-go-droptrack/analysis/driver"
	"github.com/awslabs/ar-go-droptrack/analysis/summaries"
	"github.com/awslabs/ar-go-droptrack/cmd/droptrack/tools"
)

// Usage is the usage message of the subcommand
const Usage = ` Compute the alias summaries of the functions in your packages.
Usage:
  droptrack summaries [options] <package path(s)>
Examples:
  % droptrack summaries -o summaries.yaml ./...
`

// Flags represents the parsed flags of the summaries subcommand
type Flags struct {
	tools.CommonFlags
	output   string
	nonEmpty bool
}

// NewFlags returns the parsed flags of the summaries subcommand with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("summaries")
	output := flags.FlagSet.String("o", "", "output file (default: standard output)")
	nonEmpty := flags.FlagSet.Bool("non-empty", false, "only print summaries with at least one fact")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, output: *output, nonEmpty: *nonEmpty}, nil
}

// Run computes and prints the summaries
func Run(flags Flags) error {
	prog, err := tools.Load(flags.CommonFlags)
	if err != nil {
		return err
	}
	d, err := driver.New(prog.IR, prog.Config, prog.Logger)
	if err != nil {
		return err
	}
	if err := d.Summarize(context.Background()); err != nil {
		return fmt.Errorf("could not compute summaries: %v", err)
	}
	var sums []summaries.Summary
	for _, s := range d.Summaries() {
		if flags.nonEmpty && s.IsEmpty() {
			continue
		}
		sums = append(sums, s)
	}
	var w io.Writer = os.Stdout
	if flags.output != "" {
		f, err := os.Create(flags.output)
		if err != nil {
			return fmt.Errorf("could not create %s: %v", flags.output, err)
		}
		defer f.Close()
		w = f
	}
	return summaries.WriteYAML(w, sums)
}
