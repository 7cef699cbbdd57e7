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

// Package cfg implements the droptrack cfg subcommand, which prints the lowered bodies of functions with their
// collapsed control-flow graphs.
package cfg

import (
	"fmt"
	"os"
	"regexp"

	"github.com/awslabs/ar-go-droptrack/analysis/cfg"
	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"github.com/awslabs/ar-go-droptrack/cmd/droptrack/tools"
	"github.com/awslabs/ar-go-droptrack/internal/formatutil"
	"github.com/awslabs/ar-go-droptrack/internal/funcutil"
)

// Usage is the usage message of the subcommand
const Usage = ` Print the lowered form and the control-flow graph of the functions in your packages.
Usage:
  droptrack cfg [options] <package path(s)>
Examples:
  % droptrack cfg -func 'main\.run' main.go
`

// Flags represents the parsed flags of the cfg subcommand
type Flags struct {
	tools.CommonFlags
	funcFilter *regexp.Regexp
	cycles     int
	bodies     bool
}

// NewFlags returns the parsed flags of the cfg subcommand with args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("cfg")
	filter := flags.FlagSet.String("func", "", "regex of the functions to print")
	cycles := flags.FlagSet.Int("cycles", 1000, "maximum number of elementary cycles counted per function")
	bodies := flags.FlagSet.Bool("bodies", false, "print the lowered bodies")
	tools.SetUsage(flags.FlagSet, Usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	r, err := regexp.Compile(*filter)
	if err != nil {
		return Flags{}, fmt.Errorf("invalid function regex %q: %v", *filter, err)
	}
	return Flags{CommonFlags: common, funcFilter: r, cycles: *cycles, bodies: *bodies}, nil
}

// Run prints the graphs of the functions matching the filter
func Run(flags Flags) error {
	prog, err := tools.Load(flags.CommonFlags)
	if err != nil {
		return err
	}
	ids := map[ir.FuncID]bool{}
	for id := range prog.IR.Bodies {
		if flags.funcFilter.MatchString(string(id)) {
			ids[id] = true
		}
	}
	for _, id := range funcutil.SetToOrderedSlice(ids) {
		body := prog.IR.Bodies[id]
		fmt.Fprintf(os.Stdout, "%s (%s)\n", formatutil.Bold(id), body.Pos)
		if err := body.Validate(); err != nil {
			fmt.Fprintf(os.Stdout, "  %s\n", formatutil.Red(err))
			continue
		}
		if flags.bodies {
			fmt.Fprint(os.Stdout, body)
		}
		g := cfg.New(body)
		fmt.Fprint(os.Stdout, g)
		s := g.ComputeStats(flags.cycles)
		fmt.Fprintf(os.Stdout, "%s blocks %d, edges %d, unreachable %d, sccs %d, largest scc %d, cycles %d\n\n",
			formatutil.Faint("stats:"), s.Blocks, s.Edges, s.Unreachable, s.SCCs, s.LargestSCC, s.Cycles)
	}
	return nil
}
