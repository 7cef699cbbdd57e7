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

// Package driver runs the analyses on a whole program: it computes the function summaries bottom-up in the call
// graph, then runs the liveness detector on every body in parallel and reports the findings to a Sink.
package driver

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/awslabs/ar-go-droptrack/analysis/cfg"
	"github.com/awslabs/ar-go-droptrack/analysis/config"
	"github.com/awslabs/ar-go-droptrack/analysis/fixpoint"
	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"github.com/awslabs/ar-go-droptrack/analysis/mayalias"
	"github.com/awslabs/ar-go-droptrack/analysis/safedrop"
	"github.com/awslabs/ar-go-droptrack/analysis/summaries"
	"golang.org/x/sync/errgroup"
)

// Driver holds the state of the analysis of one program
type Driver struct {
	Config *config.Config
	Logger *config.LogGroup
	// Ignore, when set, suppresses the findings at the locations for which it returns true
	Ignore func(ir.Location) bool

	program    *ir.Program
	skipped    []ir.FuncID
	callgraph  *CallGraph
	cache      *summaries.Cache
	opts       fixpoint.Options
	summarized bool
}

// Report summarizes a run of the liveness detector
type Report struct {
	// Checked is the number of bodies checked
	Checked int
	// Findings is the number of findings sent to the sink
	Findings int
	// Suppressed is the number of findings dropped because of partial explorations
	Suppressed int
	// OverBudget are the functions whose exploration exceeded the visit ceiling
	OverBudget []ir.FuncID
	// Truncated is true when the number of findings reached the max-alarms setting
	Truncated bool
}

// New returns a driver for the program. Invalid bodies are skipped with a warning: their functions are treated as
// opaque. The summaries database of the config, if any, is loaded.
func New(prog *ir.Program, c *config.Config, logger *config.LogGroup) (*Driver, error) {
	if c == nil {
		c = config.NewDefault()
	}
	if logger == nil {
		logger = config.NewLogGroup(c)
	}
	valid := ir.NewProgram(prog.Layout)
	var skipped []ir.FuncID
	for id, body := range prog.Bodies {
		if err := body.Validate(); err != nil {
			logger.Warnf("skipping invalid body: %v", err)
			skipped = append(skipped, id)
			continue
		}
		valid.Add(body)
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i] < skipped[j] })

	opts := fixpoint.OptionsFromConfig(c, logger)
	d := &Driver{
		Config:    c,
		Logger:    logger,
		program:   valid,
		skipped:   skipped,
		callgraph: NewCallGraph(valid),
		cache:     mayalias.NewCache(valid, opts),
		opts:      opts,
	}
	if c.SummariesDB != "" {
		filename := c.RelPath(c.SummariesDB)
		lib, err := summaries.LoadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("could not load summaries database: %w", err)
		}
		d.cache.AddLibrary(lib)
		logger.Infof("loaded %d summaries from %s", len(lib), filename)
	}
	return d, nil
}

// Skipped returns the functions whose body was invalid
func (d *Driver) Skipped() []ir.FuncID {
	return d.skipped
}

// CallGraph returns the call graph of the valid bodies
func (d *Driver) CallGraph() *CallGraph {
	return d.callgraph
}

// Summaries returns the computed summaries, sorted by function
func (d *Driver) Summaries() []summaries.Summary {
	return d.cache.All()
}

// Summarize computes the summary of every body, callees first. The computation is sequential. A body whose
// summary cannot be computed gets an empty summary.
// If the config asks for summaries to be reported, they are written to the summaries file.
func (d *Driver) Summarize(ctx context.Context) error {
	if d.summarized {
		return nil
	}
	for _, id := range d.callgraph.Order() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := d.cache.GetOrCompute(ctx, id)
		if err != nil {
			d.Logger.Warnf("no summary for %s: %v", id, err)
			d.cache.Put(id, summaries.Summary{})
			continue
		}
		if d.Logger.LogsTrace() {
			d.Logger.Tracef("%s", s)
		}
	}
	d.summarized = true
	d.Logger.Debugf("computed %d summaries", d.cache.Len())
	if filename := d.Config.SummariesFile(); filename != "" {
		if err := d.writeSummaries(filename); err != nil {
			return err
		}
		d.Logger.Infof("summaries written in %s", filename)
	}
	return nil
}

func (d *Driver) writeSummaries(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create summaries file: %w", err)
	}
	defer f.Close()
	if err := summaries.WriteYAML(f, d.cache.All()); err != nil {
		return fmt.Errorf("could not write summaries: %w", err)
	}
	return nil
}

// Targets returns the functions matching the package filter of the config, sorted
func (d *Driver) Targets() []ir.FuncID {
	var res []ir.FuncID
	for _, id := range d.callgraph.Functions() {
		if d.Config.MatchPkgFilter(string(id)) {
			res = append(res, id)
		}
	}
	return res
}

// Check runs the liveness detector on every target body and sends the results to the sink in function order.
// Bodies are checked concurrently, up to the parallelism of the config. The summaries are computed first if
// needed. Cancelling the context stops the run between bodies.
func (d *Driver) Check(ctx context.Context, sink Sink) (*Report, error) {
	if err := d.Summarize(ctx); err != nil {
		return nil, err
	}
	targets := d.Targets()
	results := make([]safedrop.Result, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Config.Parallelism)
	for i, id := range targets {
		i, id := i, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			body := d.program.Body(id)
			results[i] = safedrop.Analyze(gctx, cfg.New(body), d.program.Layout, d.cache, d.opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Checked: len(targets)}
	for _, res := range results {
		if res.OverBudget {
			report.OverBudget = append(report.OverBudget, res.Func)
			report.Suppressed += res.Suppressed
			d.Logger.Warnf("%s: over budget after %d visits, partial result", res.Func, res.Visits)
			sink.OverBudget(res)
		}
		for _, f := range res.Findings {
			if d.Ignore != nil && (d.Ignore(f.At) || d.Ignore(f.DeadAt)) {
				d.Logger.Debugf("ignored: %s", f)
				continue
			}
			if d.Config.MaxAlarms > 0 && report.Findings >= d.Config.MaxAlarms {
				report.Truncated = true
				break
			}
			report.Findings++
			sink.Finding(f)
		}
	}
	if report.Truncated {
		d.Logger.Warnf("reached the maximum number of alarms (%d)", d.Config.MaxAlarms)
	}
	return report, nil
}
