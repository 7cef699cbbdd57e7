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

// Package mayalias computes the function summaries of bodies: the alias facts between the return value and the
// arguments of a function that hold at the end of some path of its body.
package mayalias

import (
	"context"
	"fmt"
	"sort"

	"github.com/awslabs/ar-go-droptrack/analysis/alias"
	"github.com/awslabs/ar-go-droptrack/analysis/cfg"
	"github.com/awslabs/ar-go-droptrack/analysis/fixpoint"
	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"github.com/awslabs/ar-go-droptrack/analysis/summaries"
)

// Result is the outcome of the analysis of one body
type Result struct {
	Summary summaries.Summary
	fixpoint.Result
}

// collector gathers the facts observed at the leaves of the walk
type collector struct {
	fixpoint.NopHooks
	argCount int
	facts    []summaries.AliasFact
}

type entry struct {
	path summaries.FieldPath
	node int
}

// OnLeaf records the aliases between the nodes reachable from the return slot and the parameters
func (c *collector) OnLeaf(st *fixpoint.State, _ ir.Location) {
	s := st.Store
	byClass := map[int][]entry{}
	for l := 0; l <= c.argCount; l++ {
		for _, e := range pathsFrom(s, l) {
			r := s.Find(e.node)
			byClass[r] = append(byClass[r], e)
		}
	}
	classes := make([]int, 0, len(byClass))
	for r := range byClass {
		classes = append(classes, r)
	}
	sort.Ints(classes)
	for _, r := range classes {
		entries := byClass[r]
		for i := 0; i < len(entries); i++ {
			for j := i + 1; j < len(entries); j++ {
				a, b := entries[i], entries[j]
				c.facts = append(c.facts, summaries.AliasFact{
					Left:         a.path,
					Right:        b.path,
					LeftMayDrop:  s.Node(a.node).MayDrop,
					RightMayDrop: s.Node(b.node).MayDrop,
				})
			}
		}
	}
}

// pathsFrom returns the node of local l and the nodes of its projections, each with the shortest field path that
// reaches it. A class is reached at most once.
func pathsFrom(s *alias.Store, l int) []entry {
	root := s.Root(ir.Local(l))
	res := []entry{{path: summaries.FieldPath{Index: l}, node: root}}
	visited := map[int]bool{s.Find(root): true}
	for i := 0; i < len(res); i++ {
		cur := res[i]
		if len(cur.path.Fields) >= s.FieldDepth() {
			continue
		}
		children := s.Node(s.Find(cur.node)).Children
		fields := make([]int, 0, len(children))
		for f := range children {
			fields = append(fields, f)
		}
		sort.Ints(fields)
		for _, f := range fields {
			child := children[f]
			if visited[s.Find(child)] {
				continue
			}
			visited[s.Find(child)] = true
			path := make([]int, len(cur.path.Fields), len(cur.path.Fields)+1)
			copy(path, cur.path.Fields)
			res = append(res, entry{path: summaries.FieldPath{Index: l, Fields: append(path, f)}, node: child})
		}
	}
	return res
}

// Analyze walks the body of graph and returns its summary. A partial exploration (over budget) still produces the
// facts observed on the paths explored.
func Analyze(ctx context.Context, graph *cfg.Graph, layout ir.Layout, provider fixpoint.SummaryProvider,
	opts fixpoint.Options) Result {
	body := graph.Body()
	c := &collector{argCount: body.ArgCount}
	res := fixpoint.New(graph, layout, provider, c, opts).Run(ctx)
	return Result{Summary: summaries.NewSummary(body.Func, c.facts), Result: res}
}

// NewCache returns a summary cache for prog whose summaries are computed by this analysis. Callees are resolved
// through the cache itself.
func NewCache(prog *ir.Program, opts fixpoint.Options) *summaries.Cache {
	var cache *summaries.Cache
	cache = summaries.NewCache(prog, func(ctx context.Context, id ir.FuncID) (summaries.Summary, error) {
		body := prog.Body(id)
		if body == nil {
			return summaries.Summary{}, fmt.Errorf("%s has no body", id)
		}
		if err := body.Validate(); err != nil {
			return summaries.Summary{}, fmt.Errorf("invalid body: %w", err)
		}
		res := Analyze(ctx, cfg.New(body), prog.Layout, cache, opts)
		if res.OverBudget && opts.Logger != nil {
			opts.Logger.Debugf("summary of %s computed on a partial exploration (%d visits)", id, res.Visits)
		}
		return res.Summary, nil
	})
	return cache
}
