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

// Package cfg preprocesses the control-flow graph of a body for the fixpoint walker.
//
// The blocks of every strongly connected component of size larger than one are collapsed into a single
// scheduling unit represented by the loop entry, which is the first block of the component reached from the entry
// of the body. A block that only loops on itself stays a singleton.
package cfg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"github.com/awslabs/ar-go-droptrack/internal/graphutil"
)

// Edge is a control-flow edge between two blocks
type Edge struct {
	From int
	To   int
}

// SCC is a strongly connected component of blocks collapsed into a super-block.
type SCC struct {
	// Entry is the first block of the component reached from the entry of the body
	Entry int
	// Members are the blocks of the component, in increasing order. The entry is a member.
	Members []int
	// EntrySwitch is the target set of the entry's terminator when it is a SwitchInt, in branch order with the
	// otherwise target last. It is nil otherwise.
	EntrySwitch []int
	// Exits are the edges from a member to a block outside the component
	Exits []Edge

	members map[int]bool
}

// Contains returns true if block b is a member of the component
func (s *SCC) Contains(b int) bool {
	return s.members[b]
}

// Graph is the preprocessed control-flow graph of a body. It is immutable after New returns.
type Graph struct {
	body      *ir.Body
	succs     [][]int
	preds     [][]int
	rep       []int
	sccs      map[int]*SCC
	reachable []bool
}

// New computes the successors, the strongly connected components and the reachable blocks of the body.
// The body must be valid (see ir.Body.Validate).
func New(body *ir.Body) *Graph {
	n := len(body.Blocks)
	g := &Graph{
		body:  body,
		succs: make([][]int, n),
		preds: make([][]int, n),
		rep:   make([]int, n),
		sccs:  map[int]*SCC{},
	}
	for i, block := range body.Blocks {
		seen := map[int]bool{}
		for _, s := range block.Terminator.Successors() {
			if s < 0 || s >= n || seen[s] {
				continue
			}
			seen[s] = true
			g.succs[i] = append(g.succs[i], s)
			g.preds[s] = append(g.preds[s], i)
		}
	}

	nodes := make([]int, n)
	for i := range nodes {
		nodes[i] = i
		g.rep[i] = i
	}
	for _, component := range graphutil.StronglyConnectedComponents(nodes, g.Successors) {
		if len(component) < 2 {
			continue
		}
		// the root of the component is last
		entry := component[len(component)-1]
		scc := &SCC{Entry: entry, members: make(map[int]bool, len(component))}
		for _, b := range component {
			scc.members[b] = true
			scc.Members = append(scc.Members, b)
			g.rep[b] = entry
		}
		sort.Ints(scc.Members)
		if t := body.Blocks[entry].Terminator; t.Kind == ir.SwitchInt {
			scc.EntrySwitch = t.Successors()
		}
		for _, b := range scc.Members {
			for _, s := range g.succs[b] {
				if !scc.members[s] {
					scc.Exits = append(scc.Exits, Edge{From: b, To: s})
				}
			}
		}
		g.sccs[entry] = scc
	}
	g.reachable = graphutil.Reachable(g.Iterator(), 0)
	return g
}

// Body returns the body the graph was computed from
func (g *Graph) Body() *ir.Body {
	return g.body
}

// NumBlocks returns the number of blocks of the body
func (g *Graph) NumBlocks() int {
	return len(g.succs)
}

// Successors returns the distinct successors of block b, in branch order
func (g *Graph) Successors(b int) []int {
	return g.succs[b]
}

// Predecessors returns the distinct predecessors of block b
func (g *Graph) Predecessors(b int) []int {
	return g.preds[b]
}

// Rep returns the representative of block b in the collapsed graph: the entry of its SCC, or b itself.
func (g *Graph) Rep(b int) int {
	return g.rep[b]
}

// SCC returns the component whose entry is the block entry, or nil if entry is not the entry of a component of
// size larger than one.
func (g *Graph) SCC(entry int) *SCC {
	return g.sccs[entry]
}

// SCCs returns all the components of size larger than one, ordered by entry
func (g *Graph) SCCs() []*SCC {
	res := make([]*SCC, 0, len(g.sccs))
	for _, s := range g.sccs {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Entry < res[j].Entry })
	return res
}

// IsReachable returns true if the block b is reachable from the entry block
func (g *Graph) IsReachable(b int) bool {
	return b >= 0 && b < len(g.reachable) && g.reachable[b]
}

// CollapsedSuccessors returns the successors of the collapsed block represented by rep, as block indices outside
// of the component. Edges between blocks of the same collapsed block are omitted.
func (g *Graph) CollapsedSuccessors(rep int) []int {
	var res []int
	seen := map[int]bool{}
	add := func(s int) {
		if g.rep[s] != rep && !seen[s] {
			seen[s] = true
			res = append(res, s)
		}
	}
	if scc := g.sccs[rep]; scc != nil {
		for _, e := range scc.Exits {
			add(e.To)
		}
		return res
	}
	for _, s := range g.succs[rep] {
		add(s)
	}
	return res
}

// Iterator returns the block graph as a graphutil.IGraph, which implements the graph.Iterator interface of the
// github.com/yourbasic/graph library.
func (g *Graph) Iterator() graphutil.IGraph {
	return graphutil.NewIGraph(len(g.succs), g.Successors)
}

// Stats are statistics on the shape of a control-flow graph
type Stats struct {
	Blocks      int
	Edges       int
	Unreachable int
	SCCs        int
	LargestSCC  int
	// Cycles is the number of elementary cycles, up to the limit given to ComputeStats
	Cycles int
}

// ComputeStats returns statistics on the graph. At most cycleLimit elementary cycles are counted.
func (g *Graph) ComputeStats(cycleLimit int) Stats {
	it := g.Iterator()
	s := Stats{Blocks: g.NumBlocks(), Edges: it.NumEdges(), SCCs: len(g.sccs)}
	for b := 0; b < g.NumBlocks(); b++ {
		if !g.IsReachable(b) {
			s.Unreachable++
		}
	}
	for _, scc := range g.sccs {
		if len(scc.Members) > s.LargestSCC {
			s.LargestSCC = len(scc.Members)
		}
	}
	s.Cycles = len(graphutil.FindAllElementaryCycles(it, cycleLimit))
	return s
}

// String prints the collapsed graph: one line per collapsed block, with its members and successors.
func (g *Graph) String() string {
	var sb strings.Builder
	for b := 0; b < g.NumBlocks(); b++ {
		if g.rep[b] != b {
			continue
		}
		reach := ""
		if !g.IsReachable(b) {
			reach = " (unreachable)"
		}
		if scc := g.sccs[b]; scc != nil {
			fmt.Fprintf(&sb, "scc bb%d%s: members %v", b, reach, scc.Members)
			if scc.EntrySwitch != nil {
				fmt.Fprintf(&sb, " switch %v", scc.EntrySwitch)
			}
		} else {
			fmt.Fprintf(&sb, "bb%d%s:", b, reach)
		}
		fmt.Fprintf(&sb, " -> %v\n", g.CollapsedSuccessors(b))
	}
	return sb.String()
}
