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

package driver

import (
	"sort"

	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// CallGraph is the static call graph of the bodies of a program. Calls to opaque functions are not edges.
type CallGraph struct {
	ids   []ir.FuncID
	index map[ir.FuncID]int64
	g     *simple.DirectedGraph
}

// NewCallGraph builds the call graph of prog from the call terminators of its bodies
func NewCallGraph(prog *ir.Program) *CallGraph {
	cg := &CallGraph{index: map[ir.FuncID]int64{}, g: simple.NewDirectedGraph()}
	for id := range prog.Bodies {
		cg.ids = append(cg.ids, id)
	}
	sort.Slice(cg.ids, func(i, j int) bool { return cg.ids[i] < cg.ids[j] })
	for i, id := range cg.ids {
		cg.index[id] = int64(i)
		cg.g.AddNode(simple.Node(i))
	}
	for i, id := range cg.ids {
		for _, block := range prog.Bodies[id].Blocks {
			t := block.Terminator
			if t.Kind != ir.Call {
				continue
			}
			j, ok := cg.index[t.Func]
			// the simple graph has no self edges; a directly recursive function is its own component anyway
			if !ok || j == int64(i) {
				continue
			}
			cg.g.SetEdge(cg.g.NewEdge(simple.Node(i), simple.Node(j)))
		}
	}
	return cg
}

// Functions returns the functions of the call graph, sorted
func (cg *CallGraph) Functions() []ir.FuncID {
	return cg.ids
}

// Callees returns the functions with a body called by id, sorted
func (cg *CallGraph) Callees(id ir.FuncID) []ir.FuncID {
	i, ok := cg.index[id]
	if !ok {
		return nil
	}
	return cg.sorted(graph.NodesOf(cg.g.From(i)))
}

// Callers returns the functions calling id, sorted
func (cg *CallGraph) Callers(id ir.FuncID) []ir.FuncID {
	i, ok := cg.index[id]
	if !ok {
		return nil
	}
	return cg.sorted(graph.NodesOf(cg.g.To(i)))
}

func (cg *CallGraph) sorted(nodes []graph.Node) []ir.FuncID {
	ids := make([]int64, len(nodes))
	for k, n := range nodes {
		ids[k] = n.ID()
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	res := make([]ir.FuncID, len(ids))
	for k, n := range ids {
		res[k] = cg.ids[n]
	}
	return res
}

// BottomUp returns the strongly connected components of the call graph with callees before callers. The
// functions of each component are sorted.
func (cg *CallGraph) BottomUp() [][]ir.FuncID {
	components := topo.TarjanSCC(cg.g)
	res := make([][]ir.FuncID, len(components))
	for k, c := range components {
		res[k] = cg.sorted(c)
	}
	return res
}

// Order returns the functions in bottom-up order
func (cg *CallGraph) Order() []ir.FuncID {
	var res []ir.FuncID
	for _, c := range cg.BottomUp() {
		res = append(res, c...)
	}
	return res
}
