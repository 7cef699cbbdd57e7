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

package graphutil

import (
	"sort"

	"github.com/yourbasic/graph"
)

// IGraph is an abstraction over a directed graph with integer nodes 0..n-1 (e.g. the blocks of a control-flow
// graph) to work with existing graph libraries. It implements the methods to satisfy graph.Iterator.
type IGraph struct {
	// The order of the graph
	order int

	// Keys are all the node IDs, sorted
	Keys []int64

	// Edges is an adjacency matrix: Edges[x][y] means there is a directed edge between x and y
	Edges map[int64]map[int64]bool
}

// NewIGraph returns a graph of n nodes where the successors of each node are given by succs.
// Successors out of the range [0,n) are ignored.
func NewIGraph(n int, succs func(int) []int) IGraph {
	edges := make(map[int64]map[int64]bool, n)
	keys := make([]int64, n)
	for i := 0; i < n; i++ {
		keys[i] = int64(i)
		edges[int64(i)] = map[int64]bool{}
		for _, s := range succs(i) {
			if s >= 0 && s < n {
				edges[int64(i)][int64(s)] = true
			}
		}
	}
	return IGraph{order: n, Keys: keys, Edges: edges}
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order is the same as in origin, meaning that node indices will stay consistent across subgraphs.
func Subgraph(original IGraph, include []int64) IGraph {
	in := make(map[int64]bool, len(include))
	for _, i := range include {
		in[i] = true
	}
	edges := make(map[int64]map[int64]bool, len(include))
	keys := make([]int64, len(include))
	copy(keys, include)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, i := range include {
		edges[i] = map[int64]bool{}
		for e := range original.Edges[i] {
			if in[e] {
				edges[i][e] = true
			}
		}
	}
	return IGraph{order: original.order, Keys: keys, Edges: edges}
}

// Order implements the order of the graph.Iterator interface for the IGraph
func (g IGraph) Order() int {
	return g.order
}

// Visit implements the graph.Iterator interface for the IGraph. Successors are visited in increasing order so
// that traversals are deterministic.
func (g IGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	succs, ok := g.Edges[int64(v)]
	if !ok {
		return false
	}
	ws := make([]int64, 0, len(succs))
	for w := range succs {
		ws = append(ws, w)
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i] < ws[j] })
	for _, w := range ws {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// NumEdges returns the number of edges in the graph
func (g IGraph) NumEdges() int {
	n := 0
	for _, succs := range g.Edges {
		n += len(succs)
	}
	return n
}

// Reachable returns, for each node of g, whether it is reachable from the node from.
func Reachable(g IGraph, from int) []bool {
	reached := make([]bool, g.Order())
	if from < 0 || from >= g.Order() {
		return reached
	}
	reached[from] = true
	graph.BFS(g, from, func(_, w int, _ int64) {
		reached[w] = true
	})
	return reached
}
