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

// FindAllElementaryCycles finds all elementary cycles in the graph g, stopping once limit cycles have been
// found (limit <= 0 means no limit). Each cycle starts and ends with its smallest node.
// This uses Donald B. Johnson's algorithm presented in
// "Finding All The Elementary Circuits of a Directed Graph", 1975
func FindAllElementaryCycles(g IGraph, limit int) [][]int64 {
	s := &circuitState{
		blocked: map[int64]bool{},
		blist:   map[int64]map[int64]bool{},
		limit:   limit,
	}
	start := 0
	for start < len(g.Keys) && !s.full() {
		sub := Subgraph(g, g.Keys[start:])
		// the strong component containing the least node of the subgraph that lies on a cycle
		var least []int
		for _, component := range graph.StrongComponents(sub) {
			if _, in := sub.Edges[int64(component[0])]; !in {
				// nodes outside the subgraph are reported as singletons
				continue
			}
			if len(component) == 1 && !sub.Edges[int64(component[0])][int64(component[0])] {
				continue
			}
			sort.Ints(component)
			if least == nil || component[0] < least[0] {
				least = component
			}
		}
		if least == nil {
			break
		}
		root := int64(least[0])
		s.stack = s.stack[:0]
		s.blocked = map[int64]bool{}
		s.blist = map[int64]map[int64]bool{}
		s.circuit(root, root, Subgraph(sub, toInt64s(least)))
		start = sort.Search(len(g.Keys), func(i int) bool { return g.Keys[i] > root })
	}
	return s.cycles
}

func toInt64s(a []int) []int64 {
	r := make([]int64, len(a))
	for i, x := range a {
		r[i] = int64(x)
	}
	return r
}

type circuitState struct {
	blocked map[int64]bool
	blist   map[int64]map[int64]bool
	stack   []int64
	cycles  [][]int64
	limit   int
}

func (s *circuitState) full() bool {
	return s.limit > 0 && len(s.cycles) >= s.limit
}

func (s *circuitState) unblock(u int64) {
	s.blocked[u] = false
	for w := range s.blist[u] {
		delete(s.blist[u], w)
		if s.blocked[w] {
			s.unblock(w)
		}
	}
}

func (s *circuitState) circuit(v int64, root int64, g IGraph) bool {
	f := false
	s.stack = append(s.stack, v)
	s.blocked[v] = true
	for _, w := range sortedSuccs(g, v) {
		if s.full() {
			break
		}
		if w == root {
			cycle := make([]int64, len(s.stack), len(s.stack)+1)
			copy(cycle, s.stack)
			cycle = append(cycle, w)
			s.cycles = append(s.cycles, cycle)
			f = true
		} else if !s.blocked[w] {
			if s.circuit(w, root, g) {
				f = true
			}
		}
	}

	if f {
		s.unblock(v)
	} else {
		for _, w := range sortedSuccs(g, v) {
			if s.blist[w] == nil {
				s.blist[w] = map[int64]bool{}
			}
			s.blist[w][v] = true
		}
	}
	s.stack = s.stack[:len(s.stack)-1]
	return f
}

func sortedSuccs(g IGraph, v int64) []int64 {
	ws := make([]int64, 0, len(g.Edges[v]))
	for w := range g.Edges[v] {
		ws = append(ws, w)
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i] < ws[j] })
	return ws
}
