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

// Package alias implements the abstract location store: a table of abstract locations, one per local and one per
// field or dereference projection discovered during the analysis, partitioned into alias classes by a union-find
// structure.
//
// Projections are created lazily and hang off the representative of their parent's class, so two aliased nodes
// always resolve a projection to the same child. Merging two classes merges their children recursively, up to the
// field depth of the store.
package alias

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-go-droptrack/analysis/ir"
)

const (
	// NoBirth is the birth marker of a node that has not been assigned yet
	NoBirth = -1
	// CallerBirth is the birth marker of the parameters and of the storage they point to, assigned by the caller
	CallerBirth = -2
)

// Node is an abstract location
type Node struct {
	Index int
	// Local is the root local the node was projected from
	Local ir.Local
	// Path is the sequence of child indices from the root local (ir.DerefField for dereferences)
	Path []int
	Type ir.Type
	// NeedsDrop is true when the type of the node owns content that must be released
	NeedsDrop bool
	// MayDrop is a superset of NeedsDrop, true when the type may need a release depending on its instantiation
	MayDrop bool
	// Birth is the collapsed block at which the node was last assigned, NoBirth or CallerBirth
	Birth int
	// Dead is true once the content of the node has been released; DeadAt is where
	Dead   bool
	DeadAt ir.Location
	// Children maps child indices to nodes. Only the map of the representative of a class is up to date.
	Children map[int]int
}

// Depth returns the number of projections from the root local to the node
func (n *Node) Depth() int {
	return len(n.Path)
}

func (n *Node) String() string {
	p := ir.Place{Local: n.Local}
	for _, f := range n.Path {
		if f == ir.DerefField {
			p = p.Project(ir.Deref())
		} else {
			p = p.Project(ir.Field(f))
		}
	}
	return p.String()
}

// Store is the abstract location store of one procedure. A store is not safe for concurrent use; each path of
// the analysis works on its own clone.
type Store struct {
	nodes      []*Node
	sets       AliasSet
	roots      []int
	layout     ir.Layout
	fieldDepth int
}

// NewStore returns a store with one node per local of the body. Nodes deeper than fieldDepth are not created:
// projections beyond that depth resolve to their parent.
func NewStore(body *ir.Body, layout ir.Layout, fieldDepth int) *Store {
	if layout == nil {
		layout = ir.StaticLayout{}
	}
	s := &Store{
		layout:     layout,
		fieldDepth: fieldDepth,
		roots:      make([]int, len(body.Locals)),
	}
	for i, decl := range body.Locals {
		s.roots[i] = s.newNode(ir.Local(i), nil, decl.Type)
	}
	return s
}

func (s *Store) newNode(local ir.Local, path []int, t ir.Type) int {
	n := &Node{
		Index:     len(s.nodes),
		Local:     local,
		Path:      path,
		Type:      t,
		NeedsDrop: s.layout.NeedsDrop(t),
		MayDrop:   s.layout.MayNeedDrop(t),
		Birth:     NoBirth,
		Children:  map[int]int{},
	}
	s.nodes = append(s.nodes, n)
	s.sets.Add()
	return n.Index
}

// Len returns the number of nodes in the store
func (s *Store) Len() int {
	return len(s.nodes)
}

// Node returns the node at index i
func (s *Store) Node(i int) *Node {
	return s.nodes[i]
}

// FieldDepth returns the maximum depth of projections of the store
func (s *Store) FieldDepth() int {
	return s.fieldDepth
}

// Root returns the node currently standing for the local l
func (s *Store) Root(l ir.Local) int {
	return s.roots[l]
}

// Find returns the representative of the alias class of i
func (s *Store) Find(i int) int {
	return s.sets.Find(i)
}

// Same returns true if i and j are in the same alias class
func (s *Store) Same(i, j int) bool {
	return s.sets.Same(i, j)
}

// Child returns the child of node i at index field, creating it if needed. Children hang off the representative
// of the class of i. At the maximum field depth, the node itself is returned.
func (s *Store) Child(i int, field int) int {
	r := s.sets.Find(i)
	parent := s.nodes[r]
	if c, ok := parent.Children[field]; ok {
		return c
	}
	if parent.Depth() >= s.fieldDepth {
		return r
	}
	var t ir.Type
	if parent.Type != nil {
		if field == ir.DerefField {
			t = s.layout.DerefType(parent.Type)
		} else {
			t = s.layout.FieldType(parent.Type, field)
		}
	}
	path := make([]int, len(parent.Path)+1)
	copy(path, parent.Path)
	path[len(parent.Path)] = field
	c := s.newNode(parent.Local, path, t)
	child := s.nodes[c]
	child.Birth = parent.Birth
	child.Dead = parent.Dead
	child.DeadAt = parent.DeadAt
	parent.Children[field] = c
	return c
}

// Project returns the node reached from i by following the child indices in fields
func (s *Store) Project(i int, fields []int) int {
	for _, f := range fields {
		i = s.Child(i, f)
	}
	return i
}

// Resolve returns the node of the place p, creating the projection nodes as needed.
func (s *Store) Resolve(p ir.Place) int {
	n := s.roots[p.Local]
	for _, proj := range p.Projection {
		n = s.Child(n, proj.Index())
	}
	return n
}

// Reset gives the local l a fresh node, detached from every alias class. Projections of the previous node are not
// reachable from l anymore. The new node is returned.
func (s *Store) Reset(l ir.Local) int {
	old := s.nodes[s.roots[l]]
	s.roots[l] = s.newNode(l, nil, old.Type)
	return s.roots[l]
}

// Union merges the alias classes of a and b, and recursively the classes of their children with the same index.
// A child present on only one side is adopted by the merged class.
func (s *Store) Union(a, b int) {
	s.union(a, b, 0)
}

func (s *Store) union(a, b int, depth int) {
	root, merged := s.sets.Union(a, b)
	if root == merged || depth >= s.fieldDepth {
		return
	}
	children := s.nodes[merged].Children
	fields := make([]int, 0, len(children))
	for f := range children {
		fields = append(fields, f)
	}
	sort.Ints(fields)
	for _, f := range fields {
		if c, ok := s.nodes[s.sets.Find(root)].Children[f]; ok {
			s.union(c, children[f], depth+1)
		} else {
			s.nodes[s.sets.Find(root)].Children[f] = children[f]
		}
	}
}

// classes returns the members of each class, indexed by representative
func (s *Store) classes() map[int][]int {
	res := make(map[int][]int)
	for i := range s.nodes {
		r := s.sets.Find(i)
		res[r] = append(res[r], i)
	}
	return res
}

// ReachableFrom returns all the nodes in the alias class of i and in the classes of its children, transitively,
// in increasing order.
func (s *Store) ReachableFrom(i int) []int {
	var res []int
	s.propagate(i, func(n *Node) { res = append(res, n.Index) })
	sort.Ints(res)
	return res
}

func (s *Store) propagate(i int, f func(*Node)) {
	classes := s.classes()
	visited := map[int]bool{}
	queue := []int{s.sets.Find(i)}
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		if visited[r] {
			continue
		}
		visited[r] = true
		for _, m := range classes[r] {
			f(s.nodes[m])
		}
		for _, c := range s.nodes[r].Children {
			if cr := s.sets.Find(c); !visited[cr] {
				queue = append(queue, cr)
			}
		}
	}
}

// Rebirth marks the class of i, and the classes of its children, as assigned at the collapsed block birth.
// Dead nodes become live again.
func (s *Store) Rebirth(i int, birth int) {
	s.propagate(i, func(n *Node) {
		n.Birth = birth
		n.Dead = false
		n.DeadAt = ir.Location{}
	})
}

// Kill marks the class of i, and the classes of its children, as released at loc. Nodes that are already dead
// keep their first release location.
func (s *Store) Kill(i int, loc ir.Location) {
	s.propagate(i, func(n *Node) {
		if !n.Dead {
			n.Dead = true
			n.DeadAt = loc
		}
	})
}

// Clone returns a deep copy of the store
func (s *Store) Clone() *Store {
	c := &Store{
		nodes:      make([]*Node, len(s.nodes)),
		sets:       s.sets.clone(),
		roots:      make([]int, len(s.roots)),
		layout:     s.layout,
		fieldDepth: s.fieldDepth,
	}
	copy(c.roots, s.roots)
	for i, n := range s.nodes {
		nc := *n
		nc.Children = make(map[int]int, len(n.Children))
		for f, ch := range n.Children {
			nc.Children[f] = ch
		}
		c.nodes[i] = &nc
	}
	return c
}

// Fingerprint returns a canonical text representation of the store. Two stores with the same fingerprint have
// the same nodes, classes and liveness.
func (s *Store) Fingerprint() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "roots %v\n", s.roots)
	for _, n := range s.nodes {
		fields := make([]int, 0, len(n.Children))
		for f := range n.Children {
			fields = append(fields, f)
		}
		sort.Ints(fields)
		children := make([]string, len(fields))
		for k, f := range fields {
			children[k] = fmt.Sprintf("%d:%d", f, n.Children[f])
		}
		fmt.Fprintf(&sb, "%d %s rep=%d birth=%d dead=%t@%s {%s}\n", n.Index, n, s.sets.Find(n.Index), n.Birth,
			n.Dead, n.DeadAt, strings.Join(children, ","))
	}
	return sb.String()
}
