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

package fixpoint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-go-droptrack/analysis/cfg"
	"github.com/awslabs/ar-go-droptrack/analysis/ir"
)

// outcome is one way out of a block. For a switch, value is the value of the discriminant on that outcome.
type outcome struct {
	target   int
	value    uint64
	hasValue bool
}

// outcomesOf returns the discriminant of the terminator, if it is a switch on a place, and its outcomes in branch
// order. The otherwise outcome of a switch is last.
func outcomesOf(t *ir.Terminator) (Discriminant, bool, []outcome) {
	if t.Kind != ir.SwitchInt {
		succs := t.Successors()
		outs := make([]outcome, len(succs))
		for i, s := range succs {
			outs[i] = outcome{target: s}
		}
		return 0, false, outs
	}
	outs := make([]outcome, 0, len(t.Targets)+1)
	for i, target := range t.Targets {
		outs = append(outs, outcome{target: target, value: t.Values[i], hasValue: true})
	}
	if t.Otherwise != ir.NoBlock {
		outs = append(outs, outcome{target: t.Otherwise, value: Otherwise, hasValue: true})
	}
	d, hasD := discriminantOf(t.Discr)
	return d, hasD, outs
}

// selectOutcome returns the outcome taken when the discriminant has value v. A value that matches no case
// selects the otherwise outcome.
func selectOutcome(outs []outcome, v uint64) []outcome {
	var fallback []outcome
	for _, o := range outs {
		if !o.hasValue {
			continue
		}
		if o.value == v {
			return []outcome{o}
		}
		if o.value == Otherwise {
			fallback = []outcome{o}
		}
	}
	return fallback
}

// sccPath is an iteration order of a loop: the blocks visited from the entry, the outcomes of the branches
// taken on the way, and the block outside of the loop the order exits to, if any.
type sccPath struct {
	blocks   []int
	bindings map[Discriminant]uint64
	exit     int
}

func (p sccPath) key() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%v->%d", p.blocks, p.exit)
	if p.exit != ir.NoBlock {
		ds := make([]int, 0, len(p.bindings))
		for d := range p.bindings {
			ds = append(ds, int(d))
		}
		sort.Ints(ds)
		for _, d := range ds {
			fmt.Fprintf(&sb, ";%d=%d", d, p.bindings[Discriminant(d)])
		}
	}
	return sb.String()
}

func copyBindings(b map[Discriminant]uint64) map[Discriminant]uint64 {
	c := make(map[Discriminant]uint64, len(b))
	for d, v := range b {
		c[d] = v
	}
	return c
}

// visitSCC replays each iteration order of the loop, then continues after the loop
func (w *Walker) visitSCC(scc *cfg.SCC) {
	orders := w.sccOrders(scc)
	w.tracef("%s: loop bb%d has %d iteration orders", w.body.Name(), scc.Entry, len(orders))
	for _, o := range orders {
		if w.overBudget {
			return
		}
		saved := w.state
		if len(orders) > 1 {
			w.state = saved.Fork()
		}
		w.orders++
		if w.replay(scc, o) {
			w.leaveSCC(scc, o)
		}
		w.state = saved
	}
}

// replay applies the blocks of the order. The entry has already been counted as visited.
func (w *Walker) replay(scc *cfg.SCC, o sccPath) bool {
	for i, b := range o.blocks {
		if i > 0 && !w.step() {
			return false
		}
		w.applyBlock(w.body.Blocks[b], scc.Entry)
	}
	return true
}

func (w *Walker) leaveSCC(scc *cfg.SCC, o sccPath) {
	if o.exit != ir.NoBlock {
		for d, v := range o.bindings {
			w.state.Constants[d] = v
		}
		w.visit(w.graph.Rep(o.exit))
		return
	}
	// after a complete iteration, the loop can be left through any exit that does not contradict the outcomes
	// known outside the loop
	var targets []int
	seen := map[int]bool{}
	for _, e := range scc.Exits {
		if seen[e.To] {
			continue
		}
		d, hasD, outs := outcomesOf(&w.body.Blocks[e.From].Terminator)
		if hasD {
			if v, known := w.state.Constants[d]; known {
				sel := selectOutcome(outs, v)
				if len(sel) == 0 || sel[0].target != e.To {
					continue
				}
			}
		}
		seen[e.To] = true
		targets = append(targets, e.To)
	}
	w.fanOut(targets, w.body.Blocks[scc.Entry].Terminator.Pos)
}

// sccOrders returns the iteration orders of the loop.
//
// In Batch mode, there is a single order with all the blocks of the loop. In Ordered mode, the orders are the
// paths from the entry of the loop that end by going back to the entry (or to another block of the path) or by
// leaving the loop. A branch whose discriminant has a known value follows only the matching outcome; otherwise every
// outcome is followed and its value is recorded for the rest of the path. Values are forgotten when a block of the
// path assigns their discriminant, and the values known outside the loop are ignored for discriminants assigned
// in the loop.
func (w *Walker) sccOrders(scc *cfg.SCC) []sccPath {
	if w.opts.Mode == Batch {
		blocks := []int{scc.Entry}
		for _, b := range scc.Members {
			if b != scc.Entry {
				blocks = append(blocks, b)
			}
		}
		return []sccPath{{blocks: blocks, exit: ir.NoBlock}}
	}

	assignedInLoop := map[Discriminant]bool{}
	for _, b := range scc.Members {
		for _, d := range w.assigned[b] {
			assignedInLoop[d] = true
		}
	}
	init := map[Discriminant]uint64{}
	for d, v := range w.state.Constants {
		if !assignedInLoop[d] {
			init[d] = v
		}
	}

	var orders []sccPath
	seen := map[string]bool{}
	add := func(p sccPath) {
		if k := p.key(); !seen[k] {
			seen[k] = true
			orders = append(orders, p)
		}
	}
	stack := []sccPath{{blocks: []int{scc.Entry}, bindings: init, exit: ir.NoBlock}}
	steps := 0
	for len(stack) > 0 {
		steps++
		if steps > w.opts.VisitCeiling {
			w.overBudget = true
			break
		}
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		last := p.blocks[len(p.blocks)-1]

		bindings := p.bindings
		if killed := w.assigned[last]; len(killed) > 0 {
			bindings = copyBindings(bindings)
			for _, d := range killed {
				delete(bindings, d)
			}
		}
		d, hasD, outs := outcomesOf(&w.body.Blocks[last].Terminator)
		if hasD {
			if v, known := bindings[d]; known {
				outs = selectOutcome(outs, v)
			}
		}
		if len(outs) == 0 {
			add(sccPath{blocks: p.blocks, bindings: bindings, exit: ir.NoBlock})
			continue
		}
		var next []sccPath
		for _, o := range outs {
			nb := bindings
			if hasD && o.hasValue {
				nb = copyBindings(bindings)
				nb[d] = o.value
			}
			switch {
			case !scc.Contains(o.target):
				add(sccPath{blocks: p.blocks, bindings: nb, exit: o.target})
			case o.target == scc.Entry || containsBlock(p.blocks, o.target):
				add(sccPath{blocks: p.blocks, bindings: nb, exit: ir.NoBlock})
			default:
				blocks := make([]int, len(p.blocks), len(p.blocks)+1)
				copy(blocks, p.blocks)
				next = append(next, sccPath{blocks: append(blocks, o.target), bindings: nb, exit: ir.NoBlock})
			}
		}
		// the first outcome is explored first
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	return orders
}

func containsBlock(blocks []int, b int) bool {
	for _, x := range blocks {
		if x == b {
			return true
		}
	}
	return false
}
