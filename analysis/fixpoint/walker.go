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
	"context"

	"github.com/awslabs/ar-go-droptrack/analysis/alias"
	"github.com/awslabs/ar-go-droptrack/analysis/cfg"
	"github.com/awslabs/ar-go-droptrack/analysis/config"
	"github.com/awslabs/ar-go-droptrack/analysis/ir"
)

// Mode is the way loops are replayed
type Mode int

const (
	// Ordered replays every statically plausible iteration order of a loop
	Ordered Mode = iota
	// Batch replays all the blocks of a loop once, in increasing order after the entry
	Batch
)

// Options are the parameters of the walker
type Options struct {
	// FieldDepth bounds the depth of the projections of the location store
	FieldDepth int
	// VisitCeiling is the maximum number of blocks visited in a body
	VisitCeiling int
	Mode         Mode
	// Logger may be nil
	Logger *config.LogGroup
}

// OptionsFromConfig returns the walker options set in the config
func OptionsFromConfig(c *config.Config, logger *config.LogGroup) Options {
	mode := Ordered
	if c.BatchSccOrder() {
		mode = Batch
	}
	return Options{FieldDepth: c.FieldDepth, VisitCeiling: c.VisitCeiling, Mode: mode, Logger: logger}
}

// Result summarizes a run of the walker
type Result struct {
	// Visits is the number of blocks visited
	Visits int
	// OverBudget is true when the visit ceiling was exceeded; the body was only partially explored
	OverBudget bool
	// Leaves is the number of paths explored to their end
	Leaves int
	// Orders is the number of loop iteration orders replayed
	Orders int
}

// Walker explores the paths of one body. A walker is used for a single run.
type Walker struct {
	ctx      context.Context
	graph    *cfg.Graph
	body     *ir.Body
	layout   ir.Layout
	provider SummaryProvider
	hooks    Hooks
	opts     Options
	// assigned are the discriminants invalidated by each block
	assigned [][]Discriminant

	state      *State
	visits     int
	overBudget bool
	leaves     int
	orders     int
}

// New returns a walker for the body of graph. A nil provider treats every callee as opaque, and nil hooks do
// nothing.
func New(graph *cfg.Graph, layout ir.Layout, provider SummaryProvider, hooks Hooks, opts Options) *Walker {
	if provider == nil {
		provider = NoSummaries{}
	}
	if hooks == nil {
		hooks = NopHooks{}
	}
	if layout == nil {
		layout = ir.StaticLayout{}
	}
	if opts.FieldDepth <= 0 {
		opts.FieldDepth = config.DefaultFieldDepth
	}
	if opts.VisitCeiling <= 0 {
		opts.VisitCeiling = config.DefaultVisitCeiling
	}
	body := graph.Body()
	w := &Walker{
		graph:    graph,
		body:     body,
		layout:   layout,
		provider: provider,
		hooks:    hooks,
		opts:     opts,
		assigned: make([][]Discriminant, len(body.Blocks)),
	}
	for i, block := range body.Blocks {
		for _, s := range block.Statements {
			if s.Kind == ir.Assign {
				w.assigned[i] = append(w.assigned[i], Discriminant(s.Place.Local))
			}
		}
		if block.Terminator.Kind == ir.Call {
			w.assigned[i] = append(w.assigned[i], Discriminant(block.Terminator.Dest.Local))
		}
	}
	return w
}

// Run explores the body from its entry block. The parameters are live at entry, born in the caller. The context is
// passed to the summary provider.
func (w *Walker) Run(ctx context.Context) Result {
	w.ctx = ctx
	w.state = NewState(w.body, w.layout, w.opts.FieldDepth)
	entry := w.graph.Rep(0)
	for l := 1; l <= w.body.ArgCount; l++ {
		w.state.Store.Rebirth(w.state.Store.Root(ir.Local(l)), alias.CallerBirth)
	}
	w.visit(entry)
	if w.overBudget {
		w.debugf("%s: visit ceiling %d exceeded, partial exploration", w.body.Name(), w.opts.VisitCeiling)
	}
	return Result{Visits: w.visits, OverBudget: w.overBudget, Leaves: w.leaves, Orders: w.orders}
}

// State returns the current state of the walker. Hooks receive it as argument.
func (w *Walker) State() *State {
	return w.state
}

func (w *Walker) debugf(format string, args ...any) {
	if w.opts.Logger != nil {
		w.opts.Logger.Debugf(format, args...)
	}
}

func (w *Walker) tracef(format string, args ...any) {
	if w.opts.Logger != nil {
		w.opts.Logger.Tracef(format, args...)
	}
}

// step counts one block visit and returns false when the visit ceiling has been exceeded
func (w *Walker) step() bool {
	if w.overBudget {
		return false
	}
	w.visits++
	if w.visits > w.opts.VisitCeiling {
		w.overBudget = true
		return false
	}
	return true
}

// visit explores the collapsed block represented by rep
func (w *Walker) visit(rep int) {
	if !w.step() {
		return
	}
	if scc := w.graph.SCC(rep); scc != nil {
		w.visitSCC(scc)
		return
	}
	block := w.body.Blocks[rep]
	w.applyBlock(block, rep)

	t := &block.Terminator
	d, hasD, outs := outcomesOf(t)
	// edges back to the block itself are not followed
	kept := outs[:0:0]
	for _, o := range outs {
		if w.graph.Rep(o.target) != rep {
			kept = append(kept, o)
		}
	}
	outs = kept
	if hasD {
		if v, known := w.state.Constants[d]; known {
			outs = selectOutcome(outs, v)
		}
	}
	switch len(outs) {
	case 0:
		w.leaf(t.Pos)
	case 1:
		if hasD && outs[0].hasValue {
			w.state.Constants[d] = outs[0].value
		}
		w.visit(w.graph.Rep(outs[0].target))
	default:
		for _, o := range outs {
			if w.overBudget {
				return
			}
			saved := w.state
			w.state = saved.Fork()
			if hasD && o.hasValue {
				w.state.Constants[d] = o.value
			}
			w.tracef("%s: bb%d -> bb%d", w.body.Name(), rep, o.target)
			w.visit(w.graph.Rep(o.target))
			w.state = saved
		}
	}
}

func (w *Walker) leaf(loc ir.Location) {
	w.leaves++
	w.hooks.OnLeaf(w.state, loc)
}

// fanOut continues the exploration with each of the targets, forking the state when there are several
func (w *Walker) fanOut(targets []int, loc ir.Location) {
	switch len(targets) {
	case 0:
		w.leaf(loc)
	case 1:
		w.visit(w.graph.Rep(targets[0]))
	default:
		for _, target := range targets {
			if w.overBudget {
				return
			}
			saved := w.state
			w.state = saved.Fork()
			w.visit(w.graph.Rep(target))
			w.state = saved
		}
	}
}

// applyBlock applies the effects of the statements and of the terminator of the block. Nodes assigned in the block
// are reborn at rep.
func (w *Walker) applyBlock(block *ir.BasicBlock, rep int) {
	for i := range block.Statements {
		w.applyStatement(&block.Statements[i], rep)
	}
	t := &block.Terminator
	switch t.Kind {
	case ir.SwitchInt:
		if t.Discr.HasPlace() {
			w.hooks.OnUse(w.state, w.state.Store.Resolve(t.Discr.Place), t.Pos)
		}
	case ir.Drop:
		w.hooks.OnRelease(w.state, t.Place, t.Pos)
	case ir.Call:
		w.applyCall(t, rep)
	}
}

func (w *Walker) applyStatement(s *ir.Statement, rep int) {
	st := w.state
	switch s.Kind {
	case ir.Assign:
		var rhs []int
		for _, op := range s.Rvalue.Operands {
			if op.HasPlace() {
				n := st.Store.Resolve(op.Place)
				w.hooks.OnUse(st, n, s.Pos)
				rhs = append(rhs, n)
			}
		}
		lhs := w.assign(s.Place, rep)
		if s.Rvalue.Kind != ir.Opaque {
			for _, n := range rhs {
				st.Store.Union(lhs, n)
			}
		}
		w.hooks.OnAssign(st, lhs, s.Pos)
	case ir.Release:
		w.hooks.OnRelease(st, s.Place, s.Pos)
	case ir.CopyIntrinsic:
		dst := st.Store.Resolve(s.Place)
		w.hooks.OnUse(st, dst, s.Pos)
		if s.Source.HasPlace() {
			src := st.Store.Resolve(s.Source.Place)
			w.hooks.OnUse(st, src, s.Pos)
			st.Store.Union(st.Store.Child(dst, ir.DerefField), st.Store.Child(src, ir.DerefField))
		}
	}
}

// assign returns the node written by an assignment to p, reborn at rep. A local that is not a parameter gets a
// fresh node when it is assigned as a whole. The outcome recorded for p's local is forgotten.
func (w *Walker) assign(p ir.Place, rep int) int {
	st := w.state
	delete(st.Constants, Discriminant(p.Local))
	var n int
	if len(p.Projection) == 0 && (p.Local == ir.ReturnLocal || int(p.Local) > w.body.ArgCount) {
		n = st.Store.Reset(p.Local)
	} else {
		n = st.Store.Resolve(p)
	}
	st.Store.Rebirth(n, rep)
	return n
}

func (w *Walker) applyCall(t *ir.Terminator, rep int) {
	st := w.state
	args := make([]int, len(t.Args))
	for i, a := range t.Args {
		args[i] = -1
		if a.HasPlace() {
			args[i] = st.Store.Resolve(a.Place)
			w.hooks.OnUse(st, args[i], t.Pos)
		}
	}
	dest := w.assign(t.Dest, rep)
	if w.hooks.OnCall(st, t, args, dest) {
		return
	}
	if sum, ok := w.provider.Summary(w.ctx, t.Func); ok {
		for _, fact := range sum.Facts {
			if !fact.LeftMayDrop && !fact.RightMayDrop {
				continue
			}
			l, r := w.factNode(fact.Left.Index, fact.Left.Fields, args, dest),
				w.factNode(fact.Right.Index, fact.Right.Fields, args, dest)
			if l >= 0 && r >= 0 {
				st.Store.Union(l, r)
			}
		}
		return
	}
	w.opaqueCall(args, dest)
}

// factNode returns the node of the caller designated by the field path of a fact, or -1
func (w *Walker) factNode(index int, fields []int, args []int, dest int) int {
	base := dest
	if index > 0 {
		if index > len(args) || args[index-1] < 0 {
			return -1
		}
		base = args[index-1]
	}
	return w.state.Store.Project(base, fields)
}

// opaqueCall aliases the destination of a call to a function without summary with its argument, when exactly one
// argument may need a drop and the destination may need a drop.
func (w *Walker) opaqueCall(args []int, dest int) {
	s := w.state.Store
	if !s.Node(dest).MayDrop {
		return
	}
	candidate := -1
	for _, a := range args {
		if a < 0 || !s.Node(a).MayDrop || s.Same(a, dest) {
			continue
		}
		if candidate >= 0 && !s.Same(candidate, a) {
			return
		}
		candidate = a
	}
	if candidate >= 0 {
		s.Union(dest, candidate)
	}
}

// Visits returns the number of blocks visited so far
func (w *Walker) Visits() int {
	return w.visits
}
