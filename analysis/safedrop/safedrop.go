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

// Package safedrop detects the misuses of explicitly released values in a body: uses after a release, second
// releases and released values still reachable from the return slot or stored through a parameter when the
// function returns.
//
// The detector is an instantiation of the fixpoint walker. A release kills the alias class of the released place
// and its children; an assignment revives the class it writes to. Findings are reported per path and
// deduplicated per body. When the walker exceeds its visit ceiling, the findings of the body are suppressed.
package safedrop

import (
	"context"
	"fmt"
	"sort"

	"github.com/awslabs/ar-go-droptrack/analysis/alias"
	"github.com/awslabs/ar-go-droptrack/analysis/cfg"
	"github.com/awslabs/ar-go-droptrack/analysis/fixpoint"
	"github.com/awslabs/ar-go-droptrack/analysis/ir"
)

// Kind is the kind of a finding
type Kind int

const (
	// UseAfterFree is a read of a released value
	UseAfterFree Kind = iota
	// DoubleFree is a release of a value that was already released
	DoubleFree
	// DanglingPointer is a released value reachable from the return slot when the function returns
	DanglingPointer
)

func (k Kind) String() string {
	switch k {
	case UseAfterFree:
		return "use-after-free"
	case DoubleFree:
		return "double-free"
	case DanglingPointer:
		return "dangling-pointer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Finding is a misuse found in a function. At is where the misuse happens, DeadAt where the value was released.
type Finding struct {
	Kind   Kind
	Func   ir.FuncID
	At     ir.Location
	DeadAt ir.Location
}

func (f Finding) String() string {
	return fmt.Sprintf("%s in %s at %s (released at %s)", f.Kind, f.Func, f.At, f.DeadAt)
}

// Less orders findings by location, then kind
func (f Finding) Less(g Finding) bool {
	if f.At != g.At {
		return locationLess(f.At, g.At)
	}
	if f.Kind != g.Kind {
		return f.Kind < g.Kind
	}
	return locationLess(f.DeadAt, g.DeadAt)
}

func locationLess(a, b ir.Location) bool {
	if a.File != b.File {
		return a.File < b.File
	}
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Column < b.Column
}

// Result is the outcome of the detection on one body
type Result struct {
	Func     ir.FuncID
	Findings []Finding
	// Suppressed is the number of findings dropped because the exploration was partial
	Suppressed int
	fixpoint.Result
}

// detector implements the liveness hooks
type detector struct {
	fixpoint.NopHooks
	fn       ir.FuncID
	args     int
	findings map[Finding]bool
}

func (d *detector) report(kind Kind, at ir.Location, deadAt ir.Location) {
	d.findings[Finding{Kind: kind, Func: d.fn, At: at, DeadAt: deadAt}] = true
}

// OnUse reports the reads of dead nodes
func (d *detector) OnUse(st *fixpoint.State, node int, loc ir.Location) {
	if n := st.Store.Node(node); n.Dead {
		d.report(UseAfterFree, loc, n.DeadAt)
	}
}

// OnRelease kills the released node, or reports a double free if it is already dead. Places whose type never
// needs a release are ignored.
func (d *detector) OnRelease(st *fixpoint.State, place ir.Place, loc ir.Location) {
	i := st.Store.Resolve(place)
	n := st.Store.Node(i)
	if !n.MayDrop {
		return
	}
	if n.Dead {
		d.report(DoubleFree, loc, n.DeadAt)
		return
	}
	st.Store.Kill(i, loc)
}

// OnLeaf reports the dead nodes reachable from the return slot, and the dead nodes stored in the body into storage
// reachable from a live parameter. Storage the caller passed in and the body released is not reported: releasing
// an argument is not an escape.
func (d *detector) OnLeaf(st *fixpoint.State, loc ir.Location) {
	s := st.Store
	for _, i := range s.ReachableFrom(s.Root(ir.ReturnLocal)) {
		if n := s.Node(i); n.Dead {
			d.report(DanglingPointer, loc, n.DeadAt)
		}
	}
	for l := 1; l <= d.args; l++ {
		root := s.Node(s.Root(ir.Local(l)))
		// a parameter reassigned in the body no longer designates the storage of the caller
		if root.Dead || root.Birth != alias.CallerBirth {
			continue
		}
		// only the projections of the parameter itself designate storage of the caller; a temporary aliasing it may
		// have been assigned in the body
		for _, i := range s.ReachableFrom(root.Index) {
			if n := s.Node(i); n.Dead && n.Local == ir.Local(l) && n.Birth != alias.CallerBirth {
				d.report(DanglingPointer, loc, n.DeadAt)
			}
		}
	}
}

// Analyze runs the detector on the body of graph. The findings are sorted by location.
func Analyze(ctx context.Context, graph *cfg.Graph, layout ir.Layout, provider fixpoint.SummaryProvider,
	opts fixpoint.Options) Result {
	fn := graph.Body().Func
	d := &detector{fn: fn, args: graph.Body().ArgCount, findings: map[Finding]bool{}}
	res := fixpoint.New(graph, layout, provider, d, opts).Run(ctx)
	out := Result{Func: fn, Result: res}
	if res.OverBudget {
		out.Suppressed = len(d.findings)
		return out
	}
	for f := range d.findings {
		out.Findings = append(out.Findings, f)
	}
	sort.Slice(out.Findings, func(i, j int) bool { return out.Findings[i].Less(out.Findings[j]) })
	return out
}
