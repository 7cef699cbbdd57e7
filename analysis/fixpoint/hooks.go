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

	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"github.com/awslabs/ar-go-droptrack/analysis/summaries"
)

// Hooks is the strategy of an analysis built on the walker. The walker applies the effects of each statement on the
// store, and calls the hooks at the points where the analyses differ.
type Hooks interface {
	// OnUse is called when the node is read, before the effect of the instruction reading it
	OnUse(st *State, node int, loc ir.Location)
	// OnAssign is called after the node has been assigned and reborn
	OnAssign(st *State, node int, loc ir.Location)
	// OnRelease is called on explicit releases of the place
	OnRelease(st *State, place ir.Place, loc ir.Location)
	// OnCall is called after the arguments have been read and the destination reborn. If it returns true, the
	// walker does not apply the summary of the callee.
	OnCall(st *State, call *ir.Terminator, args []int, dest int) bool
	// OnLeaf is called at the end of every explored path
	OnLeaf(st *State, loc ir.Location)
}

// NopHooks implements Hooks and does nothing. Embed it to implement only some of the hooks.
type NopHooks struct{}

// OnUse does nothing
func (NopHooks) OnUse(*State, int, ir.Location) {}

// OnAssign does nothing
func (NopHooks) OnAssign(*State, int, ir.Location) {}

// OnRelease does nothing
func (NopHooks) OnRelease(*State, ir.Place, ir.Location) {}

// OnCall does nothing and lets the walker apply the summary of the callee
func (NopHooks) OnCall(*State, *ir.Terminator, []int, int) bool { return false }

// OnLeaf does nothing
func (NopHooks) OnLeaf(*State, ir.Location) {}

// SummaryProvider gives the summaries of callees. It returns false when the callee is opaque.
// A *summaries.Cache is a SummaryProvider.
type SummaryProvider interface {
	Summary(ctx context.Context, id ir.FuncID) (summaries.Summary, bool)
}

// NoSummaries is a SummaryProvider for which every callee is opaque
type NoSummaries struct{}

// Summary always returns false
func (NoSummaries) Summary(context.Context, ir.FuncID) (summaries.Summary, bool) {
	return summaries.Summary{}, false
}
