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

// Package fixpoint implements the path-sensitive walker shared by the alias and liveness analyses.
//
// The walker visits the collapsed control-flow graph of a body depth-first from the entry block. At each branch it
// forks the analysis state, records the outcome of the branch in the forked state and explores the successor, then
// restores the state before the next outcome. Branches on a condition whose outcome is already recorded follow a
// single successor. Loops are replayed along each of their statically plausible iteration orders. A visit ceiling
// bounds the exploration of a body.
//
// The effects of statements on the abstract location store are the same for all analyses; what an analysis does
// with uses, assignments, releases and path ends is given by its Hooks.
package fixpoint

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/awslabs/ar-go-droptrack/analysis/alias"
	"github.com/awslabs/ar-go-droptrack/analysis/ir"
)

// Otherwise is the value recorded for a discriminant when the default outcome of a switch is taken
const Otherwise uint64 = math.MaxUint64

// Discriminant identifies the condition of a branch: the local read by the switch operand. Only switches on a
// whole local have a discriminant; a switch on a projection of a local is explored without recording its outcome.
type Discriminant ir.Local

// State is the analysis state of one path: the location store and the outcomes of the branches taken so far.
type State struct {
	Store     *alias.Store
	Constants map[Discriminant]uint64
}

// NewState returns the initial state of the body
func NewState(body *ir.Body, layout ir.Layout, fieldDepth int) *State {
	return &State{
		Store:     alias.NewStore(body, layout, fieldDepth),
		Constants: map[Discriminant]uint64{},
	}
}

// Fork returns a deep copy of the state
func (s *State) Fork() *State {
	c := make(map[Discriminant]uint64, len(s.Constants))
	for d, v := range s.Constants {
		c[d] = v
	}
	return &State{Store: s.Store.Clone(), Constants: c}
}

// Fingerprint returns a canonical text representation of the state
func (s *State) Fingerprint() string {
	ds := make([]int, 0, len(s.Constants))
	for d := range s.Constants {
		ds = append(ds, int(d))
	}
	sort.Ints(ds)
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = fmt.Sprintf("_%d=%d", d, s.Constants[Discriminant(d)])
	}
	return fmt.Sprintf("constants {%s}\n%s", strings.Join(parts, ","), s.Store.Fingerprint())
}

// discriminantOf returns the discriminant of the operand, if it reads a whole local
func discriminantOf(op ir.Operand) (Discriminant, bool) {
	if !op.HasPlace() || len(op.Place.Projection) > 0 {
		return 0, false
	}
	return Discriminant(op.Place.Local), true
}
