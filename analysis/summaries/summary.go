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

// Package summaries defines the function summaries replayed at call sites by the fixpoint walker, a thread-safe
// cache of summaries, and a database of summaries for library functions whose body is not analyzed.
//
// A summary is a list of alias facts between fields of the parameters and of the return value of a function: a
// fact states that, when the function returns, the two field paths may denote the same storage.
package summaries

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-go-droptrack/analysis/ir"
)

// FieldPath designates a field of a parameter or of the return value of a function. Index 0 is the return value,
// index i >= 1 is the i-th parameter. Fields is the sequence of child indices from there (ir.DerefField for a
// dereference).
type FieldPath struct {
	Index  int   `yaml:"index"`
	Fields []int `yaml:"fields,flow,omitempty"`
}

// Ret returns the path to the return value followed by fields
func Ret(fields ...int) FieldPath {
	return FieldPath{Index: 0, Fields: fields}
}

// Arg returns the path to the i-th parameter (starting at 1) followed by fields
func Arg(i int, fields ...int) FieldPath {
	return FieldPath{Index: i, Fields: fields}
}

func (p FieldPath) String() string {
	var sb strings.Builder
	if p.Index == 0 {
		sb.WriteString("ret")
	} else {
		fmt.Fprintf(&sb, "arg%d", p.Index)
	}
	for _, f := range p.Fields {
		if f == ir.DerefField {
			sb.WriteString(".*")
		} else {
			fmt.Fprintf(&sb, ".%d", f)
		}
	}
	return sb.String()
}

// compare orders paths by index, then lexicographically by fields
func (p FieldPath) compare(q FieldPath) int {
	if p.Index != q.Index {
		return p.Index - q.Index
	}
	for i := 0; i < len(p.Fields) && i < len(q.Fields); i++ {
		if p.Fields[i] != q.Fields[i] {
			return p.Fields[i] - q.Fields[i]
		}
	}
	return len(p.Fields) - len(q.Fields)
}

// AliasFact states that two field paths may alias when the function returns. The droppability flags are the ones
// of the two nodes the fact was derived from.
type AliasFact struct {
	Left         FieldPath `yaml:"left"`
	Right        FieldPath `yaml:"right"`
	LeftMayDrop  bool      `yaml:"left-may-drop"`
	RightMayDrop bool      `yaml:"right-may-drop"`
}

func (f AliasFact) String() string {
	return fmt.Sprintf("%s ~ %s", f.Left, f.Right)
}

// normalize orients the fact so that Left is the smaller path
func (f AliasFact) normalize() AliasFact {
	if f.Right.compare(f.Left) < 0 {
		return AliasFact{Left: f.Right, Right: f.Left, LeftMayDrop: f.RightMayDrop, RightMayDrop: f.LeftMayDrop}
	}
	return f
}

// Summary is the list of alias facts of a function
type Summary struct {
	Func  ir.FuncID   `yaml:"func"`
	Facts []AliasFact `yaml:"facts"`
}

// NewSummary returns the summary of id with the facts in a canonical order, without duplicates and without facts
// relating a path to itself.
func NewSummary(id ir.FuncID, facts []AliasFact) Summary {
	normalized := make([]AliasFact, 0, len(facts))
	for _, f := range facts {
		f = f.normalize()
		if f.Left.compare(f.Right) == 0 {
			continue
		}
		normalized = append(normalized, f)
	}
	sort.Slice(normalized, func(i, j int) bool {
		if c := normalized[i].Left.compare(normalized[j].Left); c != 0 {
			return c < 0
		}
		return normalized[i].Right.compare(normalized[j].Right) < 0
	})
	res := normalized[:0]
	for i, f := range normalized {
		if i > 0 && f.Left.compare(res[len(res)-1].Left) == 0 && f.Right.compare(res[len(res)-1].Right) == 0 {
			last := &res[len(res)-1]
			last.LeftMayDrop = last.LeftMayDrop || f.LeftMayDrop
			last.RightMayDrop = last.RightMayDrop || f.RightMayDrop
			continue
		}
		res = append(res, f)
	}
	return Summary{Func: id, Facts: res}
}

// IsEmpty returns true when the summary has no fact
func (s Summary) IsEmpty() bool {
	return len(s.Facts) == 0
}

func (s Summary) String() string {
	facts := make([]string, len(s.Facts))
	for i, f := range s.Facts {
		facts[i] = f.String()
	}
	return fmt.Sprintf("%s: {%s}", s.Func, strings.Join(facts, ", "))
}
