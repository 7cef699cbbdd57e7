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
	"fmt"
	"io"
	"sync"

	"github.com/awslabs/ar-go-droptrack/analysis/safedrop"
	"github.com/awslabs/ar-go-droptrack/internal/formatutil"
)

// Sink receives the results of the liveness detector
type Sink interface {
	// Finding is called for every reported finding
	Finding(f safedrop.Finding)
	// OverBudget is called for every function whose exploration was partial
	OverBudget(res safedrop.Result)
}

// TextSink prints the results, one per line
type TextSink struct {
	W io.Writer
}

// Finding prints the finding with its kind in color when the output is a terminal
func (s TextSink) Finding(f safedrop.Finding) {
	fmt.Fprintf(s.W, "%s in %s\n\tat %s\n\treleased at %s\n", formatutil.Red(f.Kind), formatutil.Bold(f.Func),
		f.At, f.DeadAt)
}

// OverBudget prints a notice
func (s TextSink) OverBudget(res safedrop.Result) {
	fmt.Fprintf(s.W, "%s %s: partial result after %d visits\n", formatutil.Yellow("over-budget"), res.Func,
		res.Visits)
}

// Collector stores the results. It is safe for concurrent use.
type Collector struct {
	mu       sync.Mutex
	Findings []safedrop.Finding
	Partial  []safedrop.Result
}

// Finding appends f to the findings
func (c *Collector) Finding(f safedrop.Finding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Findings = append(c.Findings, f)
}

// OverBudget appends res to the partial results
func (c *Collector) OverBudget(res safedrop.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Partial = append(c.Partial, res)
}
