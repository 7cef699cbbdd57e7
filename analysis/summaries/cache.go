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

package summaries

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"github.com/awslabs/ar-go-droptrack/internal/funcutil"
	"golang.org/x/sync/singleflight"
)

// ComputeFunc computes the summary of a function that has a body. The context carries the chain of summaries
// being computed; it must be passed to the cache when the computation needs the summaries of callees.
type ComputeFunc func(ctx context.Context, id ir.FuncID) (Summary, error)

// Cache memoizes the summaries of the functions of a program. It is safe for concurrent use: concurrent requests
// for the summary of the same function are collapsed into one computation, and the requests block until it
// completes.
//
// A request for a summary that is already being computed by the same chain of requests (a recursive call) is
// answered with an empty summary. So is a request that would wait, through the computations of other chains, for
// a computation of its own chain.
type Cache struct {
	mu        sync.RWMutex
	summaries map[ir.FuncID]Summary
	library   map[ir.FuncID]Summary
	inflight  map[ir.FuncID]*flight
	group     singleflight.Group
	compute   ComputeFunc
	hasBody   func(ir.FuncID) bool
}

// NewCache returns a cache that computes the summaries of the functions of prog with compute. The built-in
// library summaries are always used when available.
func NewCache(prog *ir.Program, compute ComputeFunc) *Cache {
	return &Cache{
		summaries: map[ir.FuncID]Summary{},
		library:   map[ir.FuncID]Summary{},
		inflight:  map[ir.FuncID]*flight{},
		compute:   compute,
		hasBody:   prog.HasBody,
	}
}

// AddLibrary adds library summaries to the cache. They take precedence over the built-in ones and over computed
// summaries.
func (c *Cache) AddLibrary(summaries []Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range summaries {
		c.library[s.Func] = NewSummary(s.Func, s.Facts)
	}
}

// Lookup returns the summary of id if it is in the library or has already been computed. It never computes a
// summary.
func (c *Cache) Lookup(id ir.FuncID) funcutil.Optional[Summary] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.library[id]; ok {
		return funcutil.Some(s)
	}
	if s, ok := LibrarySummary(id); ok {
		return funcutil.Some(s)
	}
	if s, ok := c.summaries[id]; ok {
		return funcutil.Some(s)
	}
	return funcutil.None[Summary]()
}

// Put sets the summary of id
func (c *Cache) Put(id ir.FuncID, s Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.Func = id
	c.summaries[id] = s
}

type chainKey struct{}

// chain is the list of summaries being computed by one sequence of nested requests
type chain struct {
	id     ir.FuncID
	parent *chain
	task   *task
}

// task is a sequence of nested requests, starting from a request made outside of any computation. A task makes
// progress in its innermost computation only, which may be waiting for the computation of another task.
type task struct {
	waiting *flight
}

// flight is a computation in progress
type flight struct {
	task *task
}

// waitsFor returns true if the task u is waiting, directly or through other tasks, for a computation of the task t.
// Must be called with c.mu held.
func (c *Cache) waitsFor(u *task, t *task) bool {
	for steps := 0; u != nil && steps <= len(c.inflight); steps++ {
		if u == t {
			return true
		}
		if u.waiting == nil {
			return false
		}
		u = u.waiting.task
	}
	return false
}

func (ch *chain) contains(id ir.FuncID) bool {
	for ; ch != nil; ch = ch.parent {
		if ch.id == id {
			return true
		}
	}
	return false
}

// GetOrCompute returns the summary of id, computing it if necessary. The computed summary is memoized for the
// remainder of the run.
func (c *Cache) GetOrCompute(ctx context.Context, id ir.FuncID) (Summary, error) {
	if s := c.Lookup(id); s.IsSome() {
		return s.Value(), nil
	}
	current, _ := ctx.Value(chainKey{}).(*chain)
	if current.contains(id) {
		return Summary{Func: id}, nil
	}
	if c.compute == nil {
		return Summary{}, fmt.Errorf("no summary for %s and no function to compute it", id)
	}
	t := &task{}
	if current != nil {
		t = current.task
	}

	// the computation is registered, or joined, under the lock so that the wait-for relation between tasks is
	// always up to date
	c.mu.Lock()
	if s, ok := c.summaries[id]; ok {
		c.mu.Unlock()
		return s, nil
	}
	f, joined := c.inflight[id]
	if joined {
		if c.waitsFor(f.task, t) {
			c.mu.Unlock()
			return Summary{Func: id}, nil
		}
		t.waiting = f
	} else {
		f = &flight{task: t}
		c.inflight[id] = f
	}
	inner := context.WithValue(ctx, chainKey{}, &chain{id: id, parent: current, task: t})
	ch := c.group.DoChan(string(id), func() (any, error) {
		s, err := c.compute(inner, id)
		if err == nil {
			s = NewSummary(id, s.Facts)
			c.Put(id, s)
		}
		c.mu.Lock()
		if c.inflight[id] == f {
			delete(c.inflight, id)
		}
		c.mu.Unlock()
		return s, err
	})
	c.mu.Unlock()

	var res singleflight.Result
	done := false
	select {
	case res = <-ch:
		done = true
	case <-ctx.Done():
		res.Err = ctx.Err()
	}
	c.mu.Lock()
	if t.waiting == f {
		t.waiting = nil
	}
	// the call may have been joined to a previous computation of id that had already unregistered
	if done && !joined && c.inflight[id] == f {
		delete(c.inflight, id)
	}
	c.mu.Unlock()
	if res.Err != nil {
		return Summary{}, fmt.Errorf("while computing summary of %s: %w", id, res.Err)
	}
	return res.Val.(Summary), nil
}

// Summary returns the summary of the callee id for a call site. It returns false when the function is opaque:
// it has no body and no library summary. When the computation of the summary fails, the function gets an empty
// summary.
func (c *Cache) Summary(ctx context.Context, id ir.FuncID) (Summary, bool) {
	if s := c.Lookup(id); s.IsSome() {
		return s.Value(), true
	}
	if !c.hasBody(id) {
		return Summary{}, false
	}
	s, err := c.GetOrCompute(ctx, id)
	if err != nil {
		c.Put(id, Summary{})
		return Summary{Func: id}, true
	}
	return s, true
}

// Len returns the number of computed summaries
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.summaries)
}

// All returns the computed summaries ordered by function name
func (c *Cache) All() []Summary {
	c.mu.RLock()
	res := make([]Summary, 0, len(c.summaries))
	for _, s := range c.summaries {
		res = append(res, s)
	}
	c.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].Func < res[j].Func })
	return res
}
