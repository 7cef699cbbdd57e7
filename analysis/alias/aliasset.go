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

package alias

// AliasSet is a union-find partition over node indices. The representative of a class is always its smallest
// index, so representatives are deterministic and do not depend on the order of unions.
type AliasSet struct {
	parent []int
}

// Add adds a new singleton class and returns its index
func (a *AliasSet) Add() int {
	a.parent = append(a.parent, len(a.parent))
	return len(a.parent) - 1
}

// Len returns the number of elements in the partition
func (a *AliasSet) Len() int {
	return len(a.parent)
}

// Find returns the representative of the class of i, compressing the path from i to the representative.
func (a *AliasSet) Find(i int) int {
	root := i
	for a.parent[root] != root {
		root = a.parent[root]
	}
	for a.parent[i] != root {
		next := a.parent[i]
		a.parent[i] = root
		i = next
	}
	return root
}

// Union merges the classes of i and j and returns the representative of the merged class and the representative
// that was merged into it. If i and j are already in the same class, both returned values are equal.
func (a *AliasSet) Union(i, j int) (root int, merged int) {
	ri, rj := a.Find(i), a.Find(j)
	if ri == rj {
		return ri, ri
	}
	if rj < ri {
		ri, rj = rj, ri
	}
	a.parent[rj] = ri
	return ri, rj
}

// Same returns true if i and j are in the same class
func (a *AliasSet) Same(i, j int) bool {
	return a.Find(i) == a.Find(j)
}

func (a *AliasSet) clone() AliasSet {
	p := make([]int, len(a.parent))
	copy(p, a.parent)
	return AliasSet{parent: p}
}
