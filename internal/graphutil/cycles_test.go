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

package graphutil_test

import (
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-droptrack/internal/funcutil"
	"github.com/awslabs/ar-go-droptrack/internal/graphutil"
	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
)

func fromMap(m map[int][]int, n int) graphutil.IGraph {
	return graphutil.NewIGraph(n, func(i int) []int { return m[i] })
}

func TestFindAllElementaryCycles(t *testing.T) {
	g := fromMap(map[int][]int{
		0: {1},
		1: {2, 4},
		2: {1, 3},
		3: {3},
		4: {0},
	}, 5)
	stats := graph.Check(g)
	t.Logf("Stats:\n\tsize: %d\n\tmulti: %d\n\tloops: %d\n\tisolated: %d",
		stats.Size, stats.Multi, stats.Loops, stats.Isolated)

	cycles := graphutil.FindAllElementaryCycles(g, 0)
	expected := []string{"0140", "121", "33"}

	results := make([]string, len(cycles))
	for i, cycle := range cycles {
		results[i] = strings.Join(
			funcutil.Map(cycle, func(x int64) string { return strconv.Itoa(int(x)) }),
			"")
	}
	sort.Strings(results)
	if !slices.Equal(results, expected) {
		for i, s := range results {
			t.Logf("Cycle %d: %s", i, s)
		}
		t.Fatalf("Cycles not as expected: want %v", expected)
	}
}

func TestFindAllElementaryCyclesLimit(t *testing.T) {
	// complete graph on 5 nodes has many elementary cycles
	m := map[int][]int{}
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			if i != j {
				m[i] = append(m[i], j)
			}
		}
	}
	cycles := graphutil.FindAllElementaryCycles(fromMap(m, 5), 7)
	if len(cycles) != 7 {
		t.Fatalf("expected cycle enumeration to stop at 7, got %d", len(cycles))
	}
}

func TestReachable(t *testing.T) {
	g := fromMap(map[int][]int{0: {1}, 1: {0}, 2: {1}, 3: {}}, 4)
	r := graphutil.Reachable(g, 0)
	if !slices.Equal(r, []bool{true, true, false, false}) {
		t.Errorf("unexpected reachable set %v", r)
	}
}
