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
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/awslabs/ar-go-droptrack/analysis/config"
	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"github.com/awslabs/ar-go-droptrack/analysis/safedrop"
	"github.com/awslabs/ar-go-droptrack/analysis/summaries"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	file  = ir.Resource("File")
	pfile = ir.PointerTo(file)
)

func newBuilder(fn ir.FuncID, blocks int, ret ir.Type, params ...ir.Type) *ir.Builder {
	b := ir.NewBuilder(fn, ret, params...)
	for i := 0; i < blocks; i++ {
		b.Block()
	}
	return b
}

// caller calls fn with one argument and returns
func caller(name ir.FuncID, fn ir.FuncID) *ir.Body {
	b := newBuilder(name, 2, ir.Unit, pfile)
	r := b.Local("r", pfile)
	b.In(0).Call(fn, ir.LocalPlace(r), 1, ir.CopyOf(ir.LocalPlace(1)))
	b.In(1).Return()
	return b.Body()
}

func TestCallGraphOrder(t *testing.T) {
	prog := ir.NewProgram(nil)
	prog.Add(caller("a", "b"))
	prog.Add(caller("b", "c"))
	prog.Add(caller("c", "ext"))
	prog.Add(caller("d", "d"))
	prog.Add(caller("x", "y"))
	prog.Add(caller("y", "x"))
	cg := NewCallGraph(prog)

	assert.Equal(t, []ir.FuncID{"a", "b", "c", "d", "x", "y"}, cg.Functions())
	assert.Equal(t, []ir.FuncID{"b"}, cg.Callees("a"))
	assert.Equal(t, []ir.FuncID{"a"}, cg.Callers("b"))
	assert.Empty(t, cg.Callees("c"))
	assert.Empty(t, cg.Callees("d"))
	assert.Nil(t, cg.Callees("ext"))

	position := map[ir.FuncID]int{}
	for i, id := range cg.Order() {
		position[id] = i
	}
	require.Len(t, position, 6)
	assert.Less(t, position["c"], position["b"])
	assert.Less(t, position["b"], position["a"])

	found := false
	for _, component := range cg.BottomUp() {
		if len(component) == 2 {
			assert.Equal(t, []ir.FuncID{"x", "y"}, component)
			found = true
		}
	}
	assert.True(t, found)
}

// testProgram contains:
//   - main.wrap(p, q), returning p
//   - main.bad(p, q), using the result of wrap(p, q) after releasing p
//   - main.twice(p) and other.twice(p), releasing p twice
//   - main.broken, an invalid body
func testProgram() *ir.Program {
	prog := ir.NewProgram(nil)

	wrap := newBuilder("main.wrap", 1, pfile, pfile, pfile)
	wrap.In(0).Assign(ir.LocalPlace(0), ir.CopyOf(ir.LocalPlace(1))).Return()
	prog.Add(wrap.Body())

	bad := newBuilder("main.bad", 3, ir.Unit, pfile, pfile)
	r := bad.Local("r", pfile)
	c := bad.Local("c", pfile)
	bad.In(0).Call("main.wrap", ir.LocalPlace(r), 1, ir.CopyOf(ir.LocalPlace(1)), ir.CopyOf(ir.LocalPlace(2)))
	bad.In(1).At(10).Drop(ir.LocalPlace(1), 2)
	bad.In(2).At(20).Assign(ir.LocalPlace(c), ir.CopyOf(ir.LocalPlace(r))).Return()
	prog.Add(bad.Body())

	for _, name := range []ir.FuncID{"main.twice", "other.twice"} {
		twice := newBuilder(name, 3, ir.Unit, pfile)
		twice.In(0).At(30).Drop(ir.LocalPlace(1), 1)
		twice.In(1).At(40).Drop(ir.LocalPlace(1), 2)
		twice.In(2).Return()
		prog.Add(twice.Body())
	}

	broken := newBuilder("main.broken", 1, ir.Unit)
	broken.In(0).Goto(5)
	prog.Add(broken.Body())
	return prog
}

func testConfig() *config.Config {
	c := config.NewDefault()
	c.PkgFilter = "main."
	c.Parallelism = 4
	c.LogLevel = int(config.ErrLevel)
	return c
}

func newDriver(t *testing.T, c *config.Config) *Driver {
	d, err := New(testProgram(), c, nil)
	require.NoError(t, err)
	return d
}

func TestCheck(t *testing.T) {
	d := newDriver(t, testConfig())
	assert.Equal(t, []ir.FuncID{"main.broken"}, d.Skipped())
	assert.Equal(t, []ir.FuncID{"main.bad", "main.twice", "main.wrap"}, d.Targets())

	sink := &Collector{}
	report, err := d.Check(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Findings)
	assert.False(t, report.Truncated)
	assert.Empty(t, report.OverBudget)
	assert.Empty(t, sink.Partial)

	require.Len(t, sink.Findings, 2)
	assert.Equal(t, safedrop.Finding{
		Kind:   safedrop.UseAfterFree,
		Func:   "main.bad",
		At:     ir.Location{File: "main.bad", Line: 20},
		DeadAt: ir.Location{File: "main.bad", Line: 10},
	}, sink.Findings[0])
	assert.Equal(t, safedrop.DoubleFree, sink.Findings[1].Kind)
	assert.Equal(t, ir.FuncID("main.twice"), sink.Findings[1].Func)

	// the summary of wrap has been computed
	sums := map[ir.FuncID]string{}
	for _, s := range d.Summaries() {
		sums[s.Func] = s.String()
	}
	assert.Equal(t, "main.wrap: {ret ~ arg1}", sums["main.wrap"])
	assert.NotContains(t, sums, ir.FuncID("main.broken"))
}

func TestCheckMaxAlarms(t *testing.T) {
	c := testConfig()
	c.MaxAlarms = 1
	sink := &Collector{}
	report, err := newDriver(t, c).Check(context.Background(), sink)
	require.NoError(t, err)
	assert.True(t, report.Truncated)
	assert.Equal(t, 1, report.Findings)
	assert.Len(t, sink.Findings, 1)
}

func TestCheckIgnore(t *testing.T) {
	d := newDriver(t, testConfig())
	d.Ignore = func(loc ir.Location) bool { return loc.File == "main.twice" && loc.Line == 40 }
	sink := &Collector{}
	_, err := d.Check(context.Background(), sink)
	require.NoError(t, err)
	require.Len(t, sink.Findings, 1)
	assert.Equal(t, safedrop.UseAfterFree, sink.Findings[0].Kind)
}

func TestCheckOverBudget(t *testing.T) {
	c := testConfig()
	c.VisitCeiling = 2
	sink := &Collector{}
	report, err := newDriver(t, c).Check(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, []ir.FuncID{"main.bad", "main.twice"}, report.OverBudget)
	assert.Equal(t, 0, report.Findings)
	assert.Equal(t, 1, report.Suppressed)
	assert.Len(t, sink.Partial, 2)
}

func TestCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newDriver(t, testConfig()).Check(ctx, &Collector{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummariesDatabase(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "db.yaml")
	require.NoError(t, os.WriteFile(db, []byte(`
- func: ext.Wrap
  facts:
    - left: {index: 0}
      right: {index: 2}
      left-may-drop: true
      right-may-drop: true
`), 0600))
	configFile := filepath.Join(dir, "config.yaml")
	contents := "options:\n  summaries-db: db.yaml\n  report-summaries: true\n  reports-dir: " +
		filepath.Join(dir, "reports") + "\n"
	c, err := config.Parse(configFile, []byte(contents))
	require.NoError(t, err)

	prog := ir.NewProgram(nil)
	b := newBuilder("main.lib", 4, ir.Unit, pfile, pfile)
	r := b.Local("r", pfile)
	b.In(0).Call("ext.Wrap", ir.LocalPlace(r), 1, ir.CopyOf(ir.LocalPlace(1)), ir.CopyOf(ir.LocalPlace(2)))
	b.In(1).Drop(ir.LocalPlace(2), 2)
	b.In(2).Drop(ir.LocalPlace(r), 3)
	b.In(3).Return()
	prog.Add(b.Body())

	d, err := New(prog, c, nil)
	require.NoError(t, err)
	sink := &Collector{}
	_, err = d.Check(context.Background(), sink)
	require.NoError(t, err)
	require.Len(t, sink.Findings, 1)
	assert.Equal(t, safedrop.DoubleFree, sink.Findings[0].Kind)

	written, err := summaries.LoadFile(c.SummariesFile())
	require.NoError(t, err)
	require.Len(t, written, 1)
	assert.Equal(t, ir.FuncID("main.lib"), written[0].Func)
}

func TestMissingSummariesDatabase(t *testing.T) {
	c := testConfig()
	c.SummariesDB = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(testProgram(), c, nil)
	assert.Error(t, err)
}
