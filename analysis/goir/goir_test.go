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

package goir_test

import (
	"context"
	"go/types"
	"path/filepath"
	"testing"

	"github.com/awslabs/ar-go-droptrack/analysis/config"
	"github.com/awslabs/ar-go-droptrack/analysis/driver"
	"github.com/awslabs/ar-go-droptrack/analysis/goir"
	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"github.com/awslabs/ar-go-droptrack/internal/analysistest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ssa"
)

var basicDir = filepath.Join("..", "..", "testdata", "src", "droptrack", "basic")

func loadBasic(t *testing.T) (goir.LoadedProgram, *config.Config, *ir.Program) {
	lp, cfg := analysistest.LoadTest(t, basicDir, nil)
	require.Len(t, lp.Packages, 1)
	prog, err := goir.Build(lp, cfg)
	require.NoError(t, err)
	return lp, cfg, prog
}

func function(t *testing.T, lp goir.LoadedProgram, name string) *ssa.Function {
	fn := lp.Packages[0].Func(name)
	require.NotNil(t, fn, "no function %s", name)
	return fn
}

func TestFindings(t *testing.T) {
	lp, cfg, prog := loadBasic(t)
	d, err := driver.New(prog, cfg, config.NewLogGroup(cfg))
	require.NoError(t, err)
	d.Ignore = lp.Directives.Ignores
	sink := &driver.Collector{}
	report, err := d.Check(context.Background(), sink)
	require.NoError(t, err)
	assert.Empty(t, report.OverBudget)

	expected := analysistest.GetExpectedFindings(t, basicDir)
	actual := map[analysistest.Finding]bool{}
	for _, f := range sink.Findings {
		actual[analysistest.Finding{
			Kind:   f.Kind.String(),
			At:     analysistest.PosOf(f.At),
			DeadAt: analysistest.PosOf(f.DeadAt),
		}] = true
	}
	for f := range expected {
		assert.True(t, actual[f], "missing finding %s", f)
	}
	for f := range actual {
		assert.True(t, expected[f], "unexpected finding %s", f)
	}
}

func TestSummaryOfConstructor(t *testing.T) {
	lp, cfg, prog := loadBasic(t)
	d, err := driver.New(prog, cfg, config.NewLogGroup(cfg))
	require.NoError(t, err)
	require.NoError(t, d.Summarize(context.Background()))
	wrap := goir.FuncID(function(t, lp, "wrap"))
	for _, s := range d.Summaries() {
		if s.Func == wrap {
			assert.Equal(t, string(wrap)+": {ret.*.0 ~ arg1}", s.String())
			return
		}
	}
	t.Errorf("no summary for %s", wrap)
}

func TestIgnoreDirective(t *testing.T) {
	lp, _, prog := loadBasic(t)
	body := prog.Body(goir.FuncID(function(t, lp, "ignored")))
	require.NotNil(t, body)
	var drops []ir.Location
	for _, b := range body.Blocks {
		if b.Terminator.Kind == ir.Drop {
			drops = append(drops, b.Terminator.Pos)
		}
	}
	require.Len(t, drops, 2)
	assert.False(t, lp.Directives.Ignores(drops[0]))
	assert.True(t, lp.Directives.Ignores(drops[1]))
}

func TestLowerFunction(t *testing.T) {
	lp, cfg, _ := loadBasic(t)
	fn := function(t, lp, "readAll")
	body, err := goir.LowerFunction(fn, cfg)
	require.NoError(t, err)
	require.NoError(t, body.Validate())
	assert.Equal(t, goir.FuncID(fn), body.Func)
	assert.Equal(t, 1, body.ArgCount)
	assert.Equal(t, "name", body.Locals[1].Name)
	assert.Equal(t, 2, body.Locals[0].Type.(*types.Tuple).Len())
	assert.True(t, body.Pos.IsValid())

	calls := map[ir.FuncID]bool{}
	drops, returns := 0, 0
	for _, b := range body.Blocks {
		switch b.Terminator.Kind {
		case ir.Call:
			calls[b.Terminator.Func] = true
		case ir.Drop:
			drops++
		case ir.Return:
			returns++
		}
	}
	assert.True(t, calls["os.Open"])
	assert.True(t, calls["(*os.File).Read"])
	assert.False(t, calls["(*os.File).Close"])
	// the deferred close runs on the return after the defer only
	assert.Equal(t, 1, drops)
	assert.GreaterOrEqual(t, returns, 2)
}

func TestLowerNoResults(t *testing.T) {
	lp, cfg, _ := loadBasic(t)
	body, err := goir.LowerFunction(function(t, lp, "closeAll"), cfg)
	require.NoError(t, err)
	require.NoError(t, body.Validate())
	assert.Equal(t, 0, body.Locals[0].Type.(*types.Tuple).Len())
}

func TestLayout(t *testing.T) {
	lp, cfg, _ := loadBasic(t)
	layout := goir.NewLayout(goir.FindResources(lp.Program, cfg))
	lookup := func(pkg *ssa.Package, name string) types.Type {
		obj := pkg.Pkg.Scope().Lookup(name)
		require.NotNil(t, obj, "no type %s", name)
		return obj.Type()
	}
	osPkg := lp.Program.ImportedPackage("os")
	ioPkg := lp.Program.ImportedPackage("io")
	require.NotNil(t, osPkg)
	require.NotNil(t, ioPkg)
	file := lookup(osPkg, "File")
	closer := lookup(ioPkg, "Closer")
	holder := lookup(lp.Packages[0], "holder")
	errorType := types.Universe.Lookup("error").Type()

	assert.Contains(t, layout.Resources(), file)
	assert.Contains(t, layout.Resources(), closer)
	assert.True(t, layout.NeedsDrop(file))
	assert.False(t, layout.NeedsDrop(types.NewPointer(file)))
	assert.True(t, layout.MayNeedDrop(types.NewPointer(file)))
	assert.True(t, layout.NeedsDrop(closer))
	assert.True(t, layout.MayNeedDrop(holder))
	assert.False(t, layout.NeedsDrop(holder))
	assert.True(t, layout.MayNeedDrop(types.NewSlice(types.NewPointer(holder))))
	assert.True(t, layout.MayNeedDrop(types.NewInterfaceType(nil, nil).Complete()))
	assert.False(t, layout.MayNeedDrop(errorType))
	assert.False(t, layout.MayNeedDrop(types.Typ[types.Int]))
	assert.True(t, layout.MayNeedDrop(nil))
	assert.False(t, layout.NeedsDrop(nil))

	assert.Equal(t, types.NewPointer(file).String(), layout.FieldType(holder, 0).String())
	assert.Nil(t, layout.FieldType(holder, 1))
	assert.Equal(t, holder, layout.DerefType(types.NewPointer(holder)))
	assert.Equal(t, file, layout.DerefType(types.NewSlice(file)))
	assert.Nil(t, layout.DerefType(file))
}

func TestCalleeIdentifier(t *testing.T) {
	lp, _, _ := loadBasic(t)
	var found []string
	for _, b := range function(t, lp, "closeTwiceThroughInterface").Blocks {
		for _, instr := range b.Instrs {
			call, ok := instr.(*ssa.Call)
			if !ok {
				continue
			}
			if cid, ok := goir.CalleeIdentifier(call.Common()); ok {
				found = append(found, cid.Package+"."+cid.Receiver+"."+cid.Method)
			}
		}
	}
	assert.Equal(t, []string{"os..Open", "io.Closer.Close", "os.File.Close"}, found)
}
