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

// Package goir lowers Go programs in SSA form to the ir language analyzed by the fixpoint engines.
//
// Loading follows the usual go/packages and go/ssa pipeline. The layout of Go types is computed from the set of
// resource types: named types that are the receiver of one of the release functions of the configuration.
package goir

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"os"
	"sort"
	"strings"

	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// PkgLoadMode is the default loading mode. Syntax is needed for directives.
const PkgLoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedTypesSizes |
	packages.NeedModule

// LoadedProgram is a loaded and built SSA program.
type LoadedProgram struct {
	// Program is the SSA version of the program.
	Program *ssa.Program
	// Packages are the packages matched by the load patterns.
	Packages []*ssa.Package
	// Directives maps source positions to the directive comments found there.
	Directives Directives
}

// LoadProgram loads a program on platform "platform" using the buildmode provided and the args.
// To understand how to specify the args, look at the documentation of packages.Load.
func LoadProgram(config *packages.Config,
	platform string,
	buildmode ssa.BuilderMode,
	args []string) (LoadedProgram, error) {

	if config == nil {
		config = &packages.Config{
			Mode:  PkgLoadMode,
			Tests: false,
			Fset:  token.NewFileSet(),
		}
	}

	if platform != "" {
		config.Env = append(os.Environ(), fmt.Sprintf("GOOS=%s", platform))
	}

	initialPackages, err := packages.Load(config, args...)
	if err != nil {
		return LoadedProgram{}, fmt.Errorf("failed to load packages: %v", err)
	}

	if len(initialPackages) == 0 {
		return LoadedProgram{}, fmt.Errorf("no packages")
	}

	if packages.PrintErrors(initialPackages) > 0 {
		return LoadedProgram{}, fmt.Errorf("errors found, exiting")
	}

	program, ssaPackages := ssautil.AllPackages(initialPackages, buildmode)

	for i, p := range ssaPackages {
		if p == nil {
			return LoadedProgram{}, fmt.Errorf("cannot build SSA for package %s", initialPackages[i])
		}
	}

	program.Build()

	return LoadedProgram{
		Program:    program,
		Packages:   ssaPackages,
		Directives: findDirectives(initialPackages, program.Fset),
	}, nil
}

// Functions returns the functions with a body defined in the packages, including anonymous functions, sorted by
// name.
func Functions(pkgs []*ssa.Package) []*ssa.Function {
	var res []*ssa.Function
	seen := map[*ssa.Function]bool{}
	var add func(f *ssa.Function)
	add = func(f *ssa.Function) {
		if f == nil || seen[f] || len(f.Blocks) == 0 {
			return
		}
		seen[f] = true
		res = append(res, f)
		for _, anon := range f.AnonFuncs {
			add(anon)
		}
	}
	for _, pkg := range pkgs {
		for _, member := range pkg.Members {
			switch m := member.(type) {
			case *ssa.Function:
				add(m)
			case *ssa.Type:
				mset := pkg.Prog.MethodSets.MethodSet(types.NewPointer(m.Type()))
				for i := 0; i < mset.Len(); i++ {
					if fn := pkg.Prog.MethodValue(mset.At(i)); fn != nil && fn.Package() == pkg {
						add(fn)
					}
				}
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].String() < res[j].String() })
	return res
}

// Directives maps the positions of directive comments to their kind.
type Directives map[DirectivePos]DirectiveKind

// DirectivePos represents the position of a directive within a program.
type DirectivePos struct {
	Filename string
	Line     int
}

// DirectiveKind represents the kind of directive.
type DirectiveKind string

const (
	// DirectiveIgnore suppresses the findings reported on the line of the directive or the line after.
	DirectiveIgnore DirectiveKind = "ignore"
)

const directivePrefix = "droptrack:"

// parseDirective returns the kind of the directive in the comment c, and true if c is a valid directive comment.
func parseDirective(c *ast.Comment) (DirectiveKind, bool) {
	_, after, found := strings.Cut(c.Text, directivePrefix)
	if !found {
		return "", false
	}
	switch k := DirectiveKind(strings.TrimSpace(after)); k {
	case DirectiveIgnore:
		return k, true
	default:
		return "", false
	}
}

func findDirectives(pkgs []*packages.Package, fset *token.FileSet) Directives {
	res := make(Directives)
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, file := range pkg.Syntax {
			for _, group := range file.Comments {
				for _, c := range group.List {
					pos := fset.Position(c.Pos())
					if !pos.IsValid() {
						continue
					}
					if k, ok := parseDirective(c); ok {
						res[DirectivePos{Filename: pos.Filename, Line: pos.Line}] = k
					}
				}
			}
		}
	})
	return res
}

// Ignores returns true if an ignore directive is on the line of loc or on the line before.
func (d Directives) Ignores(loc ir.Location) bool {
	for _, line := range []int{loc.Line, loc.Line - 1} {
		if d[DirectivePos{Filename: loc.File, Line: line}] == DirectiveIgnore {
			return true
		}
	}
	return false
}
