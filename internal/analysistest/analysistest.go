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

// Package analysistest loads the test programs of the analyses and reads the findings they expect from
// annotations in their comments.
package analysistest

import (
	"fmt"
	"go/parser"
	"go/token"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-droptrack/analysis/config"
	"github.com/awslabs/ar-go-droptrack/analysis/goir"
	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"golang.org/x/tools/go/ssa"
)

// LoadTest loads the program in the directory dir, looking for a main.go and a config.yaml. If additional files
// are specified as extraFiles, the program will be loaded using those files too.
func LoadTest(t *testing.T, dir string, extraFiles []string) (goir.LoadedProgram, *config.Config) {
	configFile := filepath.Join(dir, "config.yaml")
	config.SetGlobalConfig(configFile)
	files := []string{filepath.Join(dir, "./main.go")}
	for _, extraFile := range extraFiles {
		files = append(files, filepath.Join(dir, extraFile))
	}

	lp, err := goir.LoadProgram(nil, "", ssa.BuilderMode(0), files)
	if err != nil {
		t.Fatalf("error loading packages: %v", err)
	}
	cfg, err := config.LoadGlobal()
	if err != nil {
		t.Fatalf("error loading global config: %v", err)
	}
	return lp, cfg
}

// ReleaseRegex matches annotations of the form "@Release(id1, id2)"
var ReleaseRegex = regexp.MustCompile(`//.*@Release\(((?:\s*\w+\s*,?)+)\)`)

// FindingRegex matches annotations of the form "@UseAfterFree(id1)", "@DoubleFree(id1)" or "@DanglingPointer(id1)"
var FindingRegex = regexp.MustCompile(`//.*@(UseAfterFree|DoubleFree|DanglingPointer)\(((?:\s*\w+\s*,?)+)\)`)

var kindNames = map[string]string{
	"UseAfterFree":    "use-after-free",
	"DoubleFree":      "double-free",
	"DanglingPointer": "dangling-pointer",
}

// LPos is a position without column
type LPos struct {
	Filename string
	Line     int
}

func (p LPos) String() string {
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// PosOf returns the position of the location without its column
func PosOf(loc ir.Location) LPos {
	return LPos{Filename: loc.File, Line: loc.Line}
}

// Finding is a finding as written in the annotations: its kind, where it happens and where the value was released.
type Finding struct {
	Kind   string
	At     LPos
	DeadAt LPos
}

func (f Finding) String() string {
	return fmt.Sprintf("%s at %s (released at %s)", f.Kind, f.At, f.DeadAt)
}

// GetExpectedFindings parses the Go files in dir and looks for comments @Release(id) and @UseAfterFree(id),
// @DoubleFree(id) or @DanglingPointer(id) to construct the expected findings. A finding annotation refers to the
// release annotation with the same identifier. Filenames are absolute.
func GetExpectedFindings(t *testing.T, dir string) map[Finding]bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		t.Fatalf("bad directory %s: %v", dir, err)
	}
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, abs, nil, parser.ParseComments)
	if err != nil {
		t.Fatalf("could not parse %s: %v", dir, err)
	}

	releases := map[string]LPos{}
	type use struct {
		kind string
		id   string
		pos  LPos
	}
	var uses []use
	for _, pkg := range pkgs {
		for _, f := range pkg.Files {
			for _, group := range f.Comments {
				for _, c := range group.List {
					pos := fset.Position(c.Pos())
					lpos := LPos{Filename: pos.Filename, Line: pos.Line}
					if a := ReleaseRegex.FindStringSubmatch(c.Text); len(a) > 1 {
						for _, id := range strings.Split(a[1], ",") {
							releases[strings.TrimSpace(id)] = lpos
						}
					}
					if a := FindingRegex.FindStringSubmatch(c.Text); len(a) > 2 {
						for _, id := range strings.Split(a[2], ",") {
							uses = append(uses, use{kind: kindNames[a[1]], id: strings.TrimSpace(id), pos: lpos})
						}
					}
				}
			}
		}
	}

	res := map[Finding]bool{}
	for _, u := range uses {
		release, ok := releases[u.id]
		if !ok {
			t.Fatalf("%s: no release annotated with %s", u.pos, u.id)
		}
		res[Finding{Kind: u.kind, At: u.pos, DeadAt: release}] = true
	}
	return res
}
