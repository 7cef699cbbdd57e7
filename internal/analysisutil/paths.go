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

// Package analysisutil contains the path filters of the command line tools.
package analysisutil

import (
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// MakeAbsolute takes a slice of relative file paths and converts them to absolute paths.
// Paths that were already absolute are passed through unchanged, and a path that keeps a trailing separator keeps
// it after conversion.
func MakeAbsolute(excludeRelative []string) []string {
	result := make([]string, 0, len(excludeRelative))
	for _, s := range excludeRelative {
		abs, err := filepath.Abs(s)
		if err != nil {
			abs = s
		}
		if strings.HasSuffix(s, "/") && !strings.HasSuffix(abs, "/") {
			abs += "/"
		}
		result = append(result, abs)
	}
	return result
}

// isExcludedFile returns true if the file matches the exclude pattern: a .go file matches only itself, a directory
// matches the files under it.
func isExcludedFile(filename string, exclude string) bool {
	if strings.HasSuffix(exclude, ".go") {
		return filename == exclude // full match required
	} else if strings.HasSuffix(exclude, "/") {
		return strings.HasPrefix(filename, exclude) // prefix match required
	} else {
		return strings.HasPrefix(filename, exclude+"/") // prefix match plus / required
	}
}

// IsExcluded scans the exclude slices to find out whether the file declaring f is excluded
func IsExcluded(program *ssa.Program, f *ssa.Function, exclude []string) bool {
	filename := program.Fset.Position(f.Pos()).Filename
	if filename == "" {
		return false
	}
	for _, e := range exclude {
		if isExcludedFile(filename, e) {
			return true
		}
	}
	return false
}
