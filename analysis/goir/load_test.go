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

package goir

import (
	"go/ast"
	"testing"

	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"github.com/stretchr/testify/assert"
)

func TestParseDirective(t *testing.T) {
	k, ok := parseDirective(&ast.Comment{Text: "//droptrack:ignore"})
	assert.True(t, ok)
	assert.Equal(t, DirectiveIgnore, k)
	_, ok = parseDirective(&ast.Comment{Text: "// droptrack:unknown"})
	assert.False(t, ok)
	_, ok = parseDirective(&ast.Comment{Text: "// nothing to see"})
	assert.False(t, ok)
}

func TestDirectivesIgnores(t *testing.T) {
	d := Directives{{Filename: "a.go", Line: 10}: DirectiveIgnore}
	assert.True(t, d.Ignores(ir.Location{File: "a.go", Line: 10}))
	assert.True(t, d.Ignores(ir.Location{File: "a.go", Line: 11, Column: 3}))
	assert.False(t, d.Ignores(ir.Location{File: "a.go", Line: 12}))
	assert.False(t, d.Ignores(ir.Location{File: "b.go", Line: 11}))
}
