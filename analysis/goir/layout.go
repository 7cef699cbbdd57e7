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
	"go/types"
	"sync"

	"github.com/awslabs/ar-go-droptrack/analysis/config"
	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/types/typeutil"
)

// Layout is the type oracle for Go types. A type needs a drop when it is a resource type, or a struct, array or
// tuple containing one by value. A type may need a drop when it needs one, or refers to a resource through pointers,
// slices, maps or channels, or is a type parameter, or is an interface that a resource type implements.
//
// Layout is safe for concurrent use.
type Layout struct {
	resources []types.Type

	mu    sync.Mutex
	needs typeutil.Map
	may   typeutil.Map
}

// NewLayout returns the layout for the resource types provided
func NewLayout(resources []types.Type) *Layout {
	return &Layout{resources: resources}
}

// Resources returns the resource types of the layout
func (l *Layout) Resources() []types.Type {
	return l.resources
}

func (l *Layout) isResource(t types.Type) bool {
	if n, ok := t.(*types.Named); ok {
		t = n.Origin()
	}
	for _, r := range l.resources {
		if types.Identical(r, t) {
			return true
		}
	}
	return false
}

// NeedsDrop implements ir.Layout. Values that are not Go types are answered conservatively.
func (l *Layout) NeedsDrop(t ir.Type) bool {
	tt, ok := t.(types.Type)
	if !ok {
		return t != nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if v := l.needs.At(tt); v != nil {
		return v.(bool)
	}
	res := l.needsDrop(tt, map[*types.Named]bool{})
	l.needs.Set(tt, res)
	return res
}

func (l *Layout) needsDrop(t types.Type, visiting map[*types.Named]bool) bool {
	if l.isResource(t) {
		return true
	}
	if n, ok := t.(*types.Named); ok {
		if visiting[n] {
			return false
		}
		visiting[n] = true
		defer delete(visiting, n)
	}
	switch u := t.Underlying().(type) {
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if l.needsDrop(u.Field(i).Type(), visiting) {
				return true
			}
		}
	case *types.Array:
		return l.needsDrop(u.Elem(), visiting)
	case *types.Tuple:
		for i := 0; i < u.Len(); i++ {
			if l.needsDrop(u.At(i).Type(), visiting) {
				return true
			}
		}
	}
	return false
}

// MayNeedDrop implements ir.Layout
func (l *Layout) MayNeedDrop(t ir.Type) bool {
	tt, ok := t.(types.Type)
	if !ok {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if v := l.may.At(tt); v != nil {
		return v.(bool)
	}
	res := l.mayNeedDrop(tt, map[*types.Named]bool{})
	l.may.Set(tt, res)
	return res
}

func (l *Layout) mayNeedDrop(t types.Type, visiting map[*types.Named]bool) bool {
	if l.needsDrop(t, map[*types.Named]bool{}) {
		return true
	}
	if _, ok := t.(*types.TypeParam); ok {
		return true
	}
	if n, ok := t.(*types.Named); ok {
		if visiting[n] {
			return false
		}
		visiting[n] = true
		defer delete(visiting, n)
	}
	switch u := t.Underlying().(type) {
	case *types.Pointer:
		return l.mayNeedDrop(u.Elem(), visiting)
	case *types.Slice:
		return l.mayNeedDrop(u.Elem(), visiting)
	case *types.Array:
		return l.mayNeedDrop(u.Elem(), visiting)
	case *types.Chan:
		return l.mayNeedDrop(u.Elem(), visiting)
	case *types.Map:
		return l.mayNeedDrop(u.Key(), visiting) || l.mayNeedDrop(u.Elem(), visiting)
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if l.mayNeedDrop(u.Field(i).Type(), visiting) {
				return true
			}
		}
	case *types.Tuple:
		for i := 0; i < u.Len(); i++ {
			if l.mayNeedDrop(u.At(i).Type(), visiting) {
				return true
			}
		}
	case *types.Interface:
		return l.implementedByResource(u)
	}
	return false
}

// implementedByResource returns true if a value of some resource type, or of a pointer to some resource type, can
// be stored in an interface of type iface
func (l *Layout) implementedByResource(iface *types.Interface) bool {
	for _, r := range l.resources {
		if types.Implements(r, iface) {
			return true
		}
		if _, isInterface := r.Underlying().(*types.Interface); !isInterface &&
			types.Implements(types.NewPointer(r), iface) {
			return true
		}
	}
	return false
}

// FieldType implements ir.Layout for structs and tuples
func (l *Layout) FieldType(t ir.Type, field int) ir.Type {
	tt, ok := t.(types.Type)
	if !ok || field < 0 {
		return nil
	}
	switch u := tt.Underlying().(type) {
	case *types.Struct:
		if field < u.NumFields() {
			return u.Field(field).Type()
		}
	case *types.Tuple:
		if field < u.Len() {
			return u.At(field).Type()
		}
	}
	return nil
}

// DerefType implements ir.Layout. Slices, channels and maps are lowered as pointers to their elements.
func (l *Layout) DerefType(t ir.Type) ir.Type {
	tt, ok := t.(types.Type)
	if !ok {
		return nil
	}
	switch u := tt.Underlying().(type) {
	case *types.Pointer:
		return u.Elem()
	case *types.Slice:
		return u.Elem()
	case *types.Chan:
		return u.Elem()
	case *types.Map:
		return u.Elem()
	}
	return nil
}

// FindResources returns the named types of the program that are receivers of a release function of the config.
// For interface types, the methods of the interface are matched.
func FindResources(prog *ssa.Program, c *config.Config) []types.Type {
	var res []types.Type
	for _, pkg := range prog.AllPackages() {
		for _, member := range pkg.Members {
			t, ok := member.(*ssa.Type)
			if !ok {
				continue
			}
			named, ok := t.Type().(*types.Named)
			if !ok {
				continue
			}
			if isReleaseReceiver(prog, c, pkg.Pkg.Path(), named) {
				res = append(res, named)
			}
		}
	}
	return res
}

func isReleaseReceiver(prog *ssa.Program, c *config.Config, pkgPath string, named *types.Named) bool {
	cid := config.CodeIdentifier{Package: pkgPath, Receiver: named.Obj().Name()}
	if iface, ok := named.Underlying().(*types.Interface); ok {
		for i := 0; i < iface.NumMethods(); i++ {
			cid.Method = iface.Method(i).Name()
			if c.IsReleaseFunction(cid) {
				return true
			}
		}
		return false
	}
	mset := prog.MethodSets.MethodSet(types.NewPointer(named))
	for i := 0; i < mset.Len(); i++ {
		cid.Method = mset.At(i).Obj().Name()
		if c.IsReleaseFunction(cid) {
			return true
		}
	}
	return false
}
