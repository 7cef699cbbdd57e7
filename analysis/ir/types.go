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

package ir

import (
	"fmt"
	"strings"
)

// Type is the static type of a local or a projection. The engines never inspect types directly; they go
// through a Layout.
type Type interface {
	String() string
}

// TypeString prints t, or "?" when t is nil.
func TypeString(t Type) string {
	if t == nil {
		return "?"
	}
	return t.String()
}

// Layout answers the type questions the engines need.
//
// NeedsDrop must return true when a value of type t owns content that must be explicitly released.
// MayNeedDrop is a superset of NeedsDrop: it also returns true when the answer depends on instantiation
// (type parameters, interfaces). FieldType and DerefType return nil when the projection is not known.
type Layout interface {
	NeedsDrop(t Type) bool
	MayNeedDrop(t Type) bool
	FieldType(t Type, field int) Type
	DerefType(t Type) Type
}

// ProjectedType returns the type of the place p in body b, or nil if some projection is unknown.
func ProjectedType(layout Layout, b *Body, p Place) Type {
	if int(p.Local) >= len(b.Locals) {
		return nil
	}
	t := b.Locals[p.Local].Type
	for _, proj := range p.Projection {
		if t == nil {
			return nil
		}
		if proj.Kind == DerefProjection {
			t = layout.DerefType(t)
		} else {
			t = layout.FieldType(t, proj.Field)
		}
	}
	return t
}

// Named is a simple structural type understood by StaticLayout.
//
// Drop marks types that own releasable content directly. Generic marks type parameters, which may need a drop
// depending on their instantiation. Fields are the field types of a struct and Elem is the pointee of a
// pointer type.
type Named struct {
	Name    string
	Drop    bool
	Generic bool
	Fields  []Type
	Elem    Type
}

func (n *Named) String() string {
	if n == nil {
		return "?"
	}
	if n.Elem != nil {
		return "*" + n.Elem.String()
	}
	if len(n.Fields) > 0 && n.Name == "" {
		fs := make([]string, len(n.Fields))
		for i, f := range n.Fields {
			fs[i] = TypeString(f)
		}
		return fmt.Sprintf("(%s)", strings.Join(fs, ", "))
	}
	return n.Name
}

// Some commonly used types
var (
	// Int is a plain integer
	Int = &Named{Name: "int"}
	// Bool is a boolean
	Bool = &Named{Name: "bool"}
	// Unit is the empty value
	Unit = &Named{Name: "()"}
)

// PointerTo returns the pointer type to elem
func PointerTo(elem Type) *Named {
	return &Named{Elem: elem}
}

// StructOf returns a struct type named name with the given fields
func StructOf(name string, fields ...Type) *Named {
	return &Named{Name: name, Fields: fields}
}

// Resource returns a type that must be explicitly released
func Resource(name string) *Named {
	return &Named{Name: name, Drop: true}
}

// TypeParam returns a type parameter
func TypeParam(name string) *Named {
	return &Named{Name: name, Generic: true}
}

// StaticLayout is the Layout for *Named types. Any other type is answered conservatively: it may need a drop
// and its projections are unknown.
type StaticLayout struct{}

// NeedsDrop returns true if t owns a resource, directly or through one of its fields. Pointers never own their
// pointee.
func (s StaticLayout) NeedsDrop(t Type) bool {
	return s.needsDrop(t, 0)
}

func (s StaticLayout) needsDrop(t Type, depth int) bool {
	n, ok := t.(*Named)
	if !ok || n == nil {
		return t != nil
	}
	if depth > maxLayoutDepth {
		return true
	}
	if n.Drop {
		return true
	}
	if n.Elem != nil {
		return false
	}
	for _, f := range n.Fields {
		if s.needsDrop(f, depth+1) {
			return true
		}
	}
	return false
}

// MayNeedDrop returns true if t needs a drop or contains a type parameter.
func (s StaticLayout) MayNeedDrop(t Type) bool {
	return s.mayNeedDrop(t, 0)
}

func (s StaticLayout) mayNeedDrop(t Type, depth int) bool {
	n, ok := t.(*Named)
	if !ok || n == nil {
		return true
	}
	if depth > maxLayoutDepth {
		return true
	}
	if n.Drop || n.Generic {
		return true
	}
	if n.Elem != nil {
		return s.mayNeedDrop(n.Elem, depth+1)
	}
	for _, f := range n.Fields {
		if s.mayNeedDrop(f, depth+1) {
			return true
		}
	}
	return false
}

// FieldType returns the type of field i of t, or nil if unknown.
func (s StaticLayout) FieldType(t Type, field int) Type {
	n, ok := t.(*Named)
	if !ok || n == nil || field < 0 || field >= len(n.Fields) {
		return nil
	}
	return n.Fields[field]
}

// DerefType returns the pointee type of t, or nil if t is not a pointer.
func (s StaticLayout) DerefType(t Type) Type {
	n, ok := t.(*Named)
	if !ok || n == nil {
		return nil
	}
	return n.Elem
}

// maxLayoutDepth bounds the recursion on recursive types
const maxLayoutDepth = 32
