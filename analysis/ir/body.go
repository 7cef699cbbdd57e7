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

// Package ir defines the typed control-flow graph representation consumed by the alias and liveness engines.
//
// A [Body] is the control-flow graph of one procedure: an ordered list of [BasicBlock], each holding a list of
// [Statement] and exactly one [Terminator]. Storage is named by [Place] values: a [Local] optionally followed by
// field and dereference projections. Local 0 is the return slot and locals 1 to ArgCount are the parameters.
//
// Frontends (see the goir package) build bodies from real programs; tests usually build them with a [Builder].
package ir

import (
	"fmt"
	"strings"
)

// FuncID identifies a function across the whole program.
type FuncID string

// Local is the index of a local variable in a body.
type Local int

// ReturnLocal is the local holding the value returned by a body.
const ReturnLocal Local = 0

// NoBlock is used as a block target when there is no successor (e.g. a call that diverges).
const NoBlock = -1

// Location is a source location. The zero value is an unknown location.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" && l.Line == 0 {
		return "-"
	}
	if l.Column == 0 {
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// IsValid returns true when the location carries a line number.
func (l Location) IsValid() bool {
	return l.Line > 0
}

// ProjectionKind distinguishes field projections from dereferences.
type ProjectionKind int

const (
	// FieldProjection selects a field of a struct or tuple
	FieldProjection ProjectionKind = iota
	// DerefProjection follows a pointer
	DerefProjection
)

// DerefField is the field index used for dereference edges in the location store.
const DerefField = -1

// Projection is one step of a place: either a field access or a dereference.
type Projection struct {
	Kind  ProjectionKind
	Field int
}

// Field returns the projection selecting field i
func Field(i int) Projection {
	return Projection{Kind: FieldProjection, Field: i}
}

// Deref returns the dereference projection
func Deref() Projection {
	return Projection{Kind: DerefProjection, Field: DerefField}
}

// Index returns the child index the projection selects in the location store.
func (p Projection) Index() int {
	if p.Kind == DerefProjection {
		return DerefField
	}
	return p.Field
}

// Place is a local followed by zero or more projections.
type Place struct {
	Local      Local
	Projection []Projection
}

// LocalPlace returns the place denoting l itself.
func LocalPlace(l Local) Place {
	return Place{Local: l}
}

// Project returns a new place extending p with the projections.
func (p Place) Project(projs ...Projection) Place {
	np := make([]Projection, 0, len(p.Projection)+len(projs))
	np = append(np, p.Projection...)
	np = append(np, projs...)
	return Place{Local: p.Local, Projection: np}
}

func (p Place) String() string {
	s := fmt.Sprintf("_%d", p.Local)
	for _, proj := range p.Projection {
		if proj.Kind == DerefProjection {
			s = "(*" + s + ")"
		} else {
			s = fmt.Sprintf("%s.%d", s, proj.Field)
		}
	}
	return s
}

// OperandKind is the way an operand reads its place.
type OperandKind int

const (
	// Copy reads a place without invalidating it
	Copy OperandKind = iota
	// Move reads a place and transfers its ownership
	Move
	// Constant is a literal value; the place is ignored
	Constant
)

// Operand is an input of an rvalue, a call or a branch.
type Operand struct {
	Kind  OperandKind
	Place Place
}

// CopyOf returns a copy operand of p
func CopyOf(p Place) Operand { return Operand{Kind: Copy, Place: p} }

// MoveOf returns a move operand of p
func MoveOf(p Place) Operand { return Operand{Kind: Move, Place: p} }

// Const returns a constant operand
func Const() Operand { return Operand{Kind: Constant} }

// HasPlace returns true when the operand reads a place.
func (o Operand) HasPlace() bool {
	return o.Kind != Constant
}

func (o Operand) String() string {
	switch o.Kind {
	case Move:
		return "move " + o.Place.String()
	case Constant:
		return "const"
	default:
		return o.Place.String()
	}
}

// RvalueKind is the kind of the right-hand side of an assignment.
type RvalueKind int

const (
	// Use assigns the value of the operands to the destination
	Use RvalueKind = iota
	// Ref assigns the address of the operand's place to the destination
	Ref
	// Opaque produces a fresh value that aliases nothing (constants, arithmetic, allocations)
	Opaque
)

// Rvalue is the right-hand side of an assignment.
type Rvalue struct {
	Kind     RvalueKind
	Operands []Operand
}

// StatementKind is the kind of a statement.
type StatementKind int

const (
	// Nop does nothing
	Nop StatementKind = iota
	// Assign writes Rvalue into Place
	Assign
	// Release explicitly deallocates the value stored at Place
	Release
	// CopyIntrinsic copies the pointee of Source into the pointee of Place
	CopyIntrinsic
)

// Statement is a non-terminating instruction of a basic block.
type Statement struct {
	Kind   StatementKind
	Place  Place
	Rvalue Rvalue
	Source Operand
	Pos    Location
}

func (s Statement) String() string {
	switch s.Kind {
	case Assign:
		ops := make([]string, len(s.Rvalue.Operands))
		for i, o := range s.Rvalue.Operands {
			ops[i] = o.String()
		}
		switch s.Rvalue.Kind {
		case Ref:
			return fmt.Sprintf("%s = &%s", s.Place, strings.Join(ops, ", "))
		case Opaque:
			return fmt.Sprintf("%s = opaque(%s)", s.Place, strings.Join(ops, ", "))
		default:
			return fmt.Sprintf("%s = %s", s.Place, strings.Join(ops, ", "))
		}
	case Release:
		return fmt.Sprintf("release(%s)", s.Place)
	case CopyIntrinsic:
		return fmt.Sprintf("copy(%s, %s)", s.Place, s.Source)
	default:
		return "nop"
	}
}

// TerminatorKind is the kind of a block terminator.
type TerminatorKind int

const (
	// Unreachable ends a block with no successor
	Unreachable TerminatorKind = iota
	// Goto jumps to Targets[0]
	Goto
	// SwitchInt branches on the value of Discr: Values[i] goes to Targets[i], anything else goes to Otherwise
	SwitchInt
	// Call calls Func with Args, writes the result into Dest and continues at Targets[0] (if any)
	Call
	// Drop explicitly deallocates Place and continues at Targets[0]
	Drop
	// Return returns from the body
	Return
)

// Terminator ends a basic block.
type Terminator struct {
	Kind      TerminatorKind
	Discr     Operand
	Values    []uint64
	Targets   []int
	Otherwise int
	Func      FuncID
	Args      []Operand
	Dest      Place
	Place     Place
	Pos       Location
}

// Successors returns the successor blocks of the terminator, in branch order. For a SwitchInt, the Otherwise
// target is last.
func (t Terminator) Successors() []int {
	switch t.Kind {
	case Goto, Call, Drop:
		if len(t.Targets) > 0 && t.Targets[0] != NoBlock {
			return []int{t.Targets[0]}
		}
		return nil
	case SwitchInt:
		succs := make([]int, 0, len(t.Targets)+1)
		succs = append(succs, t.Targets...)
		if t.Otherwise != NoBlock {
			succs = append(succs, t.Otherwise)
		}
		return succs
	default:
		return nil
	}
}

func (t Terminator) String() string {
	switch t.Kind {
	case Goto:
		return fmt.Sprintf("goto bb%d", t.Targets[0])
	case SwitchInt:
		var parts []string
		for i, v := range t.Values {
			parts = append(parts, fmt.Sprintf("%d: bb%d", v, t.Targets[i]))
		}
		parts = append(parts, fmt.Sprintf("otherwise: bb%d", t.Otherwise))
		return fmt.Sprintf("switchInt(%s) [%s]", t.Discr, strings.Join(parts, ", "))
	case Call:
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.String()
		}
		return fmt.Sprintf("%s = %s(%s) -> %v", t.Dest, t.Func, strings.Join(args, ", "), t.Successors())
	case Drop:
		return fmt.Sprintf("drop(%s) -> %v", t.Place, t.Successors())
	case Return:
		return "return"
	default:
		return "unreachable"
	}
}

// BasicBlock is a sequence of statements ended by a terminator.
type BasicBlock struct {
	Index      int
	Statements []Statement
	Terminator Terminator
}

// LocalDecl declares a local of a body.
type LocalDecl struct {
	Name string
	Type Type
}

// Body is the control-flow graph of one procedure. Block 0 is the entry block.
type Body struct {
	Func     FuncID
	ArgCount int
	Locals   []LocalDecl
	Blocks   []*BasicBlock
	Pos      Location
}

// Name returns the printable name of the function the body belongs to
func (b *Body) Name() string {
	return string(b.Func)
}

// Validate checks the structural invariants of a body and returns an error describing the first violation.
func (b *Body) Validate() error {
	if len(b.Blocks) == 0 {
		return fmt.Errorf("%s: body has no blocks", b.Func)
	}
	if b.ArgCount+1 > len(b.Locals) {
		return fmt.Errorf("%s: %d arguments declared but only %d locals", b.Func, b.ArgCount, len(b.Locals))
	}
	checkPlace := func(bi int, p Place) error {
		if int(p.Local) < 0 || int(p.Local) >= len(b.Locals) {
			return fmt.Errorf("%s: bb%d references unknown local _%d", b.Func, bi, p.Local)
		}
		return nil
	}
	checkOperand := func(bi int, o Operand) error {
		if o.HasPlace() {
			return checkPlace(bi, o.Place)
		}
		return nil
	}
	for i, block := range b.Blocks {
		if block == nil {
			return fmt.Errorf("%s: bb%d is nil", b.Func, i)
		}
		if block.Index != i {
			return fmt.Errorf("%s: bb%d has index %d", b.Func, i, block.Index)
		}
		for _, s := range block.Statements {
			if s.Kind == Nop {
				continue
			}
			if err := checkPlace(i, s.Place); err != nil {
				return err
			}
			for _, o := range s.Rvalue.Operands {
				if err := checkOperand(i, o); err != nil {
					return err
				}
			}
			if s.Kind == CopyIntrinsic {
				if err := checkOperand(i, s.Source); err != nil {
					return err
				}
			}
		}
		t := block.Terminator
		for _, succ := range t.Successors() {
			if succ < 0 || succ >= len(b.Blocks) {
				return fmt.Errorf("%s: bb%d jumps to unknown block %d", b.Func, i, succ)
			}
		}
		switch t.Kind {
		case Goto, Drop:
			if len(t.Targets) != 1 || t.Targets[0] == NoBlock {
				return fmt.Errorf("%s: bb%d: goto and drop must have exactly one target", b.Func, i)
			}
		case SwitchInt:
			if len(t.Values) != len(t.Targets) {
				return fmt.Errorf("%s: bb%d: switch has %d values for %d targets", b.Func, i, len(t.Values),
					len(t.Targets))
			}
			if err := checkOperand(i, t.Discr); err != nil {
				return err
			}
		case Call:
			for _, a := range t.Args {
				if err := checkOperand(i, a); err != nil {
					return err
				}
			}
			if err := checkPlace(i, t.Dest); err != nil {
				return err
			}
		}
		if t.Kind == Drop {
			if err := checkPlace(i, t.Place); err != nil {
				return err
			}
		}
	}
	return nil
}

// String prints the body in a readable, line-oriented format.
func (b *Body) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fn %s(%d args) {\n", b.Func, b.ArgCount)
	for i, l := range b.Locals {
		fmt.Fprintf(&sb, "  let _%d: %s; // %s\n", i, TypeString(l.Type), l.Name)
	}
	for _, block := range b.Blocks {
		fmt.Fprintf(&sb, "  bb%d: {\n", block.Index)
		for _, s := range block.Statements {
			fmt.Fprintf(&sb, "    %s;\n", s)
		}
		fmt.Fprintf(&sb, "    %s;\n  }\n", block.Terminator)
	}
	sb.WriteString("}\n")
	return sb.String()
}

// Program is the set of bodies available for analysis. Functions without a body are opaque.
type Program struct {
	Bodies map[FuncID]*Body
	Layout Layout
}

// NewProgram returns an empty program using the layout oracle provided. A nil layout defaults to StaticLayout.
func NewProgram(layout Layout) *Program {
	if layout == nil {
		layout = StaticLayout{}
	}
	return &Program{Bodies: map[FuncID]*Body{}, Layout: layout}
}

// Add adds a body to the program, replacing any previous body of the same function.
func (p *Program) Add(b *Body) {
	p.Bodies[b.Func] = b
}

// Body returns the body of the function, or nil if the function is opaque.
func (p *Program) Body(id FuncID) *Body {
	if p == nil {
		return nil
	}
	return p.Bodies[id]
}

// HasBody returns true if the function has a body available for analysis.
func (p *Program) HasBody(id FuncID) bool {
	return p.Body(id) != nil
}
