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

// Builder assembles a Body block by block. Locations are synthesized from a line counter unless set
// explicitly with At, which keeps findings on hand-built bodies distinguishable.
type Builder struct {
	body    *Body
	cur     *BasicBlock
	line    int
	file    string
	pending *Location
}

// NewBuilder returns a builder for a function with the return type and parameter types provided.
// The return slot is local 0 and the parameters are locals 1 to len(params).
func NewBuilder(fn FuncID, ret Type, params ...Type) *Builder {
	b := &Builder{
		body: &Body{Func: fn, ArgCount: len(params)},
		file: string(fn),
	}
	b.body.Locals = append(b.body.Locals, LocalDecl{Name: "ret", Type: ret})
	for _, p := range params {
		b.body.Locals = append(b.body.Locals, LocalDecl{Type: p})
	}
	b.body.Pos = Location{File: b.file, Line: 1}
	return b
}

// Local declares a new local and returns it
func (b *Builder) Local(name string, t Type) Local {
	b.body.Locals = append(b.body.Locals, LocalDecl{Name: name, Type: t})
	return Local(len(b.body.Locals) - 1)
}

// Block creates a new empty block and returns its index. The block is not selected.
func (b *Builder) Block() int {
	bb := &BasicBlock{Index: len(b.body.Blocks), Terminator: Terminator{Kind: Unreachable, Otherwise: NoBlock}}
	b.body.Blocks = append(b.body.Blocks, bb)
	return bb.Index
}

// In selects the block to which statements and terminators are added.
func (b *Builder) In(block int) *Builder {
	b.cur = b.body.Blocks[block]
	return b
}

// At sets the line of the next emitted instruction.
func (b *Builder) At(line int) *Builder {
	b.line = line - 1
	return b
}

// Loc sets the location of the next emitted instruction. Frontends use it to carry source positions.
func (b *Builder) Loc(l Location) *Builder {
	b.pending = &l
	return b
}

// SetPos sets the location of the function
func (b *Builder) SetPos(l Location) *Builder {
	b.body.Pos = l
	return b
}

func (b *Builder) pos() Location {
	if b.pending != nil {
		l := *b.pending
		b.pending = nil
		return l
	}
	b.line++
	return Location{File: b.file, Line: b.line}
}

func (b *Builder) stmt(s Statement) *Builder {
	s.Pos = b.pos()
	b.cur.Statements = append(b.cur.Statements, s)
	return b
}

// Assign emits dst = use(ops...)
func (b *Builder) Assign(dst Place, ops ...Operand) *Builder {
	return b.stmt(Statement{Kind: Assign, Place: dst, Rvalue: Rvalue{Kind: Use, Operands: ops}})
}

// AssignRef emits dst = &src
func (b *Builder) AssignRef(dst Place, src Place) *Builder {
	return b.stmt(Statement{Kind: Assign, Place: dst, Rvalue: Rvalue{Kind: Ref, Operands: []Operand{CopyOf(src)}}})
}

// AssignOpaque emits dst = opaque(ops...), producing a fresh value
func (b *Builder) AssignOpaque(dst Place, ops ...Operand) *Builder {
	return b.stmt(Statement{Kind: Assign, Place: dst, Rvalue: Rvalue{Kind: Opaque, Operands: ops}})
}

// Release emits an explicit deallocation statement of p
func (b *Builder) Release(p Place) *Builder {
	return b.stmt(Statement{Kind: Release, Place: p})
}

// CopyIntrinsic emits copy(dst, src)
func (b *Builder) CopyIntrinsic(dst Place, src Operand) *Builder {
	return b.stmt(Statement{Kind: CopyIntrinsic, Place: dst, Source: src})
}

func (b *Builder) term(t Terminator) *Builder {
	t.Pos = b.pos()
	b.cur.Terminator = t
	return b
}

// Goto terminates the current block with a jump
func (b *Builder) Goto(target int) *Builder {
	return b.term(Terminator{Kind: Goto, Targets: []int{target}, Otherwise: NoBlock})
}

// Switch terminates the current block with a switch on discr
func (b *Builder) Switch(discr Operand, values []uint64, targets []int, otherwise int) *Builder {
	return b.term(Terminator{Kind: SwitchInt, Discr: discr, Values: values, Targets: targets, Otherwise: otherwise})
}

// If terminates the current block with a two-way branch on cond: 0 goes to els, anything else goes to then.
func (b *Builder) If(cond Place, then int, els int) *Builder {
	return b.Switch(CopyOf(cond), []uint64{0}, []int{els}, then)
}

// Call terminates the current block with a call. Use NoBlock as target for a diverging call.
func (b *Builder) Call(fn FuncID, dest Place, target int, args ...Operand) *Builder {
	return b.term(Terminator{Kind: Call, Func: fn, Args: args, Dest: dest, Targets: []int{target}, Otherwise: NoBlock})
}

// Drop terminates the current block with an explicit deallocation of p
func (b *Builder) Drop(p Place, target int) *Builder {
	return b.term(Terminator{Kind: Drop, Place: p, Targets: []int{target}, Otherwise: NoBlock})
}

// Return terminates the current block with a return
func (b *Builder) Return() *Builder {
	return b.term(Terminator{Kind: Return, Otherwise: NoBlock})
}

// Body returns the body built so far
func (b *Builder) Body() *Body {
	return b.body
}
