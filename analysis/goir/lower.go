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
	"fmt"
	"go/token"
	"go/types"
	"sort"

	"github.com/awslabs/ar-go-droptrack/analysis/config"
	"github.com/awslabs/ar-go-droptrack/analysis/ir"
	"golang.org/x/tools/go/ssa"
)

// Build lowers the functions of the packages of the loaded program, with the layout derived from the release
// functions of the config.
func Build(lp LoadedProgram, c *config.Config) (*ir.Program, error) {
	layout := NewLayout(FindResources(lp.Program, c))
	return Lower(Functions(lp.Packages), layout, c)
}

// Lower lowers each function to an ir.Body. The bodies are keyed by the string representation of the functions,
// which is also the identifier of the callees at call sites.
func Lower(funcs []*ssa.Function, layout *Layout, c *config.Config) (*ir.Program, error) {
	prog := ir.NewProgram(layout)
	for _, fn := range funcs {
		body, err := LowerFunction(fn, c)
		if err != nil {
			return nil, err
		}
		prog.Add(body)
	}
	return prog, nil
}

// FuncID returns the identifier of the function in the lowered program
func FuncID(fn *ssa.Function) ir.FuncID {
	return ir.FuncID(fn.String())
}

// LowerFunction lowers the SSA function fn. Local 0 is the result of the function (a tuple when the function has
// several results), locals 1 to n are its parameters, and every other SSA value gets its own local.
// Block i of the body is the block i of fn; calls and phi edges add blocks after those.
func LowerFunction(fn *ssa.Function, c *config.Config) (*ir.Body, error) {
	if len(fn.Blocks) == 0 {
		return nil, fmt.Errorf("%s has no body", fn)
	}
	var ret types.Type = types.NewTuple()
	switch results := fn.Signature.Results(); results.Len() {
	case 0:
	case 1:
		ret = results.At(0).Type()
	default:
		ret = results
	}
	params := make([]ir.Type, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Type()
	}
	l := &lowerer{
		fn:     fn,
		config: c,
		b:      ir.NewBuilder(FuncID(fn), ret, params...),
		locals: map[ssa.Value]ir.Local{},
		temps:  map[*ssa.Phi]ir.Local{},
	}
	l.last = ir.Location{File: string(FuncID(fn)), Line: 1}
	l.b.SetPos(l.location(fn.Pos()))
	for i, p := range fn.Params {
		l.b.Body().Locals[i+1].Name = p.Name()
		l.locals[p] = ir.Local(i + 1)
	}
	l.declareLocals()
	for range fn.Blocks {
		l.b.Block()
	}
	for _, block := range fn.Blocks {
		l.lowerBlock(block)
	}
	return l.b.Body(), nil
}

type lowerer struct {
	fn     *ssa.Function
	config *config.Config
	b      *ir.Builder

	// locals maps the SSA values of the function to their locals
	locals map[ssa.Value]ir.Local
	// temps are the locals through which the edge values of phis are copied
	temps   map[*ssa.Phi]ir.Local
	globals []ir.Local
	defers  []deferred

	// resultsAssigned is the block whose results were assigned before its deferred calls
	resultsAssigned *ssa.BasicBlock

	cur  int
	last ir.Location
}

type deferred struct {
	instr *ssa.Defer
	block *ssa.BasicBlock
	index int
}

func (l *lowerer) declareLocals() {
	for _, fv := range l.fn.FreeVars {
		l.locals[fv] = l.b.Local(fv.Name(), fv.Type())
	}
	for _, block := range l.fn.Blocks {
		for i, instr := range block.Instrs {
			if d, ok := instr.(*ssa.Defer); ok {
				l.defers = append(l.defers, deferred{instr: d, block: block, index: i})
			}
			if v, ok := instr.(ssa.Value); ok {
				l.locals[v] = l.b.Local(v.Name(), v.Type())
			}
			if phi, ok := instr.(*ssa.Phi); ok {
				l.temps[phi] = l.b.Local(phi.Name()+".in", phi.Type())
			}
			for _, op := range instr.Operands(nil) {
				if op == nil {
					continue
				}
				if g, ok := (*op).(*ssa.Global); ok {
					if _, declared := l.locals[g]; !declared {
						l.locals[g] = l.b.Local(g.Name(), g.Type())
						l.globals = append(l.globals, l.locals[g])
					}
				}
			}
		}
	}
}

func (l *lowerer) location(pos token.Pos) ir.Location {
	if pos.IsValid() {
		if p := l.fn.Prog.Fset.Position(pos); p.IsValid() {
			l.last = ir.Location{File: p.Filename, Line: p.Line, Column: p.Column}
		}
	}
	return l.last
}

// at returns the builder with the location of the next instruction set to loc
func (l *lowerer) at(loc ir.Location) *ir.Builder {
	return l.b.Loc(loc)
}

func (l *lowerer) switchTo(block int) {
	l.cur = block
	l.b.In(block)
}

func (l *lowerer) place(v ssa.Value) (ir.Place, bool) {
	if local, ok := l.locals[v]; ok {
		return ir.LocalPlace(local), true
	}
	return ir.Place{}, false
}

func (l *lowerer) operand(v ssa.Value) ir.Operand {
	if p, ok := l.place(v); ok {
		return ir.CopyOf(p)
	}
	return ir.Const()
}

// assign emits dst = vals, or dst = opaque() if none of the values is a local
func (l *lowerer) assign(loc ir.Location, dst ir.Place, vals ...ssa.Value) {
	var ops []ir.Operand
	for _, v := range vals {
		if p, ok := l.place(v); ok {
			ops = append(ops, ir.CopyOf(p))
		}
	}
	if len(ops) == 0 {
		l.at(loc).AssignOpaque(dst)
		return
	}
	l.at(loc).Assign(dst, ops...)
}

// assignFrom emits dst = src.projs when src is a local, and dst = opaque() otherwise
func (l *lowerer) assignFrom(loc ir.Location, dst ir.Place, src ssa.Value, projs ...ir.Projection) {
	p, ok := l.place(src)
	if !ok {
		l.at(loc).AssignOpaque(dst)
		return
	}
	l.at(loc).Assign(dst, ir.CopyOf(p.Project(projs...)))
}

func (l *lowerer) lowerBlock(block *ssa.BasicBlock) {
	l.switchTo(block.Index)
	if block.Index == 0 {
		for _, g := range l.globals {
			l.at(l.last).AssignOpaque(ir.LocalPlace(g))
		}
	}
	for i, instr := range block.Instrs {
		l.lowerInstr(block, i, instr)
	}
}

func (l *lowerer) lowerInstr(block *ssa.BasicBlock, index int, instr ssa.Instruction) {
	loc := l.location(instr.Pos())
	var dst ir.Place
	if v, ok := instr.(ssa.Value); ok {
		dst = ir.LocalPlace(l.locals[v])
	}
	switch i := instr.(type) {
	case *ssa.Phi, *ssa.DebugRef, *ssa.Defer:
	case *ssa.Alloc, *ssa.MakeMap, *ssa.MakeChan, *ssa.MakeSlice, *ssa.BinOp, *ssa.Select:
		l.at(loc).AssignOpaque(dst)
	case *ssa.MakeClosure:
		l.assign(loc, dst, i.Bindings...)
	case *ssa.MakeInterface:
		l.assign(loc, dst, i.X)
	case *ssa.ChangeType:
		l.assign(loc, dst, i.X)
	case *ssa.ChangeInterface:
		l.assign(loc, dst, i.X)
	case *ssa.Convert:
		l.assign(loc, dst, i.X)
	case *ssa.SliceToArrayPointer:
		l.assign(loc, dst, i.X)
	case *ssa.Slice:
		l.assign(loc, dst, i.X)
	case *ssa.Index:
		l.assign(loc, dst, i.X)
	case *ssa.IndexAddr:
		l.assign(loc, dst, i.X)
	case *ssa.Range:
		l.assign(loc, dst, i.X)
	case *ssa.TypeAssert:
		if i.CommaOk {
			l.at(loc).AssignOpaque(dst)
			l.assign(loc, dst.Project(ir.Field(0)), i.X)
		} else {
			l.assign(loc, dst, i.X)
		}
	case *ssa.Field:
		l.assignFrom(loc, dst, i.X, ir.Field(i.Field))
	case *ssa.FieldAddr:
		// the pointee of the address is the field
		l.at(loc).AssignOpaque(dst)
		l.assignFrom(loc, dst.Project(ir.Deref()), i.X, ir.Deref(), ir.Field(i.Field))
	case *ssa.Extract:
		l.assignFrom(loc, dst, i.Tuple, ir.Field(i.Index))
	case *ssa.UnOp:
		l.lowerUnOp(loc, dst, i)
	case *ssa.Lookup:
		if i.CommaOk {
			l.at(loc).AssignOpaque(dst)
			l.assignFrom(loc, dst.Project(ir.Field(0)), i.X, ir.Deref())
		} else {
			l.assignFrom(loc, dst, i.X, ir.Deref())
		}
	case *ssa.Next:
		l.at(loc).AssignOpaque(dst)
		l.assignFrom(loc, dst.Project(ir.Field(1)), i.Iter, ir.Deref())
		l.assignFrom(loc, dst.Project(ir.Field(2)), i.Iter, ir.Deref())
	case *ssa.Store:
		l.storeInto(loc, i.Addr, i.Val)
	case *ssa.MapUpdate:
		l.storeInto(loc, i.Map, i.Value)
	case *ssa.Send:
		l.storeInto(loc, i.Chan, i.X)
	case *ssa.Call:
		l.call(i.Common(), dst, loc)
	case *ssa.Go:
		scratch := l.b.Local("go", types.NewTuple())
		l.call(i.Common(), ir.LocalPlace(scratch), loc)
	case *ssa.RunDefers:
		// results are evaluated before the deferred calls run
		if ret, ok := block.Instrs[len(block.Instrs)-1].(*ssa.Return); ok {
			l.assignResults(l.location(ret.Pos()), ret)
			l.resultsAssigned = block
		}
		l.runDefers(block, index)
	case *ssa.Jump:
		l.at(loc).Goto(l.edge(block, block.Succs[0], loc))
	case *ssa.If:
		then := l.edge(block, block.Succs[0], loc)
		els := l.edge(block, block.Succs[1], loc)
		l.at(loc).Switch(l.operand(i.Cond), []uint64{0}, []int{els}, then)
	case *ssa.Return:
		if l.resultsAssigned != block {
			l.assignResults(loc, i)
		}
		l.at(loc).Return()
	case *ssa.Panic:
		// the block keeps its unreachable terminator
	default:
		if v, ok := instr.(ssa.Value); ok {
			l.at(loc).AssignOpaque(ir.LocalPlace(l.locals[v]))
		}
	}
}

func (l *lowerer) assignResults(loc ir.Location, ret *ssa.Return) {
	switch len(ret.Results) {
	case 0:
	case 1:
		l.assign(loc, ir.LocalPlace(ir.ReturnLocal), ret.Results[0])
	default:
		for k, r := range ret.Results {
			l.assign(loc, ir.LocalPlace(ir.ReturnLocal).Project(ir.Field(k)), r)
		}
	}
}

func (l *lowerer) lowerUnOp(loc ir.Location, dst ir.Place, u *ssa.UnOp) {
	switch u.Op {
	case token.MUL:
		l.assignFrom(loc, dst, u.X, ir.Deref())
	case token.ARROW:
		if u.CommaOk {
			l.at(loc).AssignOpaque(dst)
			l.assignFrom(loc, dst.Project(ir.Field(0)), u.X, ir.Deref())
		} else {
			l.assignFrom(loc, dst, u.X, ir.Deref())
		}
	default:
		l.at(loc).AssignOpaque(dst)
	}
}

// storeInto emits *addr = val
func (l *lowerer) storeInto(loc ir.Location, addr ssa.Value, val ssa.Value) {
	p, ok := l.place(addr)
	if !ok {
		return
	}
	l.assign(loc, p.Project(ir.Deref()), val)
}

// edge returns the block to jump to for the edge from -> to, which copies the incoming values of the phis of to
// when it has some.
func (l *lowerer) edge(from *ssa.BasicBlock, to *ssa.BasicBlock, loc ir.Location) int {
	var phis []*ssa.Phi
	for _, instr := range to.Instrs {
		if phi, ok := instr.(*ssa.Phi); ok {
			phis = append(phis, phi)
		}
	}
	if len(phis) == 0 {
		return to.Index
	}
	pred := -1
	for k, p := range to.Preds {
		if p == from {
			pred = k
			break
		}
	}
	cur := l.cur
	e := l.b.Block()
	l.switchTo(e)
	// phis are assigned in parallel
	for _, phi := range phis {
		tmp := ir.LocalPlace(l.temps[phi])
		if pred >= 0 && pred < len(phi.Edges) {
			l.assign(loc, tmp, phi.Edges[pred])
		} else {
			l.at(loc).AssignOpaque(tmp)
		}
	}
	for _, phi := range phis {
		l.at(loc).Assign(ir.LocalPlace(l.locals[phi]), ir.CopyOf(ir.LocalPlace(l.temps[phi])))
	}
	l.at(loc).Goto(to.Index)
	l.switchTo(cur)
	return e
}

// call ends the current block with the call c and continues in a new block
func (l *lowerer) call(c *ssa.CallCommon, dst ir.Place, loc ir.Location) {
	if b, ok := c.Value.(*ssa.Builtin); ok {
		l.builtin(b, c.Args, dst, loc)
		return
	}
	args := l.callArgs(c)
	next := l.b.Block()
	if l.isRelease(c) && len(args) > 0 && args[0].HasPlace() {
		l.at(loc).Drop(args[0].Place, next)
		l.switchTo(next)
		l.at(loc).AssignOpaque(dst)
		return
	}
	l.at(loc).Call(CalleeID(c), dst, next, args...)
	l.switchTo(next)
}

func (l *lowerer) callArgs(c *ssa.CallCommon) []ir.Operand {
	var args []ir.Operand
	if c.IsInvoke() {
		args = append(args, l.operand(c.Value))
	}
	for _, a := range c.Args {
		args = append(args, l.operand(a))
	}
	return args
}

func (l *lowerer) builtin(b *ssa.Builtin, args []ssa.Value, dst ir.Place, loc ir.Location) {
	switch b.Name() {
	case "copy":
		if p, ok := l.place(args[0]); ok {
			l.at(loc).CopyIntrinsic(p, l.operand(args[1]))
		}
		l.at(loc).AssignOpaque(dst)
	case "append":
		l.assign(loc, dst, args...)
	default:
		l.at(loc).AssignOpaque(dst)
	}
}

// runDefers emits the deferred calls that always precede the RunDefers instruction at index in block, last
// deferred first.
func (l *lowerer) runDefers(block *ssa.BasicBlock, index int) {
	var active []deferred
	for _, d := range l.defers {
		if (d.block == block && d.index < index) || (d.block != block && d.block.Dominates(block)) {
			active = append(active, d)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.block == b.block {
			return a.index > b.index
		}
		return b.block.Dominates(a.block)
	})
	for _, d := range active {
		scratch := l.b.Local("defer", types.NewTuple())
		l.call(d.instr.Common(), ir.LocalPlace(scratch), l.location(d.instr.Pos()))
	}
}

// isRelease returns true if the call is a call to a release function of the config
func (l *lowerer) isRelease(c *ssa.CallCommon) bool {
	cid, ok := CalleeIdentifier(c)
	return ok && l.config.IsReleaseFunction(cid)
}

// CalleeIdentifier returns the code identifier of the function called by c, when it is known statically or is
// an interface method.
func CalleeIdentifier(c *ssa.CallCommon) (config.CodeIdentifier, bool) {
	var recv types.Type
	var method string
	var pkg *types.Package
	if c.IsInvoke() {
		recv = c.Value.Type()
		method = c.Method.Name()
		pkg = c.Method.Pkg()
	} else if callee := c.StaticCallee(); callee != nil {
		method = callee.Name()
		if r := callee.Signature.Recv(); r != nil {
			recv = r.Type()
		}
		if obj := callee.Object(); obj != nil {
			pkg = obj.Pkg()
		}
	} else {
		return config.CodeIdentifier{}, false
	}
	cid := config.CodeIdentifier{Method: method}
	if recv != nil {
		if p, ok := recv.(*types.Pointer); ok {
			recv = p.Elem()
		}
		named, ok := recv.(*types.Named)
		if !ok || named.Obj().Pkg() == nil {
			return config.CodeIdentifier{}, false
		}
		cid.Receiver = named.Obj().Name()
		pkg = named.Obj().Pkg()
	}
	if pkg == nil {
		return config.CodeIdentifier{}, false
	}
	cid.Package = pkg.Path()
	return cid, true
}

// CalleeID returns the identifier of the callee of c: the function for static calls, "(T).M" for interface
// method calls, and the empty identifier for dynamic calls.
func CalleeID(c *ssa.CallCommon) ir.FuncID {
	if c.IsInvoke() {
		return ir.FuncID(fmt.Sprintf("(%s).%s", c.Value.Type(), c.Method.Name()))
	}
	if callee := c.StaticCallee(); callee != nil {
		return FuncID(callee)
	}
	return ""
}
