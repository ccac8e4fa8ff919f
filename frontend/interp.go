//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package frontend

import (
	"context"
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"math"

	"github.com/qasimy123/inlineplan/absinterp"
	"github.com/qasimy123/inlineplan/idt"
	"github.com/qasimy123/inlineplan/summary"
	"github.com/qasimy123/inlineplan/util/region"
	"golang.org/x/tools/go/ssa"
)

// Interpret implements idt.Interpreter.
//
// The blocks are visited once each, every block after its forward predecessors. The state
// entering a block is the join of the states leaving its visited predecessors, each refined by
// the comparison deciding the edge. Values carried around a loop are unknown. Arguments are
// pushed on the operand stack and popped into the argument vector handed to v at each call.
//
// The returned summary is independent of args: it lists every test of a parameter whose
// outcome an argument could decide.
func (p *Program) Interpret(ctx context.Context, target *idt.CallTarget, cfg idt.CFG, args *absinterp.Arguments, callerIndex int, r *region.Region, v idt.Visitor) (*summary.Summary, error) {
	m, ok := target.Callee.(*Method)
	if !ok {
		panic(fmt.Sprintf("ERROR: method %s does not belong to the SSA frontend", target.Callee.Name()))
	}
	g, ok := cfg.(*CFG)
	if !ok || g.fn != m.fn {
		panic(fmt.Sprintf("ERROR: the CFG passed for %s was not built for it", m.Name()))
	}

	in := &interpreter{
		prog:        p,
		method:      m,
		cfg:         g,
		region:      r,
		visitor:     v,
		callerIndex: callerIndex,
		sum:         summary.New(m.Name()),
		exits:       make([]*absinterp.State, len(m.fn.Blocks)),
	}
	for _, b := range g.Order() {
		if err := ctx.Err(); err != nil {
			return in.sum, err
		}
		in.block(b, args)
	}
	return in.sum, nil
}

type interpreter struct {
	prog        *Program
	method      *Method
	cfg         *CFG
	region      *region.Region
	visitor     idt.Visitor
	callerIndex int
	sum         *summary.Summary
	// exits holds the state leaving each visited block.
	exits []*absinterp.State
}

func (in *interpreter) block(b *ssa.BasicBlock, args *absinterp.Arguments) {
	var st *absinterp.State
	var edges []*absinterp.State
	if b.Index == 0 {
		st = in.entryState(args)
	} else {
		st, edges = in.joinPreds(b)
	}

	for _, instr := range b.Instrs {
		index, ok := in.method.Index(instr)
		if !ok {
			continue
		}
		if phi, ok := instr.(*ssa.Phi); ok {
			in.define(st, phi, in.phi(phi, edges))
			continue
		}
		in.instr(st, b, index, instr)
	}
	in.exits[b.Index] = st
}

// entryState binds the arguments to the parameters. Unknown arguments are top.
func (in *interpreter) entryState(args *absinterp.Arguments) *absinterp.State {
	fn := in.method.fn
	st := absinterp.NewState(in.region)
	for i, param := range fn.Params {
		var v *absinterp.Value
		if i < args.Size() && args.At(i) != nil {
			v = args.At(i).Clone(in.region)
		} else {
			v = in.top(param.Type())
		}
		v.SetParameter(i, i == 0 && fn.Signature.Recv() != nil)
		st.Set(i, v)
	}
	for _, fv := range fn.FreeVars {
		in.define(st, fv, in.top(fv.Type()))
	}
	return st
}

// joinPreds returns the state entering b and the state along each incoming edge, nil for
// back edges.
func (in *interpreter) joinPreds(b *ssa.BasicBlock) (*absinterp.State, []*absinterp.State) {
	edges := make([]*absinterp.State, len(b.Preds))
	var st *absinterp.State
	for i, pred := range b.Preds {
		exit := in.exits[pred.Index]
		if exit == nil || in.cfg.IsBackEdge(pred, b) {
			continue
		}
		e := exit.Clone(in.region)
		in.refine(e, pred, b)
		edges[i] = e
		if st == nil {
			st = e.Clone(in.region)
		} else {
			st.Merge(e)
		}
	}
	if st == nil {
		st = absinterp.NewState(in.region)
	}
	return st, edges
}

func (in *interpreter) phi(phi *ssa.Phi, edges []*absinterp.State) *absinterp.Value {
	var v *absinterp.Value
	for i, operand := range phi.Edges {
		if i >= len(edges) || edges[i] == nil {
			// Loop carried.
			return in.top(phi.Type())
		}
		ev := in.value(edges[i], operand).Clone(in.region)
		if v == nil {
			v = ev
		} else {
			v = v.Merge(ev)
		}
	}
	if v == nil {
		return in.top(phi.Type())
	}
	return v
}

func (in *interpreter) instr(st *absinterp.State, b *ssa.BasicBlock, index int, instr ssa.Instruction) {
	r := in.region
	switch instr := instr.(type) {
	case *ssa.If:
		in.branch(index, instr)
	case *ssa.Call:
		in.call(st, b, index, instr)
		in.define(st, instr, in.top(instr.Type()))
	case *ssa.Alloc:
		in.define(st, instr, absinterp.NewClassObject(r, in.prog.Class(instr.Type()), true, true))
	case *ssa.MakeSlice:
		in.define(st, instr, in.makeSlice(st, instr))
	case *ssa.MakeMap, *ssa.MakeChan, *ssa.MakeClosure:
		v := instr.(ssa.Value)
		in.define(st, v, absinterp.NewClassObject(r, in.prog.Class(v.Type()), true, true))
	case *ssa.MakeInterface:
		// The dynamic type is known; a boxed nil pointer is still a non-nil interface.
		in.define(st, instr, absinterp.NewClassObject(r, in.prog.Class(instr.X.Type()), true, true))
	case *ssa.ChangeType:
		in.define(st, instr, in.value(st, instr.X).Clone(r))
	case *ssa.Convert:
		in.define(st, instr, in.convert(st, instr))
	case *ssa.BinOp:
		in.define(st, instr, in.binOp(st, instr))
	case *ssa.UnOp:
		if instr.Op == token.MUL {
			in.nullCheck(index, instr.X)
		}
		in.define(st, instr, in.unOp(st, instr))
	case *ssa.FieldAddr:
		in.nullCheck(index, instr.X)
		in.define(st, instr, absinterp.NewClassObject(r, in.prog.Class(instr.Type()), true, true))
	case *ssa.IndexAddr:
		if _, ok := instr.X.Type().Underlying().(*types.Pointer); ok {
			in.nullCheck(index, instr.X)
		}
		in.define(st, instr, absinterp.NewClassObject(r, in.prog.Class(instr.Type()), true, true))
	case *ssa.Store:
		in.nullCheck(index, instr.Addr)
	case *ssa.TypeAssert:
		in.typeAssert(index, instr)
		in.define(st, instr, in.assertedValue(instr))
	case ssa.Value:
		in.define(st, instr, in.top(instr.Type()))
	}
}

// define records the value of an SSA value in st.
func (in *interpreter) define(st *absinterp.State, v ssa.Value, av *absinterp.Value) {
	if slot, ok := in.method.slot(v); ok {
		st.Set(slot, av)
	}
}

// value evaluates an operand in st. The result belongs to st and must be cloned before being
// stored elsewhere.
func (in *interpreter) value(st *absinterp.State, v ssa.Value) *absinterp.Value {
	r := in.region
	switch v := v.(type) {
	case *ssa.Const:
		return in.constant(v)
	case *ssa.Function, *ssa.Global:
		return absinterp.NewClassObject(r, in.prog.Class(v.Type()), true, true)
	case *ssa.Builtin:
		return absinterp.NewTop(r, absinterp.NoType)
	}
	if slot, ok := in.method.slot(v); ok && slot < st.LocalsSize() {
		if av := st.At(slot); av != nil {
			return av
		}
	}
	return in.top(v.Type())
}

func (in *interpreter) top(t types.Type) *absinterp.Value {
	return absinterp.NewTop(in.region, dataTypeOf(t))
}

func (in *interpreter) constant(c *ssa.Const) *absinterp.Value {
	r := in.region
	if c.Value == nil {
		if isNillable(c.Type()) {
			return absinterp.NewNullObject(r)
		}
		// Zero value of an aggregate.
		return in.top(c.Type())
	}
	if c.Value.Kind() == constant.String {
		return absinterp.NewStringObject(r, constant.StringVal(c.Value), in.prog.Class(c.Type()))
	}
	if n, ok := intConst(c.Value); ok {
		return in.integer(c.Type(), n, n)
	}
	return in.top(c.Type())
}

// integer returns an integer value of type t within [low, high], top when the range does not
// fit the type.
func (in *interpreter) integer(t types.Type, low, high int64) *absinterp.Value {
	tl, th, ok := intRange(t)
	if !ok || low > high || low < tl || high > th || (low == tl && high == th) {
		return in.top(t)
	}
	switch dataTypeOf(t) {
	case absinterp.Int32:
		return absinterp.NewIntRange(in.region, int32(low), int32(high))
	case absinterp.Int64:
		return absinterp.NewLongRange(in.region, low, high)
	default:
		return in.top(t)
	}
}

func (in *interpreter) makeSlice(st *absinterp.State, instr *ssa.MakeSlice) *absinterp.Value {
	low, high := int64(0), int64(math.MaxInt32)
	if l, h, ok := in.value(st, instr.Len).Bounds(); ok {
		low, high = max(l, 0), min(h, math.MaxInt32)
	}
	if low > high {
		low, high = 0, math.MaxInt32
	}
	var elemSize int32
	if s, ok := instr.Type().Underlying().(*types.Slice); ok {
		elemSize = int32(min(_sizes.Sizeof(s.Elem()), math.MaxInt32))
	}
	return absinterp.NewArrayObject(in.region, in.prog.Class(instr.Type()), true, int32(low), int32(high), elemSize)
}

var _sizes = types.SizesFor("gc", "amd64")

func (in *interpreter) convert(st *absinterp.State, instr *ssa.Convert) *absinterp.Value {
	low, high, ok := in.value(st, instr.X).Bounds()
	if !ok {
		return in.top(instr.Type())
	}
	return in.integer(instr.Type(), low, high)
}

func (in *interpreter) binOp(st *absinterp.State, instr *ssa.BinOp) *absinterp.Value {
	xl, xh, xok := in.value(st, instr.X).Bounds()
	yl, yh, yok := in.value(st, instr.Y).Bounds()
	if !xok || !yok {
		return in.top(instr.Type())
	}
	var low, high int64
	var lok, hok bool
	switch instr.Op {
	case token.ADD:
		low, lok = add64(xl, yl)
		high, hok = add64(xh, yh)
	case token.SUB:
		low, lok = sub64(xl, yh)
		high, hok = sub64(xh, yl)
	default:
		return in.top(instr.Type())
	}
	if !lok || !hok {
		return in.top(instr.Type())
	}
	return in.integer(instr.Type(), low, high)
}

func (in *interpreter) unOp(st *absinterp.State, instr *ssa.UnOp) *absinterp.Value {
	low, high, ok := in.value(st, instr.X).Bounds()
	if !ok {
		return in.top(instr.Type())
	}
	switch instr.Op {
	case token.NOT:
		if low == high {
			return in.integer(instr.Type(), 1-low, 1-low)
		}
	case token.SUB:
		if low != math.MinInt64 {
			return in.integer(instr.Type(), -high, -low)
		}
	}
	return in.top(instr.Type())
}

func (in *interpreter) assertedValue(instr *ssa.TypeAssert) *absinterp.Value {
	if instr.CommaOk {
		return in.top(instr.Type())
	}
	_, isIface := instr.AssertedType.Underlying().(*types.Interface)
	return absinterp.NewClassObject(in.region, in.prog.Class(instr.AssertedType), !isIface, false)
}

// call pushes the arguments of a call on the operand stack, pops them into the argument
// vector, and hands the call site to the visitor. Calls to builtins are not call sites.
func (in *interpreter) call(st *absinterp.State, b *ssa.BasicBlock, index int, instr *ssa.Call) {
	common := instr.Common()
	if _, ok := common.Value.(*ssa.Builtin); ok {
		return
	}

	var operands []ssa.Value
	if common.IsInvoke() {
		in.nullCheck(index, common.Value)
		operands = append(operands, common.Value)
	} else if _, ok := common.Value.(*ssa.Function); !ok {
		in.nullCheck(index, common.Value)
	}
	operands = append(operands, common.Args...)

	for _, op := range operands {
		st.Push(in.value(st, op).Clone(in.region))
	}
	args := absinterp.NewArguments(len(operands))
	for i := len(operands) - 1; i >= 0; i-- {
		args.Set(i, st.Pop())
	}

	site := &idt.CallSite{
		Caller:    in.method,
		BCIndex:   index,
		Interface: common.IsInvoke(),
		Instr:     instr,
	}
	if callee := common.StaticCallee(); callee != nil {
		site.Callee = in.prog.Method(callee)
	} else {
		site.Indirect = !common.IsInvoke()
	}
	if in.visitor != nil {
		in.visitor.VisitCallSite(site, in.callerIndex, in.cfg.Block(b), args)
	}
}

func add64(a, b int64) (int64, bool) {
	s := a + b
	if (b > 0 && s < a) || (b < 0 && s > a) {
		return 0, false
	}
	return s, true
}

func sub64(a, b int64) (int64, bool) {
	d := a - b
	if (b > 0 && d > a) || (b < 0 && d < a) {
		return 0, false
	}
	return d, true
}
