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
	"go/token"

	"github.com/qasimy123/inlineplan/absinterp"
	"github.com/qasimy123/inlineplan/summary"
	"golang.org/x/tools/go/ssa"
)

var _branchKinds = map[token.Token]summary.BranchKind{
	token.EQL: summary.IfEq,
	token.NEQ: summary.IfNe,
	token.LSS: summary.IfLt,
	token.GTR: summary.IfGt,
	token.LEQ: summary.IfLe,
	token.GEQ: summary.IfGe,
}

// mirror returns the comparison with its operands swapped: c < x is x > c.
func mirror(op token.Token) token.Token {
	switch op {
	case token.LSS:
		return token.GTR
	case token.GTR:
		return token.LSS
	case token.LEQ:
		return token.GEQ
	case token.GEQ:
		return token.LEQ
	default:
		return op
	}
}

// negate returns the comparison holding when op does not.
func negate(op token.Token) token.Token {
	switch op {
	case token.EQL:
		return token.NEQ
	case token.NEQ:
		return token.EQL
	case token.LSS:
		return token.GEQ
	case token.GEQ:
		return token.LSS
	case token.GTR:
		return token.LEQ
	case token.LEQ:
		return token.GTR
	default:
		return token.ILLEGAL
	}
}

// comparison decomposes a condition into "x op k" with k a constant, or reports false.
func comparison(cond ssa.Value) (x ssa.Value, op token.Token, k *ssa.Const, ok bool) {
	bin, isBin := cond.(*ssa.BinOp)
	if !isBin {
		return nil, token.ILLEGAL, nil, false
	}
	if _, known := _branchKinds[bin.Op]; !known {
		return nil, token.ILLEGAL, nil, false
	}
	x, op = bin.X, bin.Op
	k, ok = bin.Y.(*ssa.Const)
	if !ok {
		if k, ok = bin.X.(*ssa.Const); ok {
			x, op = bin.Y, mirror(op)
		}
	}
	return x, op, k, ok
}

// branch records the predicates of a conditional branch on a parameter.
func (in *interpreter) branch(index int, instr *ssa.If) {
	if pos, ok := in.method.paramPos(instr.Cond); ok {
		// if flag: taken when the flag differs from false.
		in.sum.AddOpt(index, &summary.BranchFoldingPredicate{Branch: summary.IfNe}, pos)
		return
	}
	x, op, k, ok := comparison(instr.Cond)
	if !ok {
		return
	}
	pos, ok := in.method.paramPos(x)
	if !ok {
		return
	}
	if k.IsNil() {
		switch op {
		case token.EQL:
			in.sum.AddOpt(index, &summary.NullBranchFoldingPredicate{Branch: summary.IfNull}, pos)
		case token.NEQ:
			in.sum.AddOpt(index, &summary.NullBranchFoldingPredicate{Branch: summary.IfNonNull}, pos)
		}
		return
	}
	if c, ok := intConst(k.Value); ok {
		in.sum.AddOpt(index, &summary.BranchFoldingPredicate{Branch: _branchKinds[op], Constant: c}, pos)
	}
}

// nullCheck records the implicit nil check of dereferencing v when v is a parameter.
func (in *interpreter) nullCheck(index int, v ssa.Value) {
	if pos, ok := in.method.paramPos(v); ok {
		in.sum.AddOpt(index, &summary.NullCheckFoldingPredicate{}, pos)
	}
}

// typeAssert records the type test of a type assertion on a parameter: a test when the
// assertion reports success, a checked cast when it panics on failure.
func (in *interpreter) typeAssert(index int, instr *ssa.TypeAssert) {
	pos, ok := in.method.paramPos(instr.X)
	if !ok {
		return
	}
	cast := in.prog.Class(instr.AssertedType)
	if instr.CommaOk {
		in.sum.AddOpt(index, &summary.InstanceOfFoldingPredicate{CastClass: cast, Oracle: Oracle{}}, pos)
		return
	}
	in.sum.AddOpt(index, &summary.CheckCastFoldingPredicate{CastClass: cast, Oracle: Oracle{}}, pos)
}

// refine narrows the value compared by the branch ending pred to what holds along the edge to
// succ. Edges that cannot be taken keep the state unchanged.
func (in *interpreter) refine(st *absinterp.State, pred, succ *ssa.BasicBlock) {
	if len(pred.Instrs) == 0 || len(pred.Succs) != 2 || pred.Succs[0] == pred.Succs[1] {
		return
	}
	instr, ok := pred.Instrs[len(pred.Instrs)-1].(*ssa.If)
	if !ok {
		return
	}
	taken := succ == pred.Succs[0]

	if _, ok := in.method.slot(instr.Cond); ok {
		b := int64(0)
		if taken {
			b = 1
		}
		in.narrow(st, instr.Cond, in.integer(instr.Cond.Type(), b, b))
	}

	x, op, k, ok := comparison(instr.Cond)
	if !ok {
		return
	}
	if !taken {
		op = negate(op)
	}
	cur := in.value(st, x)

	if k.IsNil() {
		switch op {
		case token.EQL:
			in.narrow(st, x, absinterp.NewNullObject(in.region))
		case token.NEQ:
			class, fixed := cur.Class()
			if class == nil {
				class, fixed = in.prog.Class(x.Type()), false
			}
			in.narrow(st, x, absinterp.NewClassObject(in.region, class, fixed, true))
		}
		return
	}

	c, ok := intConst(k.Value)
	if !ok {
		return
	}
	low, high, ok := cur.Bounds()
	if !ok {
		if low, high, ok = intRange(x.Type()); !ok {
			return
		}
	}
	switch op {
	case token.EQL:
		low, high = max(low, c), min(high, c)
	case token.NEQ:
		if low == c && c < high {
			low++
		} else if high == c && c > low {
			high--
		}
	case token.LSS:
		if c-1 > c {
			return
		}
		high = min(high, c-1)
	case token.LEQ:
		high = min(high, c)
	case token.GTR:
		if c+1 < c {
			return
		}
		low = max(low, c+1)
	case token.GEQ:
		low = max(low, c)
	}
	if low > high {
		return
	}
	in.narrow(st, x, in.integer(x.Type(), low, high))
}

// narrow replaces the value of x in st, keeping its parameter mark.
func (in *interpreter) narrow(st *absinterp.State, x ssa.Value, v *absinterp.Value) {
	slot, ok := in.method.slot(x)
	if !ok || slot >= st.LocalsSize() {
		return
	}
	if old := st.At(slot); old != nil {
		if pos, isParam := old.ParamPos(); isParam {
			v.SetParameter(pos, old.IsImplicitParameter())
		}
	}
	st.Set(slot, v)
}
