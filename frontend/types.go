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
	"go/constant"
	"go/types"
	"math"

	"github.com/qasimy123/inlineplan/absinterp"
)

// Class is the class of a Go type. Classes are created by Program.Class so that identical
// types share one class.
type Class struct {
	t types.Type
}

// Type returns the Go type of the class.
func (c *Class) Type() types.Type { return c.t }

func (c *Class) String() string { return types.TypeString(c.t, nil) }

// Oracle answers type tests over go/types. It implements summary.SubtypeOracle.
//
// A concrete Go type has no subtypes, so a value whose static type is concrete has an exact
// class whether or not it is marked fixed. Only values of interface type may hold other
// dynamic types.
type Oracle struct{}

// IsInstanceOf implements summary.SubtypeOracle.
func (Oracle) IsInstanceOf(instance, cast absinterp.Class, fixed bool) absinterp.YesNoMaybe {
	it, ok := typeOfClass(instance)
	if !ok {
		return absinterp.Maybe
	}
	ct, ok := typeOfClass(cast)
	if !ok {
		return absinterp.Maybe
	}
	if types.Identical(it, ct) {
		return absinterp.Yes
	}

	castIface, castIsIface := ct.Underlying().(*types.Interface)
	instIface, instIsIface := it.Underlying().(*types.Interface)
	switch {
	case (fixed || !instIsIface) && castIsIface:
		if types.Implements(it, castIface) {
			return absinterp.Yes
		}
		return absinterp.No
	case fixed || !instIsIface:
		return absinterp.No
	case castIsIface:
		// Every dynamic type behind an interface that embeds the cast's methods passes.
		if types.Implements(it, castIface) {
			return absinterp.Yes
		}
		return absinterp.Maybe
	default:
		if !types.Implements(ct, instIface) {
			// No value of the cast type can be stored in the instance's interface.
			return absinterp.No
		}
		return absinterp.Maybe
	}
}

func typeOfClass(c absinterp.Class) (types.Type, bool) {
	fc, ok := c.(*Class)
	if !ok || fc == nil || fc.t == nil {
		return nil, false
	}
	return fc.t, true
}

// dataTypeOf maps a Go type to the data type of its abstract values. Integers narrower than 32
// bits and booleans widen to Int32 as on a stack machine; uint32 widens to Int64 so that every
// value fits.
func dataTypeOf(t types.Type) absinterp.DataType {
	switch u := t.Underlying().(type) {
	case *types.Basic:
		switch u.Kind() {
		case types.Bool, types.UntypedBool,
			types.Int8, types.Int16, types.Int32, types.Uint8, types.Uint16, types.UntypedRune:
			return absinterp.Int32
		case types.Int, types.Int64, types.Uint, types.Uint32, types.Uint64, types.Uintptr, types.UntypedInt:
			return absinterp.Int64
		case types.Float32:
			return absinterp.Float
		case types.Float64, types.UntypedFloat:
			return absinterp.Double
		case types.String, types.UntypedString, types.UnsafePointer, types.UntypedNil:
			return absinterp.Address
		default:
			return absinterp.NoType
		}
	case *types.Pointer, *types.Interface, *types.Slice, *types.Map, *types.Chan, *types.Signature:
		return absinterp.Address
	default:
		return absinterp.NoType
	}
}

// intRange returns the range of values of an integer type as an abstract value sees it.
func intRange(t types.Type) (low, high int64, ok bool) {
	b, isBasic := t.Underlying().(*types.Basic)
	if !isBasic {
		return 0, 0, false
	}
	switch b.Kind() {
	case types.Bool, types.UntypedBool:
		return 0, 1, true
	case types.Int8:
		return math.MinInt8, math.MaxInt8, true
	case types.Int16:
		return math.MinInt16, math.MaxInt16, true
	case types.Int32, types.UntypedRune:
		return math.MinInt32, math.MaxInt32, true
	case types.Uint8:
		return 0, math.MaxUint8, true
	case types.Uint16:
		return 0, math.MaxUint16, true
	case types.Uint32:
		return 0, math.MaxUint32, true
	case types.Int, types.Int64, types.UntypedInt:
		return math.MinInt64, math.MaxInt64, true
	case types.Uint, types.Uint64, types.Uintptr:
		// Values above MaxInt64 are not representable; constants there stay unknown.
		return 0, math.MaxInt64, true
	default:
		return 0, 0, false
	}
}

// intConst returns the value of an integer or boolean constant.
func intConst(v constant.Value) (int64, bool) {
	if v == nil {
		return 0, false
	}
	switch v.Kind() {
	case constant.Bool:
		if constant.BoolVal(v) {
			return 1, true
		}
		return 0, true
	case constant.Int:
		return constant.Int64Val(v)
	default:
		return 0, false
	}
}

// isNillable reports whether nil is a value of t.
func isNillable(t types.Type) bool {
	switch t.Underlying().(type) {
	case *types.Pointer, *types.Interface, *types.Slice, *types.Map, *types.Chan, *types.Signature:
		return true
	}
	return false
}
