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

// Package absinterp implements the lattice used by the inlining planner's abstract
// interpretation: abstract values (Value), the operand stack and local variable array of an
// abstract stack machine, and the per-call-site argument vector. Per-instruction semantics are
// supplied by a frontend; this package only provides the values, their join, and the state
// that is propagated and merged at control-flow joins.
package absinterp

import (
	"fmt"
	"strings"

	"github.com/qasimy123/inlineplan/util/region"
)

// DataType is the primitive data type of an abstract value.
type DataType uint8

const (
	// NoType is the data type of a value produced by joining values of different data types.
	NoType DataType = iota
	Int8
	Int16
	Int32
	Int64
	Float
	Double
	Address
)

var _dataTypeNames = [...]string{"NoType", "Int8", "Int16", "Int32", "Int64", "Float", "Double", "Address"}

func (d DataType) String() string {
	if int(d) < len(_dataTypeNames) {
		return _dataTypeNames[d]
	}
	return fmt.Sprintf("DataType(%d)", d)
}

// _noParam marks a value that does not come from a formal parameter.
const _noParam = -1

// Value is the abstract representation of one runtime value. A Value without a constraint is
// the top of its data type, i.e. nothing is known about it.
//
// Values are allocated from the region of the compilation that created them and are merged in
// place; use Clone before merging into a value that is shared.
type Value struct {
	constraint Constraint
	dataType   DataType
	paramPos   int
	implicit   bool
}

func newValue(r *region.Region, c Constraint, dt DataType) *Value {
	v := region.New[Value](r)
	v.constraint = c
	v.dataType = dt
	v.paramPos = _noParam
	return v
}

// NewValue creates a value with the given constraint (nil for top) and data type.
func NewValue(r *region.Region, c Constraint, dt DataType) *Value {
	return newValue(r, c, dt)
}

// NewTop creates the top value of the given data type.
func NewTop(r *region.Region, dt DataType) *Value { return newValue(r, nil, dt) }

// NewTopInt creates the top Int32 value.
func NewTopInt(r *region.Region) *Value { return NewTop(r, Int32) }

// NewTopLong creates the top Int64 value.
func NewTopLong(r *region.Region) *Value { return NewTop(r, Int64) }

// NewTopFloat creates the top Float value.
func NewTopFloat(r *region.Region) *Value { return NewTop(r, Float) }

// NewTopDouble creates the top Double value.
func NewTopDouble(r *region.Region) *Value { return NewTop(r, Double) }

// NewTopObject creates the top Address value.
func NewTopObject(r *region.Region) *Value { return NewTop(r, Address) }

// NewIntConst creates an Int32 constant.
func NewIntConst(r *region.Region, value int32) *Value {
	return newValue(r, &IntConst{Value: value}, Int32)
}

// NewIntRange creates an Int32 value within [low, high].
func NewIntRange(r *region.Region, low, high int32) *Value {
	if low > high {
		panic(fmt.Sprintf("ERROR: empty int range [%d, %d]", low, high))
	}
	if low == high {
		return NewIntConst(r, low)
	}
	if fullIntRange(low, high) {
		return NewTopInt(r)
	}
	return newValue(r, &IntRange{Low: low, High: high}, Int32)
}

// NewLongConst creates an Int64 constant.
func NewLongConst(r *region.Region, value int64) *Value {
	return newValue(r, &LongConst{Value: value}, Int64)
}

// NewLongRange creates an Int64 value within [low, high].
func NewLongRange(r *region.Region, low, high int64) *Value {
	if low > high {
		panic(fmt.Sprintf("ERROR: empty long range [%d, %d]", low, high))
	}
	if low == high {
		return NewLongConst(r, low)
	}
	return newValue(r, &LongRange{Low: low, High: high}, Int64)
}

// NewClassObject creates an object of the given class (nil when unknown). fixed records that
// the class is the exact runtime class rather than an upper bound.
func NewClassObject(r *region.Region, class Class, fixed, mustBeNonNull bool) *Value {
	if class == nil && !mustBeNonNull {
		return NewTopObject(r)
	}
	c := &ClassType{Class: class, Fixed: fixed && class != nil}
	if mustBeNonNull {
		c.Nullness = NonNull
	}
	return newValue(r, c, Address)
}

// NewArrayObject creates an array object whose length lies within [lengthLow, lengthHigh].
func NewArrayObject(r *region.Region, arrayClass Class, mustBeNonNull bool, lengthLow, lengthHigh, elementSize int32) *Value {
	c := &ClassType{
		Class: arrayClass,
		Array: &ArrayInfo{LengthLow: lengthLow, LengthHigh: lengthHigh, ElementSize: elementSize},
	}
	if mustBeNonNull {
		c.Nullness = NonNull
	}
	return newValue(r, c, Address)
}

// NewNullObject creates the null object.
func NewNullObject(r *region.Region) *Value {
	return newValue(r, &ClassType{Nullness: Null}, Address)
}

// NewStringObject creates a constant string object.
func NewStringObject(r *region.Region, value string, stringClass Class) *Value {
	return newValue(r, &ConstString{Value: value, Class: stringClass}, Address)
}

// Clone copies v into region r, including its parameter marks.
func (v *Value) Clone(r *region.Region) *Value {
	c := newValue(r, cloneConstraint(v.constraint), v.dataType)
	c.paramPos = v.paramPos
	c.implicit = v.implicit
	return c
}

// Constraint returns the constraint of v, nil when v is top.
func (v *Value) Constraint() Constraint { return v.constraint }

// DataType returns the data type of v.
func (v *Value) DataType() DataType { return v.dataType }

// IsTop reports whether nothing is known about v.
func (v *Value) IsTop() bool { return v.constraint == nil }

// SetToTop forgets everything known about v. The data type and parameter marks are kept.
func (v *Value) SetToTop() { v.constraint = nil }

// SetParameter marks v as the value of formal parameter pos. implicit marks the receiver.
func (v *Value) SetParameter(pos int, implicit bool) {
	v.paramPos = pos
	v.implicit = implicit
}

// ParamPos returns the formal parameter position v came from, if any.
func (v *Value) ParamPos() (int, bool) { return v.paramPos, v.paramPos != _noParam }

// IsParameter reports whether v is the value of a formal parameter.
func (v *Value) IsParameter() bool { return v.paramPos != _noParam }

// IsImplicitParameter reports whether v is the receiver of the method.
func (v *Value) IsImplicitParameter() bool { return v.implicit }

// Merge joins other into v in place and returns v.
//
// Joining values of different data types yields the top of NoType. Joining with top yields
// top. Differing parameter positions are dropped.
func (v *Value) Merge(other *Value) *Value {
	if other == nil {
		panic("ERROR: cannot merge with a nil abstract value")
	}

	if v.dataType != other.dataType {
		v.constraint = nil
		v.dataType = NoType
		v.paramPos = _noParam
		v.implicit = false
		return v
	}

	if v.paramPos != other.paramPos {
		v.paramPos = _noParam
		v.implicit = false
	}

	if v.constraint == nil {
		return v
	}
	if other.constraint == nil {
		v.constraint = nil
		return v
	}

	merged := mergeConstraints(v.constraint, other.constraint)
	if r, ok := merged.(*IntRange); ok && fullIntRange(r.Low, r.High) {
		merged = nil
	}
	v.constraint = merged
	return v
}

// Equal reports whether v and other describe the same abstract value.
func (v *Value) Equal(other *Value) bool {
	if v == nil || other == nil {
		return v == other
	}
	if v.dataType != other.dataType || v.paramPos != other.paramPos || v.implicit != other.implicit {
		return false
	}
	if v.constraint == nil || other.constraint == nil {
		return v.constraint == nil && other.constraint == nil
	}
	return v.constraint.String() == other.constraint.String()
}

// IsIntConst reports whether v is an Int32 constant.
func (v *Value) IsIntConst() bool { _, ok := v.constraint.(*IntConst); return ok }

// IsIntRange reports whether v is an Int32 range.
func (v *Value) IsIntRange() bool { _, ok := v.constraint.(*IntRange); return ok }

// IsInt reports whether v has integer bounds.
func (v *Value) IsInt() bool { _, _, ok := intBounds(v.constraint); return ok }

// IsLongConst reports whether v is an Int64 constant.
func (v *Value) IsLongConst() bool { _, ok := v.constraint.(*LongConst); return ok }

// IsLongRange reports whether v is an Int64 range.
func (v *Value) IsLongRange() bool { _, ok := v.constraint.(*LongRange); return ok }

// IsLong reports whether v has long bounds.
func (v *Value) IsLong() bool { _, _, ok := longBounds(v.constraint); return ok }

// IsClassObject reports whether v is an object with class information.
func (v *Value) IsClassObject() bool {
	c, ok := asClassType(v.constraint)
	return ok && c.Class != nil
}

// IsArrayObject reports whether v is an array object.
func (v *Value) IsArrayObject() bool {
	c, ok := v.constraint.(*ClassType)
	return ok && c.Array != nil
}

// IsNullObject reports whether v is definitely null.
func (v *Value) IsNullObject() bool { return v.Nullness() == Null }

// IsNonNullObject reports whether v is definitely not null.
func (v *Value) IsNonNullObject() bool { return v.Nullness() == NonNull }

// IsStringObject reports whether v is a constant string.
func (v *Value) IsStringObject() bool { _, ok := v.constraint.(*ConstString); return ok }

// IntBounds returns the interval of an integer value.
func (v *Value) IntBounds() (low, high int32, ok bool) { return intBounds(v.constraint) }

// LongBounds returns the interval of a long value.
func (v *Value) LongBounds() (low, high int64, ok bool) { return longBounds(v.constraint) }

// Bounds returns the interval of an integer or long value widened to 64 bits.
func (v *Value) Bounds() (low, high int64, ok bool) {
	if l, h, ok := intBounds(v.constraint); ok {
		return int64(l), int64(h), true
	}
	return longBounds(v.constraint)
}

// Nullness returns what is known about the nullness of an object value; non-object values
// and top are MaybeNull.
func (v *Value) Nullness() Nullness {
	if c, ok := asClassType(v.constraint); ok {
		return c.Nullness
	}
	return MaybeNull
}

// IsNonNull answers whether v is non-null: Yes, No (v is null) or Maybe.
func (v *Value) IsNonNull() YesNoMaybe {
	switch v.Nullness() {
	case NonNull:
		return Yes
	case Null:
		return No
	default:
		return Maybe
	}
}

// Class returns the class of an object value and whether it is the exact runtime class.
func (v *Value) Class() (Class, bool) {
	if c, ok := asClassType(v.constraint); ok {
		return c.Class, c.Fixed
	}
	return nil, false
}

func (v *Value) String() string {
	var sb strings.Builder
	sb.WriteString("AbsValue: Type: ")
	sb.WriteString(v.dataType.String())
	if v.constraint != nil {
		sb.WriteString(" Constraint: ")
		sb.WriteString(v.constraint.String())
	} else {
		sb.WriteString(" TOP (unknown)")
	}
	if v.paramPos != _noParam {
		fmt.Fprintf(&sb, " param position: %d", v.paramPos)
	}
	if v.implicit {
		sb.WriteString(" {implicit param}")
	}
	return sb.String()
}
