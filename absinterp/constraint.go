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

package absinterp

import (
	"fmt"
	"math"
)

// YesNoMaybe is a three-valued answer. The zero value is Maybe.
type YesNoMaybe int8

const (
	// Maybe means the property cannot be decided statically.
	Maybe YesNoMaybe = iota
	// Yes means the property definitely holds.
	Yes
	// No means the property definitely does not hold.
	No
)

func (y YesNoMaybe) String() string {
	switch y {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "maybe"
	}
}

// Class is an opaque handle to a class (or type) of the program being compiled. The frontend
// decides what it wraps; the lattice only compares classes for identity.
type Class interface {
	String() string
}

// Nullness records what is known about the nullness of an object value. The zero value is
// MaybeNull.
type Nullness int8

const (
	// MaybeNull means the object may or may not be null.
	MaybeNull Nullness = iota
	// NonNull means the object is definitely not null.
	NonNull
	// Null means the object is definitely null.
	Null
)

func (n Nullness) String() string {
	switch n {
	case NonNull:
		return "nonnull"
	case Null:
		return "null"
	default:
		return "maybe-null"
	}
}

// A Constraint is the precise part of an abstract value. A nil Constraint means lattice top.
// The set of constraints is closed: IntConst, IntRange, LongConst, LongRange, ClassType and
// ConstString.
type Constraint interface {
	isConstraint()
	String() string
}

// IntConst is a 32-bit integer known exactly.
type IntConst struct {
	Value int32
}

// IntRange is a 32-bit integer known to lie within [Low, High].
type IntRange struct {
	Low, High int32
}

// LongConst is a 64-bit integer known exactly.
type LongConst struct {
	Value int64
}

// LongRange is a 64-bit integer known to lie within [Low, High].
type LongRange struct {
	Low, High int64
}

// ArrayInfo describes the length of an array object.
type ArrayInfo struct {
	LengthLow, LengthHigh int32
	ElementSize           int32
}

// ClassType constrains an object value: its class (nil when unknown), whether that class is
// the exact runtime class (Fixed), its nullness and, for arrays, the length information.
type ClassType struct {
	Class    Class
	Fixed    bool
	Nullness Nullness
	Array    *ArrayInfo
}

// ConstString is a non-null string object with a known value.
type ConstString struct {
	Value string
	Class Class
}

func (*IntConst) isConstraint()    {}
func (*IntRange) isConstraint()    {}
func (*LongConst) isConstraint()   {}
func (*LongRange) isConstraint()   {}
func (*ClassType) isConstraint()   {}
func (*ConstString) isConstraint() {}

func (c *IntConst) String() string  { return fmt.Sprintf("IntConst %d", c.Value) }
func (c *IntRange) String() string  { return fmt.Sprintf("IntRange [%d, %d]", c.Low, c.High) }
func (c *LongConst) String() string { return fmt.Sprintf("LongConst %d", c.Value) }
func (c *LongRange) String() string { return fmt.Sprintf("LongRange [%d, %d]", c.Low, c.High) }

func (c *ClassType) String() string {
	name := "<unknown>"
	if c.Class != nil {
		name = c.Class.String()
	}
	s := fmt.Sprintf("Class %s %s", name, c.Nullness)
	if c.Fixed {
		s += " fixed"
	}
	if c.Array != nil {
		s += fmt.Sprintf(" array len [%d, %d]", c.Array.LengthLow, c.Array.LengthHigh)
	}
	return s
}

func (c *ConstString) String() string { return fmt.Sprintf("ConstString %q", c.Value) }

// intBounds returns the interval covered by an integer constraint.
func intBounds(c Constraint) (low, high int32, ok bool) {
	switch c := c.(type) {
	case *IntConst:
		return c.Value, c.Value, true
	case *IntRange:
		return c.Low, c.High, true
	}
	return 0, 0, false
}

// longBounds returns the interval covered by a long constraint.
func longBounds(c Constraint) (low, high int64, ok bool) {
	switch c := c.(type) {
	case *LongConst:
		return c.Value, c.Value, true
	case *LongRange:
		return c.Low, c.High, true
	}
	return 0, 0, false
}

// asClassType views object constraints uniformly; a constant string is a fixed non-null
// object of its string class.
func asClassType(c Constraint) (*ClassType, bool) {
	switch c := c.(type) {
	case *ClassType:
		return c, true
	case *ConstString:
		return &ClassType{Class: c.Class, Fixed: c.Class != nil, Nullness: NonNull}, true
	}
	return nil, false
}

// mergeConstraints returns the least upper bound of two non-top constraints, or nil (top)
// when nothing survives the join.
func mergeConstraints(a, b Constraint) Constraint {
	if lowA, highA, ok := intBounds(a); ok {
		lowB, highB, ok := intBounds(b)
		if !ok {
			return nil
		}
		low, high := min(lowA, lowB), max(highA, highB)
		if low == high {
			return &IntConst{Value: low}
		}
		return &IntRange{Low: low, High: high}
	}

	if lowA, highA, ok := longBounds(a); ok {
		lowB, highB, ok := longBounds(b)
		if !ok {
			return nil
		}
		low, high := min(lowA, lowB), max(highA, highB)
		if low == high {
			return &LongConst{Value: low}
		}
		return &LongRange{Low: low, High: high}
	}

	if sa, ok := a.(*ConstString); ok {
		if sb, ok := b.(*ConstString); ok && sa.Value == sb.Value {
			return &ConstString{Value: sa.Value, Class: sa.Class}
		}
	}

	ca, ok := asClassType(a)
	if !ok {
		return nil
	}
	cb, ok := asClassType(b)
	if !ok {
		return nil
	}
	return mergeClassTypes(ca, cb)
}

func mergeClassTypes(a, b *ClassType) Constraint {
	merged := &ClassType{Nullness: MaybeNull}
	if a.Nullness == b.Nullness {
		merged.Nullness = a.Nullness
	}

	// A null object carries no class of its own, so the other side's class survives the join;
	// only the exactness is lost.
	switch {
	case a.Nullness == Null && b.Class != nil:
		merged.Class = b.Class
	case b.Nullness == Null && a.Class != nil:
		merged.Class = a.Class
	case a.Class != nil && b.Class != nil && a.Class == b.Class:
		merged.Class = a.Class
		merged.Fixed = a.Fixed && b.Fixed
	}

	if a.Array != nil && b.Array != nil {
		merged.Array = &ArrayInfo{
			LengthLow:  min(a.Array.LengthLow, b.Array.LengthLow),
			LengthHigh: max(a.Array.LengthHigh, b.Array.LengthHigh),
		}
		if a.Array.ElementSize == b.Array.ElementSize {
			merged.Array.ElementSize = a.Array.ElementSize
		}
	}

	if merged.Class == nil && merged.Nullness == MaybeNull && merged.Array == nil {
		return nil
	}
	return merged
}

// cloneConstraint returns a deep copy, so in-place merges never leak across values.
func cloneConstraint(c Constraint) Constraint {
	switch c := c.(type) {
	case nil:
		return nil
	case *IntConst:
		cp := *c
		return &cp
	case *IntRange:
		cp := *c
		return &cp
	case *LongConst:
		cp := *c
		return &cp
	case *LongRange:
		cp := *c
		return &cp
	case *ConstString:
		cp := *c
		return &cp
	case *ClassType:
		cp := *c
		if c.Array != nil {
			arr := *c.Array
			cp.Array = &arr
		}
		return &cp
	}
	panic(fmt.Sprintf("ERROR: unrecognized constraint %T", c))
}

// fullIntRange reports whether an int range spans every int32, i.e. carries no information.
func fullIntRange(low, high int32) bool {
	return low == math.MinInt32 && high == math.MaxInt32
}
