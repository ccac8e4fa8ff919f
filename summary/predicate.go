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

package summary

import (
	"fmt"

	"github.com/qasimy123/inlineplan/absinterp"
)

// SubtypeOracle answers subtype questions on behalf of the frontend.
type SubtypeOracle interface {
	// IsInstanceOf answers whether an object of class instance (exactly that class when fixed,
	// any subclass otherwise) is an instance of class cast.
	IsInstanceOf(instance, cast absinterp.Class, fixed bool) absinterp.YesNoMaybe
}

// OptKind is the kind of secondary optimization a predicate guards.
type OptKind uint8

const (
	// BranchFolding removes a conditional branch on an integer.
	BranchFolding OptKind = iota
	// NullBranchFolding removes a conditional branch on nullness.
	NullBranchFolding
	// NullCheckFolding removes an implicit or explicit null check.
	NullCheckFolding
	// InstanceOfFolding folds a type test.
	InstanceOfFolding
	// CheckCastFolding folds a checked cast.
	CheckCastFolding
)

func (k OptKind) String() string {
	switch k {
	case BranchFolding:
		return "Branch Folding"
	case NullBranchFolding:
		return "NullBranch Folding"
	case NullCheckFolding:
		return "NullCheck Folding"
	case InstanceOfFolding:
		return "InstanceOf Folding"
	case CheckCastFolding:
		return "CheckCast Folding"
	}
	panic(fmt.Sprintf("ERROR: unexpected optimization kind %d", uint8(k)))
}

// A Predicate decides whether an argument value is precise enough to perform one potential
// optimization statically.
type Predicate interface {
	Kind() OptKind
	Test(v *absinterp.Value) bool
	String() string
}

// BranchKind is the comparison a conditional branch performs against zero.
type BranchKind uint8

const (
	IfEq BranchKind = iota
	IfNe
	IfLt
	IfGt
	IfLe
	IfGe
)

var _branchKindNames = [...]string{"IfEq", "IfNe", "IfLt", "IfGt", "IfLe", "IfGe"}

func (k BranchKind) String() string {
	if int(k) < len(_branchKindNames) {
		return _branchKindNames[k]
	}
	return fmt.Sprintf("BranchKind(%d)", k)
}

// BranchFoldingPredicate is satisfied by integer arguments whose range decides the branch.
// The branch compares the argument minus Constant against zero.
type BranchFoldingPredicate struct {
	Branch   BranchKind
	Constant int64
}

// Kind implements Predicate.
func (*BranchFoldingPredicate) Kind() OptKind { return BranchFolding }

// Test implements Predicate.
func (p *BranchFoldingPredicate) Test(v *absinterp.Value) bool {
	low, high, ok := p.bounds(v)
	return ok && FoldBranch(low, high, p.Branch)
}

// TakeTheBranch reports whether the branch is always taken for v.
func (p *BranchFoldingPredicate) TakeTheBranch(v *absinterp.Value) bool {
	low, high, ok := p.bounds(v)
	return ok && TakeTheBranch(low, high, p.Branch)
}

// NotTakeTheBranch reports whether the branch is never taken for v.
func (p *BranchFoldingPredicate) NotTakeTheBranch(v *absinterp.Value) bool {
	low, high, ok := p.bounds(v)
	return ok && NotTakeTheBranch(low, high, p.Branch)
}

func (p *BranchFoldingPredicate) bounds(v *absinterp.Value) (low, high int64, ok bool) {
	if v == nil {
		return 0, 0, false
	}
	low, high, ok = v.Bounds()
	if !ok {
		return 0, 0, false
	}
	// Shifting may overflow for constants near the int64 edges; give up in that case.
	sl, sh := low-p.Constant, high-p.Constant
	if (p.Constant > 0 && (sl > low || sh > high)) || (p.Constant < 0 && (sl < low || sh < high)) {
		return 0, 0, false
	}
	return sl, sh, true
}

func (p *BranchFoldingPredicate) String() string {
	if p.Constant == 0 {
		return fmt.Sprintf("%s %s", BranchFolding, p.Branch)
	}
	return fmt.Sprintf("%s %s against %d", BranchFolding, p.Branch, p.Constant)
}

// FoldBranch reports whether a branch comparing a value in [low, high] against zero is
// decided, either way.
func FoldBranch(low, high int64, kind BranchKind) bool {
	return TakeTheBranch(low, high, kind) || NotTakeTheBranch(low, high, kind)
}

// TakeTheBranch reports whether the branch is always taken for every value in [low, high].
func TakeTheBranch(low, high int64, kind BranchKind) bool {
	switch kind {
	case IfEq:
		return low == 0 && high == 0
	case IfNe:
		return low >= 1 || high <= -1
	case IfLt:
		return high <= -1
	case IfGt:
		return low >= 1
	case IfLe:
		return high <= 0
	case IfGe:
		return low >= 0
	}
	panic(fmt.Sprintf("ERROR: unexpected branch kind %s", kind))
}

// NotTakeTheBranch reports whether the branch is never taken for any value in [low, high].
func NotTakeTheBranch(low, high int64, kind BranchKind) bool {
	switch kind {
	case IfEq:
		return low >= 1 || high <= -1
	case IfNe:
		return low == 0 && high == 0
	case IfLt:
		return low >= 0
	case IfGt:
		return high <= 0
	case IfLe:
		return low >= 1
	case IfGe:
		return high <= -1
	}
	panic(fmt.Sprintf("ERROR: unexpected branch kind %s", kind))
}

// NullBranchKind is the nullness test a conditional branch performs.
type NullBranchKind uint8

const (
	IfNull NullBranchKind = iota
	IfNonNull
)

func (k NullBranchKind) String() string {
	if k == IfNull {
		return "IfNull"
	}
	return "IfNonNull"
}

// NullBranchFoldingPredicate is satisfied by arguments of definite nullness.
type NullBranchFoldingPredicate struct {
	Branch NullBranchKind
}

// Kind implements Predicate.
func (*NullBranchFoldingPredicate) Kind() OptKind { return NullBranchFolding }

// Test implements Predicate.
func (p *NullBranchFoldingPredicate) Test(v *absinterp.Value) bool {
	return v != nil && v.IsNonNull() != absinterp.Maybe
}

// TakeTheBranch reports whether the branch is always taken for v.
func (p *NullBranchFoldingPredicate) TakeTheBranch(v *absinterp.Value) bool {
	if v == nil {
		return false
	}
	if p.Branch == IfNull {
		return v.IsNonNull() == absinterp.No
	}
	return v.IsNonNull() == absinterp.Yes
}

// NotTakeTheBranch reports whether the branch is never taken for v.
func (p *NullBranchFoldingPredicate) NotTakeTheBranch(v *absinterp.Value) bool {
	if v == nil {
		return false
	}
	if p.Branch == IfNull {
		return v.IsNonNull() == absinterp.Yes
	}
	return v.IsNonNull() == absinterp.No
}

func (p *NullBranchFoldingPredicate) String() string {
	return fmt.Sprintf("%s %s", NullBranchFolding, p.Branch)
}

// NullCheckFoldingPredicate is satisfied by arguments of definite nullness: the check is
// either removed or known to throw.
type NullCheckFoldingPredicate struct{}

// Kind implements Predicate.
func (*NullCheckFoldingPredicate) Kind() OptKind { return NullCheckFolding }

// Test implements Predicate.
func (*NullCheckFoldingPredicate) Test(v *absinterp.Value) bool {
	return v != nil && v.IsNonNull() != absinterp.Maybe
}

// RemoveNullCheck reports whether the check can be dropped.
func (*NullCheckFoldingPredicate) RemoveNullCheck(v *absinterp.Value) bool {
	return v != nil && v.IsNonNull() == absinterp.Yes
}

// ThrowException reports whether the check always fails.
func (*NullCheckFoldingPredicate) ThrowException(v *absinterp.Value) bool {
	return v != nil && v.IsNonNull() == absinterp.No
}

func (*NullCheckFoldingPredicate) String() string { return NullCheckFolding.String() }

// InstanceOfFoldingPredicate is satisfied by arguments whose class decides a type test
// against CastClass.
type InstanceOfFoldingPredicate struct {
	CastClass absinterp.Class
	Oracle    SubtypeOracle
}

// Kind implements Predicate.
func (*InstanceOfFoldingPredicate) Kind() OptKind { return InstanceOfFolding }

// Test implements Predicate.
func (p *InstanceOfFoldingPredicate) Test(v *absinterp.Value) bool {
	return foldsTypeTest(v, p.CastClass, p.Oracle) != absinterp.Maybe
}

// FoldToTrue reports whether the test always succeeds for v.
func (p *InstanceOfFoldingPredicate) FoldToTrue(v *absinterp.Value) bool {
	return v != nil && v.IsNonNull() != absinterp.No && foldsTypeTest(v, p.CastClass, p.Oracle) == absinterp.Yes
}

// FoldToFalse reports whether the test always fails for v. A null object is never an
// instance of anything.
func (p *InstanceOfFoldingPredicate) FoldToFalse(v *absinterp.Value) bool {
	if v != nil && v.IsNonNull() == absinterp.No {
		return true
	}
	return foldsTypeTest(v, p.CastClass, p.Oracle) == absinterp.No
}

func (p *InstanceOfFoldingPredicate) String() string {
	return fmt.Sprintf("%s %s", InstanceOfFolding, className(p.CastClass))
}

// CheckCastFoldingPredicate is satisfied by arguments whose class decides a checked cast to
// CastClass.
type CheckCastFoldingPredicate struct {
	CastClass absinterp.Class
	Oracle    SubtypeOracle
}

// Kind implements Predicate.
func (*CheckCastFoldingPredicate) Kind() OptKind { return CheckCastFolding }

// Test implements Predicate.
func (p *CheckCastFoldingPredicate) Test(v *absinterp.Value) bool {
	return foldsTypeTest(v, p.CastClass, p.Oracle) != absinterp.Maybe
}

// CheckCastSucceed reports whether the cast always succeeds for v. Casting null succeeds.
func (p *CheckCastFoldingPredicate) CheckCastSucceed(v *absinterp.Value) bool {
	if v != nil && v.IsNonNull() == absinterp.No {
		return true
	}
	return foldsTypeTest(v, p.CastClass, p.Oracle) == absinterp.Yes
}

// ThrowException reports whether the cast always fails for v.
func (p *CheckCastFoldingPredicate) ThrowException(v *absinterp.Value) bool {
	if v != nil && v.IsNonNull() == absinterp.No {
		return false
	}
	return foldsTypeTest(v, p.CastClass, p.Oracle) == absinterp.No
}

func (p *CheckCastFoldingPredicate) String() string {
	return fmt.Sprintf("%s %s", CheckCastFolding, className(p.CastClass))
}

// foldsTypeTest answers the type test of v against cast. A definitely null value decides the
// test on its own; otherwise both classes and the oracle are needed.
func foldsTypeTest(v *absinterp.Value, cast absinterp.Class, oracle SubtypeOracle) absinterp.YesNoMaybe {
	if v == nil || v.IsTop() {
		return absinterp.Maybe
	}
	if v.IsNonNull() == absinterp.No {
		return absinterp.No
	}
	instance, fixed := v.Class()
	if instance == nil || cast == nil || oracle == nil {
		return absinterp.Maybe
	}
	return oracle.IsInstanceOf(instance, cast, fixed)
}

func className(c absinterp.Class) string {
	if c == nil {
		return "<unknown>"
	}
	return c.String()
}
