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
	"strings"

	"github.com/qasimy123/inlineplan/util/region"
)

// OpStack is the abstract operand stack.
type OpStack struct {
	values []*Value
}

// NewOpStack returns an empty operand stack.
func NewOpStack() *OpStack { return &OpStack{} }

// Push pushes a value. Pushing nil is a programming error.
func (s *OpStack) Push(v *Value) {
	if v == nil {
		panic("ERROR: push a nil abstract value")
	}
	s.values = append(s.values, v)
}

// Pop removes and returns the top of the stack.
func (s *OpStack) Pop() *Value {
	if len(s.values) == 0 {
		panic("ERROR: pop an empty stack")
	}
	v := s.values[len(s.values)-1]
	s.values[len(s.values)-1] = nil
	s.values = s.values[:len(s.values)-1]
	return v
}

// Peek returns the top of the stack without removing it.
func (s *OpStack) Peek() *Value {
	if len(s.values) == 0 {
		panic("ERROR: peek an empty stack")
	}
	return s.values[len(s.values)-1]
}

// Size returns the stack depth.
func (s *OpStack) Size() int { return len(s.values) }

// Empty reports whether the stack is empty.
func (s *OpStack) Empty() bool { return len(s.values) == 0 }

// Clone deep copies the stack into region r.
func (s *OpStack) Clone(r *region.Region) *OpStack {
	c := &OpStack{values: make([]*Value, len(s.values))}
	for i, v := range s.values {
		c.values[i] = v.Clone(r)
	}
	return c
}

// Merge joins other into s slot by slot. Both stacks must have the same depth, which the
// bytecode verifier guarantees at control-flow joins.
func (s *OpStack) Merge(other *OpStack) {
	if len(s.values) != len(other.values) {
		panic(fmt.Sprintf("ERROR: stacks have different sizes: %d vs %d", len(s.values), len(other.values)))
	}
	for i := range s.values {
		s.values[i].Merge(other.values[i])
	}
}

// SetToTop sets every slot to top.
func (s *OpStack) SetToTop() {
	for _, v := range s.values {
		v.SetToTop()
	}
}

func (s *OpStack) String() string {
	var sb strings.Builder
	sb.WriteString("Contents of Abstract Operand Stack:\n")
	if len(s.values) == 0 {
		sb.WriteString("<empty>\n")
		return sb.String()
	}
	sb.WriteString("<top>\n")
	for i := len(s.values) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "S[%d] = %s\n", i, s.values[i])
	}
	sb.WriteString("<bottom>\n")
	return sb.String()
}

// LocalVarArray is the abstract local variable array. Slots may be unset (nil).
type LocalVarArray struct {
	region *region.Region
	values []*Value
}

// NewLocalVarArray returns an empty local variable array whose merges allocate from r.
func NewLocalVarArray(r *region.Region) *LocalVarArray {
	return &LocalVarArray{region: r}
}

// At returns slot i, nil when the slot is unset.
func (a *LocalVarArray) At(i int) *Value {
	if i < 0 || i >= len(a.values) {
		panic(fmt.Sprintf("ERROR: local index %d out of range [0, %d)", i, len(a.values)))
	}
	return a.values[i]
}

// Set stores v in slot i, growing the array if needed.
func (a *LocalVarArray) Set(i int, v *Value) {
	if i < 0 {
		panic(fmt.Sprintf("ERROR: negative local index %d", i))
	}
	if i >= len(a.values) {
		a.values = append(a.values, make([]*Value, i+1-len(a.values))...)
	}
	a.values[i] = v
}

// Size returns the number of slots, set or not.
func (a *LocalVarArray) Size() int { return len(a.values) }

// Clone deep copies the array into region r.
func (a *LocalVarArray) Clone(r *region.Region) *LocalVarArray {
	c := &LocalVarArray{region: r, values: make([]*Value, len(a.values))}
	for i, v := range a.values {
		if v != nil {
			c.values[i] = v.Clone(r)
		}
	}
	return c
}

// Merge joins other into a. Arrays may differ in length; missing trailing slots are unset.
// Two set slots are joined. A slot set on one side only keeps that value as is: it is not
// forced to top. Two unset slots stay unset.
func (a *LocalVarArray) Merge(other *LocalVarArray) {
	n := max(len(a.values), len(other.values))
	for i := 0; i < n; i++ {
		var self, that *Value
		if i < len(a.values) {
			self = a.values[i]
		}
		if i < len(other.values) {
			that = other.values[i]
		}
		switch {
		case self == nil && that == nil:
			continue
		case self != nil && that != nil:
			a.Set(i, self.Merge(that))
		case self != nil:
			a.Set(i, self)
		default:
			a.Set(i, that.Clone(a.region))
		}
	}
}

// SetToTop sets every set slot to top; unset slots stay unset.
func (a *LocalVarArray) SetToTop() {
	for _, v := range a.values {
		if v != nil {
			v.SetToTop()
		}
	}
}

func (a *LocalVarArray) String() string {
	var sb strings.Builder
	sb.WriteString("Contents of Abstract Local Variable Array:\n")
	for i, v := range a.values {
		if v == nil {
			fmt.Fprintf(&sb, "A[%d] = NULL\n", i)
			continue
		}
		fmt.Fprintf(&sb, "A[%d] = %s\n", i, v)
	}
	return sb.String()
}

// State is the abstract state of the stack machine at one program point.
type State struct {
	locals *LocalVarArray
	stack  *OpStack
}

// NewState returns an empty state allocating from r.
func NewState(r *region.Region) *State {
	return &State{locals: NewLocalVarArray(r), stack: NewOpStack()}
}

// Locals returns the local variable array.
func (s *State) Locals() *LocalVarArray { return s.locals }

// Stack returns the operand stack.
func (s *State) Stack() *OpStack { return s.stack }

// Set stores v in local slot i.
func (s *State) Set(i int, v *Value) { s.locals.Set(i, v) }

// At returns local slot i.
func (s *State) At(i int) *Value { return s.locals.At(i) }

// Push pushes v onto the operand stack.
func (s *State) Push(v *Value) { s.stack.Push(v) }

// Pop pops the operand stack.
func (s *State) Pop() *Value { return s.stack.Pop() }

// Peek returns the top of the operand stack.
func (s *State) Peek() *Value { return s.stack.Peek() }

// StackSize returns the operand stack depth.
func (s *State) StackSize() int { return s.stack.Size() }

// LocalsSize returns the number of local slots.
func (s *State) LocalsSize() int { return s.locals.Size() }

// Clone deep copies the state into region r.
func (s *State) Clone(r *region.Region) *State {
	return &State{locals: s.locals.Clone(r), stack: s.stack.Clone(r)}
}

// Merge joins other into s.
func (s *State) Merge(other *State) {
	s.locals.Merge(other.locals)
	s.stack.Merge(other.stack)
}

// SetToTop forgets everything known in s.
func (s *State) SetToTop() {
	s.stack.SetToTop()
	s.locals.SetToTop()
}

func (s *State) String() string {
	return "|| Contents of AbsState ||\n" + s.locals.String() + s.stack.String()
}

// Arguments is the vector of abstract values passed at a call site, aligned with the formal
// parameters of the callee. Entries may be nil when nothing is known.
type Arguments struct {
	args []*Value
}

// NewArguments returns an argument vector of the given size.
func NewArguments(size int) *Arguments {
	return &Arguments{args: make([]*Value, size)}
}

// Set stores the i-th argument.
func (a *Arguments) Set(i int, v *Value) {
	if i < 0 || i >= len(a.args) {
		panic(fmt.Sprintf("ERROR: argument index %d out of range [0, %d)", i, len(a.args)))
	}
	a.args[i] = v
}

// At returns the i-th argument.
func (a *Arguments) At(i int) *Value {
	if i < 0 || i >= len(a.args) {
		panic(fmt.Sprintf("ERROR: argument index %d out of range [0, %d)", i, len(a.args)))
	}
	return a.args[i]
}

// Size returns the number of arguments. A nil vector has size zero.
func (a *Arguments) Size() int {
	if a == nil {
		return 0
	}
	return len(a.args)
}
