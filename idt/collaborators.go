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

package idt

import (
	"context"

	"github.com/qasimy123/inlineplan/absinterp"
	"github.com/qasimy123/inlineplan/summary"
	"github.com/qasimy123/inlineplan/util/region"
)

// Method is a handle on a method of the program being compiled.
type Method interface {
	// Name uniquely identifies the method within one compilation.
	Name() string
	// Size is the code size of the method, the cost of inlining it.
	Size() int
}

// CallSite is a call instruction found while interpreting a method.
type CallSite struct {
	// Caller is the method containing the call.
	Caller Method
	// Callee is the statically known callee, nil for calls that must be resolved dynamically.
	Callee Method
	// BCIndex is the index of the call instruction within the caller.
	BCIndex int
	// Indirect is set for calls through a function value or a method value.
	Indirect bool
	// Interface is set for calls dispatched through an interface.
	Interface bool
	// Instr is the frontend representation of the call.
	Instr any
}

// CallTarget is one concrete method a call site may reach.
type CallTarget struct {
	Site   *CallSite
	Callee Method
}

// Resolver finds the concrete targets of a call site.
type Resolver interface {
	// Targets returns the targets of site in the given calling context, in priority order.
	Targets(site *CallSite, stack *CallStack) []*CallTarget
}

// CFGBuilder builds control flow graphs annotated with block frequencies.
type CFGBuilder interface {
	// BuildCFG returns the graph of the target's callee, or nil when none can be built (for
	// example when the body is not available).
	BuildCFG(target *CallTarget) CFG
}

// CFG is a control flow graph with block execution frequencies.
type CFG interface {
	// EntryFrequency is the frequency of the entry block.
	EntryFrequency() int
}

// Block is a basic block of a CFG.
type Block interface {
	Frequency() int
	// IsCold reports blocks known to be rarely executed regardless of their frequency.
	IsCold() bool
}

// Visitor is notified of every call site reached during abstract interpretation.
type Visitor interface {
	VisitCallSite(site *CallSite, callerIndex int, block Block, args *absinterp.Arguments)
}

// Interpreter abstractly interprets a method body.
type Interpreter interface {
	// Interpret runs abstract interpretation over the callee of target with args bound to its
	// parameters (nil for unknown), notifying v at each call site, and returns the summary of
	// the optimizations found in the callee. Values are allocated from r.
	Interpret(ctx context.Context, target *CallTarget, cfg CFG, args *absinterp.Arguments, callerIndex int, r *region.Region, v Visitor) (*summary.Summary, error)
}

// CallStack is the chain of methods being expanded, innermost first.
type CallStack struct {
	method Method
	budget int
	next   *CallStack
}

// Push returns a new stack with m on top of s.
func (s *CallStack) Push(m Method, budget int) *CallStack {
	return &CallStack{method: m, budget: budget, next: s}
}

// Method returns the innermost method, nil for an empty stack.
func (s *CallStack) Method() Method {
	if s == nil {
		return nil
	}
	return s.method
}

// Budget returns the budget of the innermost method.
func (s *CallStack) Budget() int {
	if s == nil {
		return 0
	}
	return s.budget
}

// Depth returns the number of methods on the stack.
func (s *CallStack) Depth() int {
	d := 0
	for cur := s; cur != nil; cur = cur.next {
		d++
	}
	return d
}

// IsAnywhereOnTheStack reports whether m is being expanded.
func (s *CallStack) IsAnywhereOnTheStack(m Method) bool {
	for cur := s; cur != nil; cur = cur.next {
		if cur.method.Name() == m.Name() {
			return true
		}
	}
	return false
}
