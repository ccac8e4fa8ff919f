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

// Package frontend supplies the collaborators of the planner for Go programs in SSA form: the
// methods, the resolution of call targets, block frequency estimates, the abstract interpreter
// producing method summaries, and a subtype oracle over go/types.
package frontend

import (
	"go/types"
	"slices"
	"strings"
	"sync"

	"github.com/qasimy123/inlineplan/config"
	"github.com/qasimy123/inlineplan/idt"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/types/typeutil"
	"go.uber.org/zap"
)

// Program wraps an SSA program and implements idt.Resolver, idt.CFGBuilder and
// idt.Interpreter over it. It is safe for concurrent use once the SSA program is built.
type Program struct {
	prog       *ssa.Program
	logger     *zap.Logger
	maxTargets int

	cgOnce sync.Once
	cg     *callgraph.Graph

	mu      sync.Mutex
	methods map[*ssa.Function]*Method
	cfgs    map[*ssa.Function]*CFG
	classes typeutil.Map
}

// Option configures a Program.
type Option func(*Program)

// WithLogger sets the logger of the frontend.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Program) { p.logger = logger }
}

// WithMaxTargets caps the number of targets resolved for one dynamic call site.
func WithMaxTargets(n int) Option {
	return func(p *Program) { p.maxTargets = n }
}

// NewProgram returns the frontend of prog. The SSA of every function to be planned must be
// built before planning starts.
func NewProgram(prog *ssa.Program, opts ...Option) *Program {
	p := &Program{
		prog:       prog,
		logger:     zap.NewNop(),
		maxTargets: config.MaxTargetsPerSite,
		methods:    make(map[*ssa.Function]*Method),
		cfgs:       make(map[*ssa.Function]*CFG),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// SSA returns the underlying SSA program.
func (p *Program) SSA() *ssa.Program { return p.prog }

// Method returns the method of fn. The same *Method is returned for the same function.
func (p *Program) Method(fn *ssa.Function) *Method {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.methods[fn]
	if !ok {
		m = newMethod(fn)
		p.methods[fn] = m
	}
	return m
}

// Class returns the class of t. Identical types share one class.
func (p *Program) Class(t types.Type) *Class {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.classes.At(t).(*Class); ok {
		return c
	}
	c := &Class{t: t}
	p.classes.Set(t, c)
	return c
}

// Targets implements idt.Resolver. A call with a static callee has exactly that target.
// Dynamic and interface calls are resolved with class hierarchy analysis; the targets are
// ordered by name and capped.
func (p *Program) Targets(site *idt.CallSite, _ *idt.CallStack) []*idt.CallTarget {
	if site.Callee != nil {
		return []*idt.CallTarget{{Site: site, Callee: site.Callee}}
	}
	call, ok := site.Instr.(ssa.CallInstruction)
	if !ok {
		return nil
	}
	caller, ok := site.Caller.(*Method)
	if !ok {
		return nil
	}
	node := p.callGraph().Nodes[caller.fn]
	if node == nil {
		return nil
	}

	var callees []*ssa.Function
	for _, e := range node.Out {
		if e.Site != call || e.Callee == nil || e.Callee.Func == nil {
			continue
		}
		// Wrappers only forward to the method they wrap, which is a target on its own.
		if fn := e.Callee.Func; fn.Synthetic == "" && !slices.Contains(callees, fn) {
			callees = append(callees, fn)
		}
	}
	slices.SortFunc(callees, func(a, b *ssa.Function) int {
		return strings.Compare(a.String(), b.String())
	})
	if p.maxTargets > 0 && len(callees) > p.maxTargets {
		p.logger.Debug("too many call targets, keep the first ones",
			zap.String("caller", caller.Name()), zap.Int("targets", len(callees)))
		callees = callees[:p.maxTargets]
	}

	targets := make([]*idt.CallTarget, len(callees))
	for i, fn := range callees {
		targets[i] = &idt.CallTarget{Site: site, Callee: p.Method(fn)}
	}
	return targets
}

func (p *Program) callGraph() *callgraph.Graph {
	p.cgOnce.Do(func() {
		p.cg = cha.CallGraph(p.prog)
	})
	return p.cg
}

// Method is a function of the SSA program. Its instructions are numbered in block order;
// debug references are not counted.
type Method struct {
	fn     *ssa.Function
	name   string
	instrs []ssa.Instruction
	index  map[ssa.Instruction]int
	calls  []int
	// slots numbers the parameters first, then the free variables, then the values defined
	// by instructions.
	slots map[ssa.Value]int
}

func newMethod(fn *ssa.Function) *Method {
	m := &Method{
		fn:    fn,
		name:  fn.String(),
		index: make(map[ssa.Instruction]int),
		slots: make(map[ssa.Value]int),
	}
	for i, param := range fn.Params {
		m.slots[param] = i
	}
	for _, fv := range fn.FreeVars {
		m.slots[fv] = len(m.slots)
	}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if _, ok := instr.(*ssa.DebugRef); ok {
				continue
			}
			m.index[instr] = len(m.instrs)
			if _, ok := instr.(*ssa.Call); ok {
				m.calls = append(m.calls, len(m.instrs))
			}
			if v, ok := instr.(ssa.Value); ok {
				m.slots[v] = len(m.slots)
			}
			m.instrs = append(m.instrs, instr)
		}
	}
	return m
}

// Name implements idt.Method with the fully qualified name of the function.
func (m *Method) Name() string { return m.name }

// Size implements idt.Method with the number of instructions.
func (m *Method) Size() int { return len(m.instrs) }

// Func returns the SSA function.
func (m *Method) Func() *ssa.Function { return m.fn }

// HasBody reports whether the function has a body to interpret.
func (m *Method) HasBody() bool { return len(m.fn.Blocks) > 0 }

// Index returns the index of instr within the method.
func (m *Method) Index(instr ssa.Instruction) (int, bool) {
	i, ok := m.index[instr]
	return i, ok
}

// Instr returns the instruction at index i, nil when out of range.
func (m *Method) Instr(i int) ssa.Instruction {
	if i < 0 || i >= len(m.instrs) {
		return nil
	}
	return m.instrs[i]
}

// CallSites returns the indices of the call instructions, in order.
func (m *Method) CallSites() []int { return m.calls }

func (m *Method) String() string { return m.name }

func (m *Method) slot(v ssa.Value) (int, bool) {
	i, ok := m.slots[v]
	return i, ok
}

// paramPos returns the position of v among the parameters when v is one.
func (m *Method) paramPos(v ssa.Value) (int, bool) {
	if _, ok := v.(*ssa.Parameter); !ok {
		return 0, false
	}
	return m.slot(v)
}
