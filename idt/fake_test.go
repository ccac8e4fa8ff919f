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
	"sync"

	"github.com/qasimy123/inlineplan/absinterp"
	"github.com/qasimy123/inlineplan/summary"
	"github.com/qasimy123/inlineplan/util/region"
)

// testMethod is a method of a fakeProgram.
type testMethod struct {
	name string
	size int
}

func (m *testMethod) Name() string { return m.name }
func (m *testMethod) Size() int    { return m.size }

// testCall is a call instruction in the body of a fake method.
type testCall struct {
	// callee is the static callee; targets lists the dynamic targets when callee is empty.
	callee  string
	targets []string
	bc      int
	freq    int
	cold    bool
	// args holds integer constants passed to the callee, nil entries meaning unknown.
	args []*int32
}

type testBlock struct {
	freq int
	cold bool
}

func (b testBlock) Frequency() int { return b.freq }
func (b testBlock) IsCold() bool   { return b.cold }

type testCFG struct{ entry int }

func (c testCFG) EntryFrequency() int { return c.entry }

// fakeProgram implements every collaborator of the builder over a table of methods.
type fakeProgram struct {
	methods map[string]*testMethod
	bodies  map[string][]testCall
	noCFG   map[string]bool
	// preds registers, per method, predicates on argument positions.
	preds map[string]map[int][]summary.Predicate

	mu          sync.Mutex
	interpreted map[string]int
}

func newFakeProgram() *fakeProgram {
	return &fakeProgram{
		methods:     make(map[string]*testMethod),
		bodies:      make(map[string][]testCall),
		noCFG:       make(map[string]bool),
		preds:       make(map[string]map[int][]summary.Predicate),
		interpreted: make(map[string]int),
	}
}

func (p *fakeProgram) method(name string, size int, body ...testCall) *testMethod {
	m := &testMethod{name: name, size: size}
	p.methods[name] = m
	p.bodies[name] = body
	return m
}

func (p *fakeProgram) pred(method string, pos int, pred summary.Predicate) {
	if p.preds[method] == nil {
		p.preds[method] = make(map[int][]summary.Predicate)
	}
	p.preds[method][pos] = append(p.preds[method][pos], pred)
}

func (p *fakeProgram) interpretCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interpreted[name]
}

func (p *fakeProgram) builder(opts ...Option) *Builder {
	return NewBuilder(p, p, p, opts...)
}

// Targets implements Resolver.
func (p *fakeProgram) Targets(site *CallSite, _ *CallStack) []*CallTarget {
	if site.Callee != nil {
		return []*CallTarget{{Site: site, Callee: site.Callee}}
	}
	var targets []*CallTarget
	for _, name := range site.Instr.(testCall).targets {
		targets = append(targets, &CallTarget{Site: site, Callee: p.methods[name]})
	}
	return targets
}

// BuildCFG implements CFGBuilder.
func (p *fakeProgram) BuildCFG(target *CallTarget) CFG {
	if p.noCFG[target.Callee.Name()] {
		return nil
	}
	return testCFG{entry: 100}
}

// Interpret implements Interpreter.
func (p *fakeProgram) Interpret(ctx context.Context, target *CallTarget, _ CFG, _ *absinterp.Arguments, callerIndex int, r *region.Region, v Visitor) (*summary.Summary, error) {
	name := target.Callee.Name()
	p.mu.Lock()
	p.interpreted[name]++
	p.mu.Unlock()

	s := summary.New(name)
	for pos, preds := range p.preds[name] {
		for _, pred := range preds {
			s.AddOpt(0, pred, pos)
		}
	}
	for _, call := range p.bodies[name] {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		site := &CallSite{Caller: target.Callee, BCIndex: call.bc, Instr: call}
		if call.callee != "" {
			site.Callee = p.methods[call.callee]
		} else {
			site.Indirect = true
		}
		args := absinterp.NewArguments(len(call.args))
		for i, a := range call.args {
			if a == nil {
				args.Set(i, absinterp.NewTopInt(r))
			} else {
				args.Set(i, absinterp.NewIntConst(r, *a))
			}
		}
		v.VisitCallSite(site, callerIndex, testBlock{freq: call.freq, cold: call.cold}, args)
	}
	return s, nil
}

func call(callee string, bc, freq int) testCall {
	return testCall{callee: callee, bc: bc, freq: freq}
}

func intArg(v int32) *int32 { return &v }
