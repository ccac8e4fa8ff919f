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
	"github.com/qasimy123/inlineplan/config"
	"github.com/qasimy123/inlineplan/idt"
	"golang.org/x/tools/go/ssa"
)

// _maxFrequency bounds block frequencies inside deeply nested loops.
const _maxFrequency = 1 << 30

// BuildCFG implements idt.CFGBuilder. Functions without a body have no CFG. The CFG of a
// function does not depend on the call site, so it is built once.
func (p *Program) BuildCFG(target *idt.CallTarget) idt.CFG {
	m, ok := target.Callee.(*Method)
	if !ok || !m.HasBody() {
		return nil
	}
	c := p.cfgOf(m.fn)
	if c == nil {
		return nil
	}
	return c
}

func (p *Program) cfgOf(fn *ssa.Function) *CFG {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.cfgs[fn]
	if !ok {
		c = newCFG(fn)
		p.cfgs[fn] = c
	}
	return c
}

type edge struct{ from, to int }

// CFG is the control flow graph of an SSA function annotated with estimated block
// frequencies. The entry block runs config.EntryFrequency times; a block splits its frequency
// evenly across its forward successors, except loop headers which pass it on whole to every
// successor; blocks inside a loop are then scaled by config.LoopFrequencyFactor per enclosing
// loop. Blocks ending in a panic, the recover block, and blocks leading only to cold blocks
// are cold.
type CFG struct {
	fn *ssa.Function
	// order is the reverse postorder of the blocks reachable from the entry, ignoring back
	// edges: every block comes after its forward predecessors.
	order  []*ssa.BasicBlock
	back   map[edge]bool
	header []bool
	freq   []int
	cold   []bool
}

func newCFG(fn *ssa.Function) *CFG {
	n := len(fn.Blocks)
	c := &CFG{
		fn:     fn,
		back:   make(map[edge]bool),
		header: make([]bool, n),
		freq:   make([]int, n),
		cold:   make([]bool, n),
	}
	c.computeOrder()
	c.computeFrequencies()
	c.computeCold()
	return c
}

func (c *CFG) computeOrder() {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]uint8, len(c.fn.Blocks))
	var post []*ssa.BasicBlock
	var visit func(b *ssa.BasicBlock)
	visit = func(b *ssa.BasicBlock) {
		state[b.Index] = onStack
		for _, s := range b.Succs {
			switch state[s.Index] {
			case unvisited:
				visit(s)
			case onStack:
				c.back[edge{b.Index, s.Index}] = true
				c.header[s.Index] = true
			}
		}
		state[b.Index] = done
		post = append(post, b)
	}
	visit(c.fn.Blocks[0])

	c.order = make([]*ssa.BasicBlock, len(post))
	for i, b := range post {
		c.order[len(post)-1-i] = b
	}
}

func (c *CFG) computeFrequencies() {
	c.freq[0] = config.EntryFrequency
	for _, b := range c.order {
		succs := c.forwardSuccs(b)
		if len(succs) == 0 {
			continue
		}
		share := c.freq[b.Index]
		if !c.header[b.Index] {
			share /= len(succs)
		}
		for _, s := range succs {
			c.freq[s.Index] = min(c.freq[s.Index]+share, _maxFrequency)
		}
	}

	// Scale the natural loop of every header once, whatever the number of its back edges.
	tails := make(map[int][]*ssa.BasicBlock)
	for e := range c.back {
		tails[e.to] = append(tails[e.to], c.fn.Blocks[e.from])
	}
	for _, h := range c.order {
		if !c.header[h.Index] {
			continue
		}
		for i := range c.loopBody(h, tails[h.Index]) {
			if c.freq[i] > _maxFrequency/config.LoopFrequencyFactor {
				c.freq[i] = _maxFrequency
				continue
			}
			c.freq[i] *= config.LoopFrequencyFactor
		}
	}
}

// loopBody returns the indices of the blocks of the natural loop of header h.
func (c *CFG) loopBody(h *ssa.BasicBlock, tails []*ssa.BasicBlock) map[int]bool {
	body := map[int]bool{h.Index: true}
	stack := append([]*ssa.BasicBlock(nil), tails...)
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if body[b.Index] {
			continue
		}
		body[b.Index] = true
		stack = append(stack, b.Preds...)
	}
	return body
}

func (c *CFG) computeCold() {
	for _, b := range c.fn.Blocks {
		if b == c.fn.Recover {
			c.cold[b.Index] = true
			continue
		}
		if len(b.Instrs) == 0 {
			continue
		}
		if _, ok := b.Instrs[len(b.Instrs)-1].(*ssa.Panic); ok {
			c.cold[b.Index] = true
		}
	}
	for changed := true; changed; {
		changed = false
		for i := len(c.order) - 1; i >= 0; i-- {
			b := c.order[i]
			if c.cold[b.Index] || len(b.Succs) == 0 {
				continue
			}
			allCold := true
			for _, s := range b.Succs {
				if !c.cold[s.Index] {
					allCold = false
					break
				}
			}
			if allCold {
				c.cold[b.Index] = true
				changed = true
			}
		}
	}
}

func (c *CFG) forwardSuccs(b *ssa.BasicBlock) []*ssa.BasicBlock {
	var succs []*ssa.BasicBlock
	for _, s := range b.Succs {
		if !c.back[edge{b.Index, s.Index}] {
			succs = append(succs, s)
		}
	}
	return succs
}

// EntryFrequency implements idt.CFG.
func (c *CFG) EntryFrequency() int { return c.freq[0] }

// Func returns the function of the graph.
func (c *CFG) Func() *ssa.Function { return c.fn }

// Order returns the blocks reachable from the entry, every block after its forward
// predecessors.
func (c *CFG) Order() []*ssa.BasicBlock { return c.order }

// IsBackEdge reports whether the edge from -> to closes a loop.
func (c *CFG) IsBackEdge(from, to *ssa.BasicBlock) bool { return c.back[edge{from.Index, to.Index}] }

// IsLoopHeader reports whether b is the target of a back edge.
func (c *CFG) IsLoopHeader(b *ssa.BasicBlock) bool { return c.header[b.Index] }

// Block returns the frequency information of b.
func (c *CFG) Block(b *ssa.BasicBlock) Block {
	return Block{frequency: c.freq[b.Index], cold: c.cold[b.Index]}
}

// Block is the frequency information of one basic block. It implements idt.Block.
type Block struct {
	frequency int
	cold      bool
}

// Frequency implements idt.Block.
func (b Block) Frequency() int { return b.frequency }

// IsCold implements idt.Block.
func (b Block) IsCold() bool { return b.cold }
