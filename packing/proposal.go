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

package packing

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/qasimy123/inlineplan/idt"
)

// Proposal is a set of nodes of one inlining tree selected for inlining. Its cost and benefit
// are computed on demand and cached until the set changes. Computing them requires the tree
// to be flattened.
type Proposal struct {
	tree *idt.IDT
	// bits holds node id+1 at bit position id+1.
	bits []uint64

	dirty   bool
	cost    int
	benefit float64
}

// NewProposal returns an empty proposal for tree.
func NewProposal(tree *idt.IDT) *Proposal {
	return &Proposal{tree: tree, bits: make([]uint64, words(tree.NumNodes()))}
}

func words(n int) int { return (n + 63) / 64 }

// Tree returns the tree the proposal selects from.
func (p *Proposal) Tree() *idt.IDT { return p.tree }

// Add selects n.
func (p *Proposal) Add(n *idt.Node) { p.AddID(n.ID()) }

// AddID selects the node with the given id.
func (p *Proposal) AddID(id idt.NodeID) {
	if id < idt.RootID {
		panic(fmt.Sprintf("ERROR: invalid node id %d", id))
	}
	i := int(id + 1)
	for len(p.bits) <= i/64 {
		p.bits = append(p.bits, 0)
	}
	p.bits[i/64] |= 1 << (i % 64)
	p.dirty = true
}

// Contains reports whether n is selected.
func (p *Proposal) Contains(n *idt.Node) bool { return p.ContainsID(n.ID()) }

// ContainsID reports whether the node with the given id is selected.
func (p *Proposal) ContainsID(id idt.NodeID) bool {
	if p == nil || id < idt.RootID {
		return false
	}
	i := int(id + 1)
	return i/64 < len(p.bits) && p.bits[i/64]&(1<<(i%64)) != 0
}

// Intersects reports whether p and other select a common node.
func (p *Proposal) Intersects(other *Proposal) bool {
	if p == nil || other == nil {
		return false
	}
	for i := 0; i < len(p.bits) && i < len(other.bits); i++ {
		if p.bits[i]&other.bits[i] != 0 {
			return true
		}
	}
	return false
}

// Union adds every node of each of others to p.
func (p *Proposal) Union(others ...*Proposal) {
	for _, o := range others {
		if o == nil {
			continue
		}
		if o.tree != p.tree {
			panic("ERROR: union of proposals over different inlining trees")
		}
		for len(p.bits) < len(o.bits) {
			p.bits = append(p.bits, 0)
		}
		for i, w := range o.bits {
			p.bits[i] |= w
		}
		p.dirty = true
	}
}

// IsEmpty reports whether no node is selected.
func (p *Proposal) IsEmpty() bool {
	if p == nil {
		return true
	}
	for _, w := range p.bits {
		if w != 0 {
			return false
		}
	}
	return true
}

// Len returns the number of selected nodes.
func (p *Proposal) Len() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, w := range p.bits {
		n += bits.OnesCount64(w)
	}
	return n
}

// IDs returns the selected node ids in increasing order.
func (p *Proposal) IDs() []idt.NodeID {
	if p == nil {
		return nil
	}
	var ids []idt.NodeID
	for i, w := range p.bits {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			ids = append(ids, idt.NodeID(i*64+b-1))
			w &= w - 1
		}
	}
	return ids
}

// Clone returns an independent copy of p.
func (p *Proposal) Clone() *Proposal {
	c := *p
	c.bits = append([]uint64(nil), p.bits...)
	return &c
}

// Cost returns the total cost of the selected nodes.
func (p *Proposal) Cost() int {
	if p == nil {
		return 0
	}
	p.refresh()
	return p.cost
}

// Benefit returns the total benefit of the selected nodes.
func (p *Proposal) Benefit() float64 {
	if p == nil {
		return 0
	}
	p.refresh()
	return p.benefit
}

func (p *Proposal) refresh() {
	if !p.dirty {
		return
	}
	p.cost, p.benefit = 0, 0
	for _, id := range p.IDs() {
		n := p.tree.NodeByID(id)
		p.cost += n.Cost()
		p.benefit += n.Benefit()
	}
	p.dirty = false
}

// PrecedenceClosed reports whether the parent of every selected non-root node is selected.
func (p *Proposal) PrecedenceClosed() bool {
	for _, id := range p.IDs() {
		if id == idt.RootID {
			continue
		}
		if !p.ContainsID(p.tree.NodeByID(id).ParentID()) {
			return false
		}
	}
	return true
}

func (p *Proposal) String() string {
	if p.IsEmpty() {
		return "Proposal: empty"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Proposal: %d nodes, cost %d, benefit %.2f:", p.Len(), p.Cost(), p.Benefit())
	for _, id := range p.IDs() {
		fmt.Fprintf(&b, " #%d", id)
	}
	return b.String()
}
