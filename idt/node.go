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
	"fmt"

	"github.com/qasimy123/inlineplan/summary"
)

// NodeID identifies a node of one inlining tree. IDs are assigned in creation order starting
// at RootID and are never reused.
type NodeID int32

// RootID is the ID of the root of every tree.
const RootID NodeID = -1

// Children is the set of children of a node. Most nodes have at most one child, so a single
// child is stored inline and a slice is allocated only from the second child on.
type Children struct {
	n    int
	one  NodeID
	many []NodeID
}

// Len returns the number of children.
func (c *Children) Len() int { return c.n }

// At returns the ID of the i-th child in insertion order.
func (c *Children) At(i int) NodeID {
	if i < 0 || i >= c.n {
		panic(fmt.Sprintf("ERROR: child index %d out of range [0, %d)", i, c.n))
	}
	if c.n == 1 {
		return c.one
	}
	return c.many[i]
}

func (c *Children) add(id NodeID) {
	switch c.n {
	case 0:
		c.one = id
	case 1:
		c.many = []NodeID{c.one, id}
	default:
		c.many = append(c.many, id)
	}
	c.n++
}

// Node is one inlining candidate: a call target reached through a chain of call sites from the
// root method. Nodes are owned by their tree and refer to each other by ID.
type Node struct {
	id       NodeID
	parent   NodeID
	tree     *IDT
	children Children

	target  *CallTarget
	bcIndex int

	budget        int
	cost          int
	callRatio     float32
	rootCallRatio float64

	staticBenefit int
	summary       *summary.Summary
}

// ID returns the ID of the node.
func (n *Node) ID() NodeID { return n.id }

// Tree returns the tree owning the node.
func (n *Node) Tree() *IDT { return n.tree }

// IsRoot reports whether n is the root of its tree.
func (n *Node) IsRoot() bool { return n.id == RootID }

// ParentID returns the ID of the parent; it must not be called on the root.
func (n *Node) ParentID() NodeID {
	if n.IsRoot() {
		panic("ERROR: the root has no parent")
	}
	return n.parent
}

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node {
	if n.IsRoot() {
		return nil
	}
	return n.tree.node(n.parent)
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int { return n.children.Len() }

// Child returns the i-th child.
func (n *Node) Child(i int) *Node { return n.tree.node(n.children.At(i)) }

// Target returns the call target the node inlines.
func (n *Node) Target() *CallTarget { return n.target }

// Method returns the callee method of the node.
func (n *Node) Method() Method { return n.target.Callee }

// Name returns the name of the callee method.
func (n *Node) Name() string { return n.target.Callee.Name() }

// BCIndex returns the index of the call site in the parent method, -1 for the root.
func (n *Node) BCIndex() int { return n.bcIndex }

// Budget returns the budget remaining below this node.
func (n *Node) Budget() int { return n.budget }

// Cost returns the size of the callee, 0 for the root.
func (n *Node) Cost() int { return n.cost }

// CallRatio returns the probability that the call site executes once its caller executes.
func (n *Node) CallRatio() float32 { return n.callRatio }

// RootCallRatio returns the probability that the call site executes once the root executes.
func (n *Node) RootCallRatio() float64 { return n.rootCallRatio }

// StaticBenefit returns the number of optimizations unlocked by the arguments of the call site.
func (n *Node) StaticBenefit() int { return n.staticBenefit }

// SetStaticBenefit sets the static benefit.
func (n *Node) SetStaticBenefit(b int) {
	if b < 0 {
		panic(fmt.Sprintf("ERROR: negative static benefit %d for %s", b, n.Name()))
	}
	n.staticBenefit = b
}

// Summary returns the method summary of the callee, or nil if it has not been computed.
func (n *Node) Summary() *summary.Summary { return n.summary }

// SetSummary attaches the method summary of the callee.
func (n *Node) SetSummary(s *summary.Summary) { n.summary = s }

// Benefit is the expected benefit of inlining the node: its reachability from the root
// weighted by the optimizations it unlocks.
func (n *Node) Benefit() float64 {
	return n.rootCallRatio * float64(1+n.staticBenefit) * 10
}

// NumDescendants returns the number of nodes below n.
func (n *Node) NumDescendants() int {
	sum := 0
	for i := 0; i < n.NumChildren(); i++ {
		sum += 1 + n.Child(i).NumDescendants()
	}
	return sum
}

// RecursiveCost returns the cost of n and all of its descendants.
func (n *Node) RecursiveCost() int {
	cost := n.cost
	for i := 0; i < n.NumChildren(); i++ {
		cost += n.Child(i).RecursiveCost()
	}
	return cost
}

// FindChildWithBCIndex returns the first child created for the call site at bcIndex, or nil.
func (n *Node) FindChildWithBCIndex(bcIndex int) *Node {
	for i := 0; i < n.NumChildren(); i++ {
		if c := n.Child(i); c.bcIndex == bcIndex {
			return c
		}
	}
	return nil
}

// onPath reports whether m is the callee of n or of one of its ancestors.
func (n *Node) onPath(m Method) bool {
	for cur := n; cur != nil; cur = cur.Parent() {
		if cur.Method().Name() == m.Name() {
			return true
		}
	}
	return false
}

func (n *Node) String() string {
	if n.IsRoot() {
		return fmt.Sprintf("#%d %s budget=%d", n.id, n.Name(), n.budget)
	}
	return fmt.Sprintf("#%d: #%d inlinable @%d -> %s, static benefit = %d, benefit = %.2f, cost = %d, budget = %d, callratio = %f, rootcallratio = %f",
		n.id, n.parent, n.bcIndex, n.Name(), n.staticBenefit, n.Benefit(), n.cost, n.budget, n.callRatio, n.rootCallRatio)
}
