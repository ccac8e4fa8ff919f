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

// Package idt implements the inlining dependency tree: a tree of inlining candidates mirroring
// the caller to callee structure of call sites reachable from one root method, each annotated
// with its cost, remaining budget and probability of execution. The Builder grows a tree by
// driving abstract interpretation over the root method and, recursively, over its callees.
package idt

import (
	"fmt"

	"github.com/qasimy123/inlineplan/config"
	"github.com/qasimy123/inlineplan/util/region"
	"go.uber.org/zap"
)

// IDT is an inlining dependency tree. All nodes are allocated from the region of the tree and
// live as long as it.
type IDT struct {
	region *region.Region
	// nodes holds every node at position id+1.
	nodes     []*Node
	nextID    NodeID
	totalCost int
	// indices is the BFS-built lookup table, set once by Flatten.
	indices  []*Node
	maxNodes int
}

// New creates a tree holding only a root for target with the given budget.
func New(r *region.Region, target *CallTarget, budget int) *IDT {
	if target == nil || target.Callee == nil {
		panic("ERROR: an inlining tree needs a root method")
	}
	t := &IDT{region: r, nextID: RootID}
	root := region.New[Node](r)
	*root = Node{
		id:            t.nextID,
		parent:        RootID,
		tree:          t,
		target:        target,
		bcIndex:       -1,
		budget:        budget,
		callRatio:     1,
		rootCallRatio: 1,
	}
	t.nodes = append(t.nodes, root)
	t.nextID++
	return t
}

// Region returns the region the tree allocates from.
func (t *IDT) Region() *region.Region { return t.region }

// Root returns the root node.
func (t *IDT) Root() *Node { return t.nodes[0] }

// NumNodes returns the number of nodes including the root.
func (t *IDT) NumNodes() int { return len(t.nodes) }

// TotalCost returns the sum of the costs of all nodes.
func (t *IDT) TotalCost() int { return t.totalCost }

// NextID returns the ID the next node will receive.
func (t *IDT) NextID() NodeID { return t.nextID }

// Full reports whether the node ceiling of the tree has been reached.
func (t *IDT) Full() bool { return t.maxNodes > 0 && len(t.nodes) >= t.maxNodes }

// SetMaxNodes sets the node ceiling, 0 for none.
func (t *IDT) SetMaxNodes(n int) { t.maxNodes = n }

// AddChild creates a child of parent for target called at bcIndex with the given call ratio.
// The child's budget is what remains of the parent's budget after paying for the callee.
func (t *IDT) AddChild(parent *Node, target *CallTarget, bcIndex int, callRatio float32) *Node {
	if t.indices != nil {
		panic("ERROR: adding a node to a flattened inlining tree")
	}
	if parent.tree != t {
		panic("ERROR: parent belongs to a different inlining tree")
	}
	cost := target.Callee.Size()
	if cost > parent.budget {
		panic(fmt.Sprintf("ERROR: %s costs %d which exceeds the budget %d of %s", target.Callee.Name(), cost, parent.budget, parent.Name()))
	}
	if callRatio <= 0 || callRatio > 1 {
		panic(fmt.Sprintf("ERROR: call ratio %f out of (0, 1]", callRatio))
	}
	child := region.New[Node](t.region)
	*child = Node{
		id:            t.nextID,
		parent:        parent.id,
		tree:          t,
		target:        target,
		bcIndex:       bcIndex,
		budget:        parent.budget - cost,
		cost:          cost,
		callRatio:     callRatio,
		rootCallRatio: parent.rootCallRatio * float64(callRatio),
	}
	t.nodes = append(t.nodes, child)
	t.nextID++
	t.totalCost += cost
	parent.children.add(child.id)
	return child
}

// CopyDescendants copies the subtree below from into to, which must be for the same method.
// Copied children are filtered again against the budget and reachability of to, and callees
// already on the path to to are skipped.
func (t *IDT) CopyDescendants(from, to *Node) int {
	if from.Name() != to.Name() {
		panic(fmt.Sprintf("ERROR: copying the descendants of %s into %s", from.Name(), to.Name()))
	}
	copied := 0
	for i := 0; i < from.NumChildren(); i++ {
		child := from.Child(i)
		if t.Full() {
			return copied
		}
		if to.budget-child.cost < 0 {
			continue
		}
		if to.rootCallRatio*float64(child.callRatio) < config.MinRootCallRatio {
			continue
		}
		if to.onPath(child.Method()) {
			continue
		}
		c := t.AddChild(to, child.target, child.bcIndex, child.callRatio)
		c.summary = child.summary
		c.staticBenefit = child.staticBenefit
		copied += 1 + t.CopyDescendants(child, c)
	}
	return copied
}

// node returns the node with the given id from the arena.
func (t *IDT) node(id NodeID) *Node {
	return t.nodes[id+1]
}

// Flatten builds the index used by NodeByID. It must be called exactly once, after the tree is
// complete.
func (t *IDT) Flatten() {
	if t.indices != nil {
		panic("ERROR: inlining tree flattened twice")
	}
	indices := make([]*Node, len(t.nodes))
	t.BFS(func(n *Node) bool {
		if indices[n.id+1] != nil {
			panic(fmt.Sprintf("ERROR: node id %d is not unique", n.id))
		}
		indices[n.id+1] = n
		return true
	})
	t.indices = indices
}

// Flattened reports whether Flatten has been called.
func (t *IDT) Flattened() bool { return t.indices != nil }

// NodeByID returns the node with the given id. The tree must have been flattened.
func (t *IDT) NodeByID(id NodeID) *Node {
	if t.indices == nil {
		panic("ERROR: call Flatten before looking up nodes by id")
	}
	if id < RootID || id >= t.nextID {
		panic(fmt.Sprintf("ERROR: node id %d out of range [%d, %d)", id, RootID, t.nextID))
	}
	return t.indices[id+1]
}

// BFS visits the nodes breadth first from the root until f returns false.
func (t *IDT) BFS(f func(*Node) bool) {
	queue := []*Node{t.Root()}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if !f(n) {
			return
		}
		for i := 0; i < n.NumChildren(); i++ {
			queue = append(queue, n.Child(i))
		}
	}
}

// Trace logs the tree breadth first at debug level.
func (t *IDT) Trace(logger *zap.Logger) {
	if logger == nil || !logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	root := t.Root()
	logger.Debug(fmt.Sprintf("#IDT: %d candidate methods inlinable into %s with a budget %d", t.NumNodes()-1, root.Name(), root.budget))
	t.BFS(func(n *Node) bool {
		if !n.IsRoot() {
			logger.Debug("#IDT: " + n.String())
		}
		return true
	})
}
