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

// Package packing selects the inlining candidates of an inlining tree that maximize the
// expected benefit within a size budget, subject to the precedence constraint: a node may only
// be selected together with its parent.
//
// The selection is a tree knapsack. When the whole tree fits in the budget every node is
// selected; otherwise a heuristic dynamic program over a parent-first linearization of the tree
// is used. The heuristic is not guaranteed to find the optimum.
package packing

import (
	"github.com/qasimy123/inlineplan/idt"
	"go.uber.org/zap"
)

// Pack returns the proposal selected from tree for the given budget. The tree is flattened if
// it has not been already. The returned proposal always satisfies the precedence constraint and
// never costs more than budget. It includes the root whenever it selects anything.
func Pack(tree *idt.IDT, budget int, logger *zap.Logger) *Proposal {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !tree.Flattened() {
		tree.Flatten()
	}

	if tree.TotalCost() <= budget {
		result := NewProposal(tree)
		tree.BFS(func(n *idt.Node) bool {
			result.Add(n)
			return true
		})
		logger.Debug("inliner packing: the whole tree fits", zap.Int("cost", tree.TotalCost()), zap.Int("budget", budget))
		return result
	}
	if budget < 0 {
		return NewProposal(tree)
	}

	size := tree.NumNodes()
	table := NewTable(size, budget+1, NewProposal(tree))
	queue := idt.NewPreorderQueue(tree)
	for row := 0; row < size; row++ {
		node := queue.Get(row)
		for col := 1; col <= budget; col++ {
			table.Set(row, col, best(table, node, row, col))
		}
	}

	result := table.Get(size-1, budget).Clone()
	logger.Debug("inliner packing", zap.Int("budget", budget), zap.Stringer("proposal", result))
	return result
}

// best returns the proposal for cell (row, col), where node is the row-th node of the
// linearization.
func best(table *Table, node *idt.Node, row, col int) *Proposal {
	previous := table.Get(row-1, col)

	// Bundle node with the chain of ancestors missing from the baseline it would extend.
	bundle := NewProposal(node.Tree())
	bundle.Add(node)
	top := node
	offsetRow := row - 1
	for !top.IsRoot() && !table.Get(offsetRow, col-bundle.Cost()).ContainsID(top.ParentID()) {
		top = top.Parent()
		bundle.Add(top)
	}

	// Find a baseline that does not overlap the bundle and either holds the parent of the
	// bundle or is empty.
	for {
		base := table.Get(offsetRow, col-bundle.Cost())
		if !bundle.Intersects(base) && (base.IsEmpty() || (!top.IsRoot() && base.ContainsID(top.ParentID()))) {
			break
		}
		offsetRow--
	}

	candidate := bundle.Clone()
	candidate.Union(table.Get(offsetRow, col-bundle.Cost()))
	if candidate.Cost() <= col && candidate.Benefit() > previous.Benefit() && candidate.PrecedenceClosed() {
		return candidate
	}
	return previous
}
