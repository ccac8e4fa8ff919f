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

import "container/heap"

// PreorderQueue linearizes a tree so that every node comes after its parent. Among the nodes
// whose parent has already been placed, the one with the largest cost comes first, ties going
// to the larger benefit and then to the smaller id. The order is produced lazily.
type PreorderQueue struct {
	tree     *IDT
	entries  []*Node
	frontier frontier
}

// NewPreorderQueue returns the queue for t, seeded with its root.
func NewPreorderQueue(t *IDT) *PreorderQueue {
	q := &PreorderQueue{tree: t}
	heap.Push(&q.frontier, t.Root())
	return q
}

// Size returns the number of positions, which is the number of nodes of the tree.
func (q *PreorderQueue) Size() int { return q.tree.NumNodes() }

// Get returns the node at position i, or nil if i is out of range.
func (q *PreorderQueue) Get(i int) *Node {
	if i < 0 || i >= q.Size() {
		return nil
	}
	for len(q.entries) <= i {
		n := heap.Pop(&q.frontier).(*Node)
		q.entries = append(q.entries, n)
		for j := 0; j < n.NumChildren(); j++ {
			heap.Push(&q.frontier, n.Child(j))
		}
	}
	return q.entries[i]
}

// frontier is a max-heap of nodes eligible for placement.
type frontier []*Node

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	a, b := f[i], f[j]
	if a.cost != b.cost {
		return a.cost > b.cost
	}
	if ab, bb := a.Benefit(), b.Benefit(); ab != bb {
		return ab > bb
	}
	return a.id < b.id
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) { *f = append(*f, x.(*Node)) }

func (f *frontier) Pop() any {
	old := *f
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*f = old[:len(old)-1]
	return n
}
