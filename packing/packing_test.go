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
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/qasimy123/inlineplan/idt"
	"github.com/qasimy123/inlineplan/util/region"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testMethod struct {
	name string
	size int
}

func (m *testMethod) Name() string { return m.name }
func (m *testMethod) Size() int    { return m.size }

func target(name string, size int) *idt.CallTarget {
	return &idt.CallTarget{Callee: &testMethod{name: name, size: size}}
}

func newTree(t *testing.T, budget int) *idt.IDT {
	return idt.New(region.NewRegion(t.Name()), target("root", 1), budget)
}

func TestWholeTreeFits(t *testing.T) {
	t.Parallel()

	tree := newTree(t, 100)
	child := tree.AddChild(tree.Root(), target("a", 30), 0, 1)

	p := Pack(tree, 100, nil)
	require.True(t, tree.Flattened())
	require.True(t, p.Contains(child))
	require.True(t, p.Contains(tree.Root()))
	require.Equal(t, []idt.NodeID{idt.RootID, child.ID()}, p.IDs())
	require.Equal(t, 30, p.Cost())
	require.Equal(t, 20.0, p.Benefit())
}

func TestCheapestLeafWins(t *testing.T) {
	t.Parallel()

	tree := newTree(t, 100)
	cheap := tree.AddChild(tree.Root(), target("cheap", 10), 0, 1)
	cheap.SetStaticBenefit(2)
	dear := tree.AddChild(tree.Root(), target("dear", 20), 1, 1)

	p := Pack(tree, 15, nil)
	require.True(t, p.Contains(cheap))
	require.False(t, p.Contains(dear))
	require.Equal(t, []idt.NodeID{idt.RootID, cheap.ID()}, p.IDs())
	require.Equal(t, 10, p.Cost())
}

func TestBenefitBeatsCount(t *testing.T) {
	t.Parallel()

	// Two small unlikely leaves against one larger leaf that unlocks many optimizations.
	tree := newTree(t, 100)
	small1 := tree.AddChild(tree.Root(), target("small1", 5), 0, 0.25)
	small2 := tree.AddChild(tree.Root(), target("small2", 5), 1, 0.25)
	big := tree.AddChild(tree.Root(), target("big", 10), 2, 1)
	big.SetStaticBenefit(5)

	p := Pack(tree, 10, nil)
	require.True(t, p.Contains(big))
	require.False(t, p.Contains(small1))
	require.False(t, p.Contains(small2))
}

func TestNestedNeedsParent(t *testing.T) {
	t.Parallel()

	tree := newTree(t, 100)
	a := tree.AddChild(tree.Root(), target("a", 5), 0, 1)
	b := tree.AddChild(a, target("b", 5), 0, 1)
	b.SetStaticBenefit(10)

	p := Pack(tree, 7, nil)
	require.Equal(t, []idt.NodeID{idt.RootID, a.ID()}, p.IDs())

	// A deep valuable node pulls its parent in even when the parent alone is worthless.
	tree = newTree(t, 100)
	a = tree.AddChild(tree.Root(), target("a", 5), 0, 1)
	b = tree.AddChild(a, target("b", 5), 0, 1)
	b.SetStaticBenefit(10)
	c := tree.AddChild(tree.Root(), target("c", 9), 1, 1)
	c.SetStaticBenefit(3)
	p = Pack(tree, 10, nil)
	require.Equal(t, []idt.NodeID{idt.RootID, a.ID(), b.ID()}, p.IDs())
	require.True(t, p.PrecedenceClosed())
}

func TestDegenerateBudgets(t *testing.T) {
	t.Parallel()

	tree := newTree(t, 100)
	tree.AddChild(tree.Root(), target("a", 5), 0, 1)
	require.True(t, Pack(tree, 0, nil).IsEmpty())
	require.True(t, Pack(tree, -3, nil).IsEmpty())

	// A root without children always fits.
	lone := newTree(t, 0)
	p := Pack(lone, 0, nil)
	require.Equal(t, []idt.NodeID{idt.RootID}, p.IDs())
}

func TestPackTrace(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	tree := newTree(t, 100)
	tree.AddChild(tree.Root(), target("a", 5), 0, 1)
	tree.AddChild(tree.Root(), target("b", 6), 1, 1)
	Pack(tree, 5, zap.New(core))
	require.Equal(t, 1, logs.FilterMessage("inliner packing").Len())
}

// randomTree builds a tree of n nodes; a star tree has every node directly below the root.
func randomTree(t *testing.T, rng *rand.Rand, n int, star bool) *idt.IDT {
	tree := newTree(t, 1<<20)
	nodes := []*idt.Node{tree.Root()}
	for i := 1; i < n; i++ {
		parent := tree.Root()
		if !star {
			parent = nodes[rng.Intn(len(nodes))]
		}
		ratio := float32(0.25 + 0.75*rng.Float64())
		child := tree.AddChild(parent, target(fmt.Sprintf("m%d", i), 1+rng.Intn(30)), i, ratio)
		child.SetStaticBenefit(rng.Intn(4))
		nodes = append(nodes, child)
	}
	return tree
}

// bruteForce returns the largest benefit of a precedence-closed selection within budget.
func bruteForce(tree *idt.IDT, budget int) float64 {
	n := tree.NumNodes()
	bestBenefit := 0.0
	for mask := 0; mask < 1<<(n-1); mask++ {
		p := NewProposal(tree)
		p.Add(tree.Root())
		for i := 0; i < n-1; i++ {
			if mask&(1<<i) != 0 {
				p.AddID(idt.NodeID(i))
			}
		}
		if p.Cost() <= budget && p.PrecedenceClosed() && p.Benefit() > bestBenefit {
			bestBenefit = p.Benefit()
		}
	}
	return bestBenefit
}

func TestPackingProperties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		star := iter%4 == 0
		tree := randomTree(t, rng, 2+rng.Intn(10), star)
		budget := 1 + rng.Intn(tree.TotalCost()+5)

		p := Pack(tree, budget, nil)
		require.True(t, p.PrecedenceClosed(), "iteration %d", iter)
		require.LessOrEqual(t, p.Cost(), budget, "iteration %d", iter)
		require.True(t, p.Contains(tree.Root()), "iteration %d", iter)
		if tree.TotalCost() <= budget {
			require.Equal(t, tree.NumNodes(), p.Len())
		}

		optimum := bruteForce(tree, budget)
		require.LessOrEqual(t, p.Benefit(), optimum+1e-9, "iteration %d", iter)
		if star {
			// Without nesting the table is an exact knapsack.
			require.InDelta(t, optimum, p.Benefit(), 1e-9, "iteration %d", iter)
		}
	}
}

func TestProposal(t *testing.T) {
	t.Parallel()

	tree := newTree(t, 100)
	a := tree.AddChild(tree.Root(), target("a", 5), 0, 1)
	b := tree.AddChild(a, target("b", 7), 0, 0.5)
	tree.Flatten()

	p := NewProposal(tree)
	require.True(t, p.IsEmpty())
	require.Zero(t, p.Cost())
	require.Equal(t, "Proposal: empty", p.String())

	p.Add(b)
	require.False(t, p.IsEmpty())
	require.Equal(t, 7, p.Cost())
	require.Equal(t, 5.0, p.Benefit())
	require.False(t, p.PrecedenceClosed())

	// Adding invalidates the cached totals.
	p.Add(a)
	require.Equal(t, 12, p.Cost())
	require.Equal(t, 15.0, p.Benefit())

	q := NewProposal(tree)
	q.Add(tree.Root())
	require.False(t, p.Intersects(q))
	clone := p.Clone()
	p.Union(q)
	require.True(t, p.Intersects(q))
	require.True(t, p.PrecedenceClosed())
	require.Equal(t, 3, p.Len())
	require.Equal(t, 2, clone.Len())
	require.Equal(t, "Proposal: 3 nodes, cost 12, benefit 25.00: #-1 #0 #1", p.String())

	other := NewProposal(newTree(t, 5))
	require.Panics(t, func() { p.Union(other) })
	require.Panics(t, func() { p.AddID(-2) })
	require.False(t, p.ContainsID(-2))
	require.False(t, p.ContainsID(500))

	var none *Proposal
	require.True(t, none.IsEmpty())
	require.Zero(t, none.Len())
	require.False(t, none.ContainsID(0))
	require.False(t, none.Intersects(p))
}

func TestProposalGrows(t *testing.T) {
	t.Parallel()

	tree := newTree(t, 1000)
	p := NewProposal(tree)
	var want []idt.NodeID
	for i := 0; i < 130; i++ {
		n := tree.AddChild(tree.Root(), target(fmt.Sprintf("m%d", i), 1), i, 1)
		p.Add(n)
		want = append(want, n.ID())
	}
	if diff := cmp.Diff(want, p.IDs()); diff != "" {
		t.Errorf("unexpected ids (-want +got):\n%s", diff)
	}
}

func TestTable(t *testing.T) {
	t.Parallel()

	tree := newTree(t, 100)
	empty := NewProposal(tree)
	table := NewTable(2, 3, empty)
	require.Equal(t, 2, table.Rows())
	require.Equal(t, 3, table.Cols())
	require.Same(t, empty, table.Get(-1, 0))
	require.Same(t, empty, table.Get(0, -1))
	require.Same(t, empty, table.Get(2, 0))
	require.Same(t, empty, table.Get(1, 2))

	p := NewProposal(tree)
	p.Add(tree.Root())
	table.Set(1, 2, p)
	require.Same(t, p, table.Get(1, 2))
	require.Panics(t, func() { table.Set(2, 0, p) })
	require.Panics(t, func() { NewTable(1, 1, p) })
	require.Panics(t, func() { NewTable(-1, 1, empty) })
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
