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

// Package inliner plans the inlining of one root function: it sizes the budget, builds the
// inlining tree, packs it into a proposal, and walks the proposal to drive the splicing of
// callee bodies.
package inliner

import (
	"context"
	"fmt"

	"github.com/qasimy123/inlineplan/budget"
	"github.com/qasimy123/inlineplan/config"
	"github.com/qasimy123/inlineplan/idt"
	"github.com/qasimy123/inlineplan/packing"
	"github.com/qasimy123/inlineplan/util/analysishelper"
	"github.com/qasimy123/inlineplan/util/region"
	"go.uber.org/zap"
)

// Frontend supplies the program-specific collaborators of the planner.
type Frontend interface {
	idt.Resolver
	idt.CFGBuilder
	idt.Interpreter
}

// Option configures a BenefitInliner.
type Option func(*BenefitInliner)

// WithLogger sets the logger tracing the planning decisions.
func WithLogger(logger *zap.Logger) Option {
	return func(b *BenefitInliner) { b.logger = logger }
}

// WithHotness sets the optimization tier used to size budgets.
func WithHotness(h budget.Hotness) Option {
	return func(b *BenefitInliner) { b.hotness = h }
}

// WithBudget fixes the budget of every plan instead of deriving it from the root size. Zero
// restores the derived budget.
func WithBudget(n int) Option {
	return func(b *BenefitInliner) { b.fixedBudget = n }
}

// WithMaxNodes sets the node ceiling of inlining trees, 0 for none.
func WithMaxNodes(n int) Option {
	return func(b *BenefitInliner) { b.maxNodes = n }
}

// FromConfig applies the planning settings of c.
func FromConfig(c *config.Config) Option {
	return func(b *BenefitInliner) {
		b.logger = c.Logger()
		b.hotness = c.Hotness
		b.fixedBudget = c.Budget
		b.maxNodes = c.MaxIDTNodes
	}
}

// BenefitInliner plans inlining by expected benefit under a size budget.
type BenefitInliner struct {
	builder     *idt.Builder
	logger      *zap.Logger
	hotness     budget.Hotness
	fixedBudget int
	maxNodes    int
}

// New returns an inliner using the collaborators of fe.
func New(fe Frontend, opts ...Option) *BenefitInliner {
	b := &BenefitInliner{
		logger:   zap.NewNop(),
		hotness:  budget.Normal,
		maxNodes: config.MaxIDTNodes,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	b.builder = idt.NewBuilder(fe, fe, fe, idt.WithLogger(b.logger), idt.WithMaxNodes(b.maxNodes))
	return b
}

// Budget returns the budget of a plan for root.
func (b *BenefitInliner) Budget(root idt.Method) int {
	if b.fixedBudget > 0 {
		return b.fixedBudget
	}
	return budget.ForCaller(root.Size(), b.hotness)
}

// Plan builds the inlining plan of root. Planning never fails the caller: when the tree cannot
// be completed or an internal precondition is violated, the returned plan inlines nothing and
// the error says why.
func (b *BenefitInliner) Plan(ctx context.Context, root idt.Method) (*Plan, error) {
	r := region.NewRegion(root.Name())
	plan := &Plan{root: root, budget: b.Budget(root), region: r, logger: b.logger}
	err := analysishelper.Guard(root.Name(), func() error {
		tree, err := b.builder.Build(ctx, root, plan.budget, r)
		if err != nil {
			return fmt.Errorf("building the inlining tree of %s: %w", root.Name(), err)
		}
		tree.Trace(b.logger)
		plan.tree = tree
		plan.proposal = packing.Pack(tree, plan.budget, b.logger)
		return nil
	})
	if err != nil {
		b.logger.Debug("planning failed, inlining nothing", zap.String("root", root.Name()), zap.Error(err))
		plan.tree, plan.proposal = nil, nil
		return plan, err
	}
	return plan, nil
}

// Plan is the inlining decision for one root function.
type Plan struct {
	root     idt.Method
	budget   int
	region   *region.Region
	tree     *idt.IDT
	proposal *packing.Proposal
	logger   *zap.Logger
}

// Root returns the planned function.
func (p *Plan) Root() idt.Method { return p.root }

// Budget returns the budget the plan was made with.
func (p *Plan) Budget() int { return p.budget }

// Tree returns the inlining tree, nil if planning failed.
func (p *Plan) Tree() *idt.IDT { return p.tree }

// Proposal returns the selected nodes, nil if planning failed.
func (p *Plan) Proposal() *packing.Proposal { return p.proposal }

// Empty reports whether the plan inlines nothing.
func (p *Plan) Empty() bool { return len(p.Selected()) == 0 }

// Contains reports whether n is selected for inlining.
func (p *Plan) Contains(n *idt.Node) bool {
	return p.proposal != nil && !n.IsRoot() && p.proposal.Contains(n)
}

// Selected returns the nodes to inline, breadth first, excluding the root.
func (p *Plan) Selected() []*idt.Node {
	if p.tree == nil || p.proposal == nil {
		return nil
	}
	var nodes []*idt.Node
	p.tree.BFS(func(n *idt.Node) bool {
		if p.Contains(n) {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}

// Release frees the memory of the plan. The plan must not be used afterwards.
func (p *Plan) Release() {
	p.tree, p.proposal = nil, nil
	if !p.region.Released() {
		p.region.Release()
	}
}

// Splicer performs the inlining the plan decides on.
type Splicer interface {
	// CallSites returns the indices of the call sites in the body of into, in program order.
	CallSites(into *idt.Node) []int
	// Inline splices the callee of child into the body of into at the call site of child. It
	// reports whether inlining happened.
	Inline(into, child *idt.Node) (bool, error)
}

// Execute walks the call sites of the root and, recursively, of every inlined body, asking s to
// inline exactly the selected nodes. It stops after config.MaxInlineCount successful inlines
// and returns their number.
func (p *Plan) Execute(ctx context.Context, s Splicer) (int, error) {
	if p.tree == nil || p.proposal == nil {
		return 0, nil
	}
	w := &walker{plan: p, splicer: s}
	err := w.inlineInto(ctx, p.tree.Root())
	return w.count, err
}

type walker struct {
	plan    *Plan
	splicer Splicer
	count   int
}

func (w *walker) inlineInto(ctx context.Context, node *idt.Node) error {
	for _, index := range w.splicer.CallSites(node) {
		if err := ctx.Err(); err != nil {
			return err
		}
		child := w.selectedChild(node, index)
		if child == nil {
			continue
		}
		ok, err := w.splicer.Inline(node, child)
		if err != nil {
			return fmt.Errorf("inlining %s into %s: %w", child.Name(), node.Name(), err)
		}
		if !ok {
			continue
		}
		w.count++
		if w.count >= config.MaxInlineCount {
			w.plan.logger.Debug("stopping inlining as max inline count reached", zap.Int("count", config.MaxInlineCount))
			return nil
		}
		if err := w.inlineInto(ctx, child); err != nil {
			return err
		}
		if w.count >= config.MaxInlineCount {
			return nil
		}
	}
	return nil
}

// selectedChild returns the first selected child of node for the call site at index. A dynamic
// call site may have several children, one per target.
func (w *walker) selectedChild(node *idt.Node, index int) *idt.Node {
	for i := 0; i < node.NumChildren(); i++ {
		if c := node.Child(i); c.BCIndex() == index && w.plan.Contains(c) {
			return c
		}
	}
	return nil
}
