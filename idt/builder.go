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

	"github.com/qasimy123/inlineplan/absinterp"
	"github.com/qasimy123/inlineplan/config"
	"github.com/qasimy123/inlineplan/util/orderedmap"
	"github.com/qasimy123/inlineplan/util/region"
	"go.uber.org/zap"
)

// Builder grows inlining trees. A Builder holds no per-tree state and may build trees for
// different roots concurrently, provided its collaborators allow it.
type Builder struct {
	resolver Resolver
	cfgs     CFGBuilder
	interp   Interpreter
	logger   *zap.Logger
	maxNodes int
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger receiving the trace of every decision taken while building.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithMaxNodes sets the node ceiling of built trees, 0 for none.
func WithMaxNodes(n int) Option {
	return func(b *Builder) { b.maxNodes = n }
}

// NewBuilder returns a builder using the given collaborators.
func NewBuilder(resolver Resolver, cfgs CFGBuilder, interp Interpreter, opts ...Option) *Builder {
	b := &Builder{
		resolver: resolver,
		cfgs:     cfgs,
		interp:   interp,
		logger:   zap.NewNop(),
		maxNodes: config.MaxIDTNodes,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	return b
}

// Build builds the inlining tree of root with the given budget, allocating from r. When the
// root has no CFG the tree holds only the root. If ctx is done before the tree is complete,
// the partial tree is returned together with the context error.
func (b *Builder) Build(ctx context.Context, root Method, budget int, r *region.Region) (*IDT, error) {
	logger := b.logger.With(zap.String("root", root.Name()))
	logger.Debug("start building IDT", zap.Int("budget", budget))

	target := &CallTarget{Site: &CallSite{Callee: root, BCIndex: -1}, Callee: root}
	tree := New(r, target, budget)
	tree.SetMaxNodes(b.maxNodes)

	cfg := b.cfgs.BuildCFG(target)
	if cfg == nil {
		logger.Debug("no CFG for the root")
		return tree, nil
	}

	s := &buildState{
		Builder: b,
		ctx:     ctx,
		logger:  logger,
		tree:    tree,
		memo:    orderedmap.New[string, *Node](),
	}
	s.expand(tree.Root(), cfg, nil /* args */, -1, nil /* stack */)

	logger.Debug("finish building IDT", zap.Int("nodes", tree.NumNodes()), zap.Int("total cost", tree.TotalCost()))
	return tree, ctx.Err()
}

// buildState is the state of one Build call.
type buildState struct {
	*Builder
	ctx    context.Context
	logger *zap.Logger
	tree   *IDT
	// memo maps a method name to the first node for it whose expansion completed.
	memo *orderedmap.OrderedMap[string, *Node]
}

// expand interprets the callee of node, adding a child for every viable call target found,
// and attaches the callee summary to node.
func (s *buildState) expand(node *Node, cfg CFG, args *absinterp.Arguments, callerIndex int, stack *CallStack) {
	next := stack.Push(node.Method(), node.budget)
	v := &builderVisitor{state: s, node: node, cfg: cfg, stack: next}
	sum, err := s.interp.Interpret(s.ctx, node.target, cfg, args, callerIndex, s.tree.region, v)
	if err != nil {
		// The node keeps whatever children were found before the failure.
		s.logger.Debug("abstract interpretation failed", zap.String("method", node.Name()), zap.Error(err))
	}
	node.summary = sum
	node.staticBenefit = sum.StaticBenefit(args)
	if err == nil && s.ctx.Err() == nil {
		if _, ok := s.memo.Load(node.Name()); !ok {
			s.memo.Store(node.Name(), node)
		}
	}
}

// addNodes adds the viable targets of site as children of parent.
func (s *buildState) addNodes(parent *Node, callerIndex int, site *CallSite, callRatio float32, args *absinterp.Arguments, stack *CallStack) {
	if site == nil {
		s.logger.Debug("no call site, don't add")
		return
	}
	if float64(callRatio)*parent.rootCallRatio < config.MinRootCallRatio {
		s.logger.Debug("root call ratio < 0.25, don't add", zap.Int("index", site.BCIndex))
		return
	}

	targets := s.resolver.Targets(site, stack)
	if len(targets) == 0 {
		s.logger.Debug("no call target, don't add", zap.Int("index", site.BCIndex))
		return
	}

	for _, target := range targets {
		if s.ctx.Err() != nil {
			return
		}
		if s.tree.Full() {
			s.logger.Debug("node ceiling reached, don't add", zap.Int("nodes", s.tree.NumNodes()))
			return
		}
		callee := target.Callee
		if callee == nil {
			continue
		}
		if parent.budget-callee.Size() < 0 {
			s.logger.Debug("no budget left, don't add", zap.String("callee", callee.Name()))
			continue
		}
		if stack.IsAnywhereOnTheStack(callee) {
			s.logger.Debug("recursive call, don't add", zap.String("callee", callee.Name()))
			continue
		}
		cfg := s.cfgs.BuildCFG(target)
		if cfg == nil {
			s.logger.Debug("fail to generate a CFG, don't add", zap.String("callee", callee.Name()))
			continue
		}

		s.logger.Debug("adding a child node", zap.String("callee", callee.Name()), zap.String("parent", parent.Name()))
		child := s.tree.AddChild(parent, target, site.BCIndex, callRatio)

		if cached, ok := s.memo.Load(callee.Name()); ok {
			child.summary = cached.summary
			child.staticBenefit = cached.summary.StaticBenefit(args)
			n := s.tree.CopyDescendants(cached, child)
			s.logger.Debug("reused the expansion of a previous node", zap.String("callee", callee.Name()), zap.Int("copied", n))
			continue
		}
		s.expand(child, cfg, args, callerIndex+1, stack)
	}
}

// builderVisitor routes the call sites of one method to its node.
type builderVisitor struct {
	state *buildState
	node  *Node
	cfg   CFG
	stack *CallStack
}

// VisitCallSite implements Visitor.
func (v *builderVisitor) VisitCallSite(site *CallSite, callerIndex int, block Block, args *absinterp.Arguments) {
	if v.state.ctx.Err() != nil {
		return
	}
	if block == nil || block.Frequency() < config.ColdBlockFrequency || block.IsCold() {
		return
	}
	entry := v.cfg.EntryFrequency()
	if entry <= 0 {
		return
	}
	ratio := float32(block.Frequency()) / float32(entry)
	if ratio > 1 {
		// Blocks inside loops run more often than the entry, but the call ratio is a probability.
		ratio = 1
	}
	v.state.addNodes(v.node, callerIndex, site, ratio, args, v.stack)
}
