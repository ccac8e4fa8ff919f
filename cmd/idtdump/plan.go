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

package main

import (
	"context"
	"fmt"
	"go/token"
	"regexp"
	"sort"

	"github.com/qasimy123/inlineplan/config"
	"github.com/qasimy123/inlineplan/frontend"
	"github.com/qasimy123/inlineplan/idt"
	"github.com/qasimy123/inlineplan/inliner"
	"github.com/qasimy123/inlineplan/util/tokenhelper"
	"go.uber.org/multierr"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// dumpPlan is the printable form of the plan of one function.
type dumpPlan struct {
	Root            string    `json:"root" yaml:"root"`
	Budget          int       `json:"budget" yaml:"budget"`
	TotalCost       int       `json:"totalCost" yaml:"totalCost"`
	SelectedCost    int       `json:"selectedCost" yaml:"selectedCost"`
	SelectedBenefit float64   `json:"selectedBenefit" yaml:"selectedBenefit"`
	Tree            *dumpNode `json:"tree,omitempty" yaml:"tree,omitempty"`
	Error           string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// dumpNode is the printable form of one node of an inlining tree.
type dumpNode struct {
	ID            int         `json:"id" yaml:"id"`
	Name          string      `json:"name" yaml:"name"`
	BCIndex       int         `json:"bcIndex" yaml:"bcIndex"`
	Pos           string      `json:"pos,omitempty" yaml:"pos,omitempty"`
	Cost          int         `json:"cost" yaml:"cost"`
	Benefit       float64     `json:"benefit" yaml:"benefit"`
	CallRatio     float32     `json:"callRatio" yaml:"callRatio"`
	RootCallRatio float64     `json:"rootCallRatio" yaml:"rootCallRatio"`
	StaticBenefit int         `json:"staticBenefit" yaml:"staticBenefit"`
	Selected      bool        `json:"selected" yaml:"selected"`
	Children      []*dumpNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// collectFunctions returns the functions with a body declared in pkgs and in scope of conf,
// sorted by name. Synthetic functions are skipped.
func collectFunctions(prog *ssa.Program, pkgs []*ssa.Package, conf *config.Config, filter *regexp.Regexp) []*ssa.Function {
	wanted := make(map[*ssa.Package]bool, len(pkgs))
	for _, pkg := range pkgs {
		if pkg != nil && conf.IsPkgInScope(pkg.Pkg.Path()) {
			wanted[pkg] = true
		}
	}

	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(prog) {
		if fn.Synthetic != "" || len(fn.Blocks) == 0 || !wanted[fn.Pkg] {
			continue
		}
		if filter != nil && !filter.MatchString(fn.String()) {
			continue
		}
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })
	return fns
}

// planFunctions plans every function in order. A function that fails to plan is dumped with its
// error and the failures are combined into the returned error.
func planFunctions(ctx context.Context, prog *ssa.Program, conf *config.Config, fns []*ssa.Function) ([]*dumpPlan, error) {
	fe := frontend.NewProgram(prog,
		frontend.WithMaxTargets(conf.MaxTargetsPerSite),
		frontend.WithLogger(conf.Logger()),
	)
	inl := inliner.New(fe, inliner.FromConfig(conf))

	var errs error
	plans := make([]*dumpPlan, 0, len(fns))
	for _, fn := range fns {
		plan, err := inl.Plan(ctx, fe.Method(fn))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("plan %s: %w", fn, err))
			plans = append(plans, &dumpPlan{Root: fn.String(), Error: err.Error()})
			continue
		}
		plans = append(plans, newDumpPlan(prog.Fset, plan))
		plan.Release()
	}
	return plans, errs
}

func newDumpPlan(fset *token.FileSet, plan *inliner.Plan) *dumpPlan {
	d := &dumpPlan{Root: plan.Root().Name(), Budget: plan.Budget()}
	tree := plan.Tree()
	if tree == nil {
		return d
	}
	d.TotalCost = tree.TotalCost()
	for _, n := range plan.Selected() {
		d.SelectedCost += n.Cost()
		d.SelectedBenefit += n.Benefit()
	}
	d.Tree = newDumpNode(fset, plan, tree.Root())
	return d
}

func newDumpNode(fset *token.FileSet, plan *inliner.Plan, n *idt.Node) *dumpNode {
	d := &dumpNode{
		ID:            int(n.ID()),
		Name:          n.Name(),
		BCIndex:       n.BCIndex(),
		Cost:          n.Cost(),
		Benefit:       n.Benefit(),
		CallRatio:     n.CallRatio(),
		RootCallRatio: n.RootCallRatio(),
		StaticBenefit: n.StaticBenefit(),
		Selected:      plan.Contains(n),
	}
	if p := n.Parent(); p != nil {
		d.Pos = callSitePosition(fset, p, n.BCIndex())
	}
	for i := 0; i < n.NumChildren(); i++ {
		d.Children = append(d.Children, newDumpNode(fset, plan, n.Child(i)))
	}
	return d
}

// callSitePosition returns the source position of the call site at index in the body of caller.
func callSitePosition(fset *token.FileSet, caller *idt.Node, index int) string {
	m, ok := caller.Method().(*frontend.Method)
	if !ok {
		return "-"
	}
	instr := m.Instr(index)
	if instr == nil {
		return "-"
	}
	return tokenhelper.Position(fset, instr.Pos())
}
