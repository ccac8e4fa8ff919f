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

// Package planning plans the inlining of every function of a package and converts the plans
// into diagnostics for the top-level analyzer to report.
package planning

import (
	"context"
	"fmt"
	"go/ast"
	"reflect"
	"strings"
	"sync"

	"github.com/qasimy123/inlineplan/config"
	"github.com/qasimy123/inlineplan/frontend"
	"github.com/qasimy123/inlineplan/inliner"
	"github.com/qasimy123/inlineplan/util/analysishelper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/buildssa"
	"golang.org/x/tools/go/ssa"
)

const _doc = "Build the inlining dependency tree of every function in this package, pack the most" +
	" beneficial set of call sites into the budget of the function, and return a diagnostic for" +
	" every call site to inline"

// Result is the result of the planning analyzer.
type Result struct {
	// Diagnostics holds one diagnostic per inlined call site of a planned function.
	Diagnostics []analysis.Diagnostic
	// Selected maps the full name of every planned function to the names of the callees
	// selected for inlining into it, breadth first, nested callees included.
	Selected map[string][]string
}

// Analyzer plans the inlining of the functions of a package.
var Analyzer = &analysis.Analyzer{
	Name:       "inlineplan_planning_analyzer",
	Doc:        _doc,
	Run:        analysishelper.WrapRun(run),
	Requires:   []*analysis.Analyzer{config.Analyzer, buildssa.Analyzer},
	ResultType: reflect.TypeOf((*analysishelper.Result[Result])(nil)),
}

func run(p *analysis.Pass) (Result, error) {
	pass := analysishelper.NewEnhancedPass(p)
	conf := pass.ResultOf[config.Analyzer].(*config.Config)
	if !conf.IsPkgInScope(pass.Pkg.Path()) {
		return Result{}, nil
	}

	ssaInput := pass.ResultOf[buildssa.Analyzer].(*buildssa.SSA)
	roots := collectRoots(pass, conf, ssaInput.SrcFuncs)
	if len(roots) == 0 {
		return Result{}, nil
	}

	fe := frontend.NewProgram(ssaInput.Pkg.Prog,
		frontend.WithMaxTargets(conf.MaxTargetsPerSite),
		frontend.WithLogger(conf.Logger()),
	)
	inl := inliner.New(fe, inliner.FromConfig(conf))
	plans, err := planAll(context.Background(), fe, inl, roots)

	res := Result{Selected: make(map[string][]string, len(plans))}
	for _, plan := range plans {
		if plan == nil {
			continue
		}
		diagnostics, execErr := report(context.Background(), plan, conf.Logger())
		err = multierr.Append(err, execErr)
		res.Diagnostics = append(res.Diagnostics, diagnostics...)
		for _, n := range plan.Selected() {
			res.Selected[plan.Root().Name()] = append(res.Selected[plan.Root().Name()], n.Name())
		}
		plan.Release()
	}
	return res, err
}

// collectRoots returns the functions of the package to plan: functions with a body declared in
// files in scope, except those whose doc comment opts out.
func collectRoots(pass *analysishelper.EnhancedPass, conf *config.Config, funcs []*ssa.Function) []*ssa.Function {
	var roots []*ssa.Function
	for _, fn := range funcs {
		if fn == nil || len(fn.Blocks) == 0 {
			continue
		}
		if file := pass.FileOf(fn.Pos()); file == nil || !conf.IsFileInScope(file) {
			continue
		}
		if decl, ok := fn.Syntax().(*ast.FuncDecl); ok && decl.Doc != nil &&
			strings.Contains(decl.Doc.Text(), config.NoPlanString) {
			continue
		}
		roots = append(roots, fn)
	}
	return roots
}

// planAll plans every root concurrently. A failed plan inlines nothing; the failures are
// combined into the returned error.
func planAll(ctx context.Context, fe *frontend.Program, inl *inliner.BenefitInliner, roots []*ssa.Function) ([]*inliner.Plan, error) {
	plans := make([]*inliner.Plan, len(roots))
	var (
		mu   sync.Mutex
		errs error
	)

	var g errgroup.Group
	g.SetLimit(config.MaxConcurrentPlans)
	for i, fn := range roots {
		g.Go(func() error {
			plan, err := inl.Plan(ctx, fe.Method(fn))
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("plan %s: %w", fn, err))
				mu.Unlock()
			}
			plans[i] = plan
			return nil
		})
	}
	// The goroutines report their failures through errs.
	_ = g.Wait()
	return plans, errs
}

// report executes plan, turning every inlining into the root into a diagnostic at the call
// site. Inlinings into inlined callees are counted on the diagnostic of their outermost call.
func report(ctx context.Context, plan *inliner.Plan, logger *zap.Logger) ([]analysis.Diagnostic, error) {
	s := &reportingSplicer{}
	n, err := plan.Execute(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("execute the plan of %s: %w", plan.Root().Name(), err)
	}
	if n > 0 {
		logger.Debug("plan executed", zap.String("root", plan.Root().Name()), zap.Int("inlined", n))
	}
	return s.diagnostics(), nil
}
