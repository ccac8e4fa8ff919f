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

package frontend

import (
	"context"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/qasimy123/inlineplan/absinterp"
	"github.com/qasimy123/inlineplan/idt"
	"github.com/qasimy123/inlineplan/summary"
	"github.com/qasimy123/inlineplan/util/region"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

func buildProgram(t *testing.T, src string, opts ...Option) (*Program, *ssa.Package) {
	t.Helper()

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", src, 0)
	require.NoError(t, err)
	pkg, _, err := ssautil.BuildPackage(
		&types.Config{Importer: importer.Default()}, fset,
		types.NewPackage("example.com/p", "p"), []*ast.File{f}, ssa.SanityCheckFunctions,
	)
	require.NoError(t, err)
	return NewProgram(pkg.Prog, opts...), pkg
}

func lookup(t *testing.T, pkg *ssa.Package, name string) *ssa.Function {
	t.Helper()
	fn := pkg.Func(name)
	require.NotNil(t, fn, "no function %s", name)
	return fn
}

// blockCalling returns the block of the first static call to the function named callee.
func blockCalling(t *testing.T, fn *ssa.Function, callee string) *ssa.BasicBlock {
	t.Helper()
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			call, ok := instr.(*ssa.Call)
			if !ok {
				continue
			}
			if c := call.Common().StaticCallee(); c != nil && c.Name() == callee {
				return b
			}
		}
	}
	require.Failf(t, "call not found", "no call to %s in %s", callee, fn)
	return nil
}

func buildTree(t *testing.T, p *Program, root *ssa.Function, budget int) *idt.IDT {
	t.Helper()
	tree, err := idt.NewBuilder(p, p, p).Build(context.Background(), p.Method(root), budget, region.NewRegion(t.Name()))
	require.NoError(t, err)
	return tree
}

func childNames(n *idt.Node) []string {
	var names []string
	for i := 0; i < n.NumChildren(); i++ {
		names = append(names, n.Child(i).Name())
	}
	return names
}

const _methodSrc = `package p

func a() {}

func b(x int) int {
	a()
	return x + 1
}
`

func TestMethod(t *testing.T) {
	t.Parallel()

	p, pkg := buildProgram(t, _methodSrc)
	fn := lookup(t, pkg, "b")
	m := p.Method(fn)
	require.Same(t, m, p.Method(fn))
	require.Equal(t, "example.com/p.b", m.Name())
	require.Same(t, fn, m.Func())
	require.True(t, m.HasBody())

	// a(); x + 1; return
	require.Equal(t, 3, m.Size())
	require.Equal(t, []int{0}, m.CallSites())
	require.IsType(t, &ssa.Call{}, m.Instr(0))
	require.IsType(t, &ssa.Return{}, m.Instr(2))
	require.Nil(t, m.Instr(3))
	require.Nil(t, m.Instr(-1))

	i, ok := m.Index(m.Instr(1))
	require.True(t, ok)
	require.Equal(t, 1, i)
}

const _frequencySrc = `package p

func ca() {}
func cb() {}
func cc() {}
func cd() {}
func ce() {}

func freq(x int) {
	if x > 0 {
		ca()
	} else {
		cb()
	}
	for i := 0; i < x; i++ {
		cc()
	}
	cd()
}

func cold(x int) {
	if x < 0 {
		ce()
		panic("negative")
	}
	ca()
}
`

func TestCFGFrequencies(t *testing.T) {
	t.Parallel()

	p, pkg := buildProgram(t, _frequencySrc)
	fn := lookup(t, pkg, "freq")
	cfg, ok := p.BuildCFG(&idt.CallTarget{Callee: p.Method(fn)}).(*CFG)
	require.True(t, ok)
	require.Same(t, fn, cfg.Func())
	require.Equal(t, 10000, cfg.EntryFrequency())

	got := map[string]int{}
	for _, callee := range []string{"ca", "cb", "cc", "cd"} {
		got[callee] = cfg.Block(blockCalling(t, fn, callee)).Frequency()
	}
	want := map[string]int{"ca": 5000, "cb": 5000, "cc": 40000, "cd": 10000}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("block frequencies mismatch (-want +got):\n%s", diff)
	}

	// Exactly one loop, closed by one back edge.
	headers, backEdges := 0, 0
	for _, b := range cfg.Order() {
		if cfg.IsLoopHeader(b) {
			headers++
		}
		for _, s := range b.Succs {
			if cfg.IsBackEdge(b, s) {
				backEdges++
			}
		}
	}
	require.Equal(t, 1, headers)
	require.Equal(t, 1, backEdges)

	// Every block comes after its forward predecessors.
	seen := map[*ssa.BasicBlock]bool{}
	for _, b := range cfg.Order() {
		for _, pred := range b.Preds {
			if !cfg.IsBackEdge(pred, b) {
				require.True(t, seen[pred], "block %d visited before its predecessor %d", b.Index, pred.Index)
			}
		}
		seen[b] = true
	}

	// The graph is built once per function.
	require.Same(t, cfg, p.BuildCFG(&idt.CallTarget{Callee: p.Method(fn)}))
}

func TestCFGColdBlocks(t *testing.T) {
	t.Parallel()

	p, pkg := buildProgram(t, _frequencySrc)
	fn := lookup(t, pkg, "cold")
	cfg := p.BuildCFG(&idt.CallTarget{Callee: p.Method(fn)}).(*CFG)

	require.True(t, cfg.Block(blockCalling(t, fn, "ce")).IsCold())
	require.False(t, cfg.Block(blockCalling(t, fn, "ca")).IsCold())
	require.False(t, cfg.Block(fn.Blocks[0]).IsCold())
}

type foreignMethod struct{}

func (foreignMethod) Name() string { return "foreign" }
func (foreignMethod) Size() int    { return 1 }

func TestBuildCFGForeignMethod(t *testing.T) {
	t.Parallel()

	p, _ := buildProgram(t, _methodSrc)
	require.Nil(t, p.BuildCFG(&idt.CallTarget{Callee: foreignMethod{}}))
}

const _summarySrc = `package p

type T struct{ f int }

type I interface{ M() }

type S struct{}

func (*S) M() {}

func callee(n int, p *T, i I, ok bool, q *T) int {
	if n < 10 {
		return 1
	}
	if p == nil {
		return 2
	}
	if ok {
		return 3
	}
	if _, yes := i.(*S); yes {
		return 4
	}
	return q.f
}

func caller() int {
	return callee(3, nil, &S{}, true, &T{})
}

func refined(n int, p *T) int {
	if n == 7 {
		return callee(n, nil, nil, false, p)
	}
	if p != nil {
		return callee(0, nil, nil, false, p)
	}
	return 0
}

func must(i I) *S {
	return i.(*S)
}

func fact(n int) int {
	if n <= 1 {
		return 1
	}
	return n * fact(n-1)
}
`

func TestInterpretSummary(t *testing.T) {
	t.Parallel()

	p, pkg := buildProgram(t, _summarySrc)
	m := p.Method(lookup(t, pkg, "callee"))
	target := &idt.CallTarget{Callee: m}
	sum, err := p.Interpret(context.Background(), target, p.BuildCFG(target), nil /* args */, 0, region.NewRegion(t.Name()), nil /* visitor */)
	require.NoError(t, err)
	require.Equal(t, m.Name(), sum.Method())

	instrOf := map[summary.OptKind]ssa.Instruction{
		summary.BranchFolding:     &ssa.If{},
		summary.NullBranchFolding: &ssa.If{},
		summary.InstanceOfFolding: &ssa.TypeAssert{},
		summary.NullCheckFolding:  &ssa.FieldAddr{},
	}
	got := map[int][]summary.OptKind{}
	for _, opt := range sum.Opts() {
		kind := opt.Predicate.Kind()
		got[opt.ArgPos] = append(got[opt.ArgPos], kind)
		require.IsType(t, instrOf[kind], m.Instr(opt.BCIndex), "optimization of kind %s", kind)
	}
	want := map[int][]summary.OptKind{
		0: {summary.BranchFolding},
		1: {summary.NullBranchFolding},
		2: {summary.InstanceOfFolding},
		3: {summary.BranchFolding},
		4: {summary.NullCheckFolding},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	branch, ok := sum.Opts()[0].Predicate.(*summary.BranchFoldingPredicate)
	require.True(t, ok)
	require.Equal(t, summary.IfLt, branch.Branch)
	require.EqualValues(t, 10, branch.Constant)
}

func TestInterpretCheckedCast(t *testing.T) {
	t.Parallel()

	p, pkg := buildProgram(t, _summarySrc)
	m := p.Method(lookup(t, pkg, "must"))
	target := &idt.CallTarget{Callee: m}
	sum, err := p.Interpret(context.Background(), target, p.BuildCFG(target), nil /* args */, 0, region.NewRegion(t.Name()), nil /* visitor */)
	require.NoError(t, err)
	require.Len(t, sum.Opts(), 1)
	require.Equal(t, summary.CheckCastFolding, sum.Opts()[0].Predicate.Kind())
	require.Equal(t, 0, sum.Opts()[0].ArgPos)
}

func TestStaticBenefitFromArguments(t *testing.T) {
	t.Parallel()

	p, pkg := buildProgram(t, _summarySrc)
	tree := buildTree(t, p, lookup(t, pkg, "caller"), 1000)
	root := tree.Root()
	require.Equal(t, []string{"example.com/p.callee"}, childNames(root))
	// Every argument is a constant or a fresh object: all five tests fold.
	require.Equal(t, 5, root.Child(0).StaticBenefit())
}

func TestStaticBenefitFromRefinedArguments(t *testing.T) {
	t.Parallel()

	p, pkg := buildProgram(t, _summarySrc)
	tree := buildTree(t, p, lookup(t, pkg, "refined"), 1000)
	root := tree.Root()
	require.Equal(t, 2, root.NumChildren())

	children := []*idt.Node{root.Child(0), root.Child(1)}
	slices.SortFunc(children, func(a, b *idt.Node) int { return a.BCIndex() - b.BCIndex() })
	// n == 7 along the first call, p unknown.
	require.Equal(t, 4, children[0].StaticBenefit())
	// p != nil along the second call.
	require.Equal(t, 5, children[1].StaticBenefit())
}

func TestRecursionIsNotExpanded(t *testing.T) {
	t.Parallel()

	p, pkg := buildProgram(t, _summarySrc)
	tree := buildTree(t, p, lookup(t, pkg, "fact"), 1000)
	require.Equal(t, 1, tree.NumNodes())
}

const _dispatchSrc = `package p

type Shape interface{ Area() int }

type Sq struct{ s int }

func (q Sq) Area() int { return q.s * q.s }

type Rect struct{ w, h int }

func (r Rect) Area() int { return r.w * r.h }

func total(s Shape) int {
	return s.Area()
}
`

func TestInterfaceCallTargets(t *testing.T) {
	t.Parallel()

	p, pkg := buildProgram(t, _dispatchSrc)
	tree := buildTree(t, p, lookup(t, pkg, "total"), 1000)
	require.Equal(t, []string{"(example.com/p.Rect).Area", "(example.com/p.Sq).Area"}, childNames(tree.Root()))

	p, pkg = buildProgram(t, _dispatchSrc, WithMaxTargets(1))
	tree = buildTree(t, p, lookup(t, pkg, "total"), 1000)
	require.Equal(t, []string{"(example.com/p.Rect).Area"}, childNames(tree.Root()))
}

const _funcValueSrc = `package p

func one() int { return 1 }

func apply(f func() int) int {
	return f()
}
`

func TestFunctionValueCallTargets(t *testing.T) {
	t.Parallel()

	p, pkg := buildProgram(t, _funcValueSrc)
	fn := lookup(t, pkg, "apply")
	tree := buildTree(t, p, fn, 1000)
	require.Equal(t, []string{"example.com/p.one"}, childNames(tree.Root()))

	// Calling a function parameter checks it for nil.
	m := p.Method(fn)
	target := &idt.CallTarget{Callee: m}
	sum, err := p.Interpret(context.Background(), target, p.BuildCFG(target), nil /* args */, 0, region.NewRegion(t.Name()), nil /* visitor */)
	require.NoError(t, err)
	require.Len(t, sum.Opts(), 1)
	require.Equal(t, summary.NullCheckFolding, sum.Opts()[0].Predicate.Kind())
}

func TestInterpretCancelled(t *testing.T) {
	t.Parallel()

	p, pkg := buildProgram(t, _summarySrc)
	m := p.Method(lookup(t, pkg, "callee"))
	target := &idt.CallTarget{Callee: m}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := p.Interpret(ctx, target, p.BuildCFG(target), nil /* args */, 0, region.NewRegion(t.Name()), nil /* visitor */)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, sum.NumOpts())
}

func TestInterpretForeignCollaborators(t *testing.T) {
	t.Parallel()

	p, pkg := buildProgram(t, _summarySrc)
	r := region.NewRegion(t.Name())
	require.PanicsWithValue(t, "ERROR: method foreign does not belong to the SSA frontend", func() {
		_, _ = p.Interpret(context.Background(), &idt.CallTarget{Callee: foreignMethod{}}, nil, nil, 0, r, nil)
	})

	callee := &idt.CallTarget{Callee: p.Method(lookup(t, pkg, "callee"))}
	other := &idt.CallTarget{Callee: p.Method(lookup(t, pkg, "caller"))}
	require.Panics(t, func() {
		_, _ = p.Interpret(context.Background(), callee, p.BuildCFG(other), nil, 0, r, nil)
	})
}

func TestOracle(t *testing.T) {
	t.Parallel()

	p, pkg := buildProgram(t, _summarySrc+`
type E interface{}
`)
	typeOf := func(name string) types.Type { return pkg.Pkg.Scope().Lookup(name).Type() }
	class := func(t types.Type) absinterp.Class { return p.Class(t) }

	s, ptrS, tType := typeOf("S"), types.NewPointer(typeOf("S")), typeOf("T")
	i, e := typeOf("I"), typeOf("E")

	tests := []struct {
		name     string
		instance types.Type
		cast     types.Type
		fixed    bool
		want     absinterp.YesNoMaybe
	}{
		{name: "identical", instance: ptrS, cast: ptrS, want: absinterp.Yes},
		{name: "pointer implements", instance: ptrS, cast: i, want: absinterp.Yes},
		{name: "value lacks pointer method", instance: s, cast: i, want: absinterp.No},
		{name: "distinct concrete types", instance: s, cast: tType, want: absinterp.No},
		{name: "interface may hold the type", instance: i, cast: ptrS, want: absinterp.Maybe},
		{name: "interface cannot hold the type", instance: i, cast: tType, want: absinterp.No},
		{name: "interface implements interface", instance: i, cast: e, want: absinterp.Yes},
		{name: "interface may implement interface", instance: e, cast: i, want: absinterp.Maybe},
		{name: "fixed dynamic type", instance: ptrS, cast: i, fixed: true, want: absinterp.Yes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Oracle{}.IsInstanceOf(class(tt.instance), class(tt.cast), tt.fixed))
		})
	}

	require.Equal(t, absinterp.Maybe, Oracle{}.IsInstanceOf(nil, class(i), false))
	require.Same(t, p.Class(ptrS), p.Class(types.NewPointer(typeOf("S"))))
	require.Equal(t, "*example.com/p.S", p.Class(ptrS).String())
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
