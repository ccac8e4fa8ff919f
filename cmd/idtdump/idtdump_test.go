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
	"bytes"
	"context"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/qasimy123/inlineplan/config"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
	"gopkg.in/yaml.v3"
)

const _src = `package p

func add(x, y int) int { return x + y }

func run(x int) int { return add(x, x) }
`

func buildProgram(t *testing.T) (*ssa.Program, *ssa.Package) {
	t.Helper()

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", _src, 0)
	require.NoError(t, err)
	pkg, _, err := ssautil.BuildPackage(
		&types.Config{Importer: importer.Default()}, fset,
		types.NewPackage("example.com/p", "p"), []*ast.File{f}, ssa.SanityCheckFunctions,
	)
	require.NoError(t, err)
	return pkg.Prog, pkg
}

func names(fns []*ssa.Function) []string {
	var s []string
	for _, fn := range fns {
		s = append(s, fn.String())
	}
	return s
}

func plansOf(t *testing.T) []*dumpPlan {
	t.Helper()

	prog, pkg := buildProgram(t)
	conf := config.Default()
	plans, err := planFunctions(context.Background(), prog, conf, collectFunctions(prog, []*ssa.Package{pkg}, conf, nil))
	require.NoError(t, err)
	return plans
}

func TestCollectFunctions(t *testing.T) {
	t.Parallel()

	prog, pkg := buildProgram(t)
	pkgs := []*ssa.Package{pkg}

	fns := collectFunctions(prog, pkgs, config.Default(), nil)
	require.Equal(t, []string{"example.com/p.add", "example.com/p.run"}, names(fns))

	fns = collectFunctions(prog, pkgs, config.Default(), regexp.MustCompile(`\.run$`))
	require.Equal(t, []string{"example.com/p.run"}, names(fns))

	conf := config.Default()
	conf.ExcludePkgs = []string{"example.com"}
	require.Empty(t, collectFunctions(prog, pkgs, conf, nil))
}

func TestPlanFunctions(t *testing.T) {
	t.Parallel()

	plans := plansOf(t)
	require.Len(t, plans, 2)

	add, run := plans[0], plans[1]
	require.Equal(t, "example.com/p.add", add.Root)
	require.NotNil(t, add.Tree)
	require.Empty(t, add.Tree.Children)
	require.Zero(t, add.SelectedCost)

	require.Equal(t, "example.com/p.run", run.Root)
	require.Empty(t, run.Error)
	require.Len(t, run.Tree.Children, 1)
	child := run.Tree.Children[0]
	require.Equal(t, "example.com/p.add", child.Name)
	require.True(t, child.Selected)
	require.Regexp(t, `^p\.go:5:\d+$`, child.Pos)
	require.Empty(t, run.Tree.Pos)
	require.False(t, run.Tree.Selected)
	require.Equal(t, child.Cost, run.SelectedCost)
	require.InDelta(t, 10.0, run.SelectedBenefit, 1e-9)
	require.Positive(t, run.Budget)
}

func TestTextWriter(t *testing.T) {
	t.Parallel()

	plans := plansOf(t)

	var buf bytes.Buffer
	require.NoError(t, newTextWriter(false).write(&buf, plans))
	out := buf.String()
	require.Contains(t, out, "example.com/p.run  budget ")
	require.Contains(t, out, "\n  example.com/p.add  #0 @")
	require.Contains(t, out, "  inline\n")
	require.NotContains(t, out, "\x1b[")

	buf.Reset()
	require.NoError(t, newTextWriter(true).write(&buf, plans))
	require.Contains(t, buf.String(), "\x1b[")
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	plans := plansOf(t)

	var buf bytes.Buffer
	require.NoError(t, jsonWriter{}.write(&buf, plans))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, "example.com/p.run", decoded[1]["root"])
	require.Contains(t, decoded[1], "tree")
	require.NotContains(t, decoded[1], "error")
}

func TestYAMLWriter(t *testing.T) {
	t.Parallel()

	plans := plansOf(t)

	var buf bytes.Buffer
	require.NoError(t, yamlWriter{}.write(&buf, plans))
	var decoded []*dumpPlan
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	if diff := cmp.Diff(plans, decoded); diff != "" {
		t.Errorf("yaml dump mismatch (-want +got):\n%s", diff)
	}
}

func TestNewWriter(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"text", "json", "yaml"} {
		w, err := newWriter(format, false)
		require.NoError(t, err)
		require.NotNil(t, w)
	}
	_, err := newWriter("xml", false)
	require.ErrorContains(t, err, `unknown format "xml"`)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
