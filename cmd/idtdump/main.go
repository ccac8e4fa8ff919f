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

// main package implements idtdump, a tool that loads Go packages, plans the inlining of every
// function in them, and prints the inlining dependency tree of each function with the call sites
// selected for inlining marked.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/mattn/go-isatty"
	"github.com/qasimy123/inlineplan/config"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

const _loadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedImports | packages.NeedDeps | packages.NeedTypes | packages.NeedTypesSizes |
	packages.NeedSyntax | packages.NeedTypesInfo

var (
	_format = flag.String("format", "text", "Output format: text, json or yaml")
	_funcs  = flag.String("funcs", "", "Regular expression selecting the functions to dump by full name, empty for all")
	_tests  = flag.Bool("tests", false, "Also load the test variants of the packages")
)

func main() {
	config.Analyzer.Flags.VisitAll(func(f *flag.Flag) { flag.Var(f.Value, f.Name, f.Usage) })
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: idtdump [flags] packages...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), os.Stdout, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "idtdump: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out *os.File, patterns []string) error {
	conf, err := config.FromFlags(&config.Analyzer.Flags)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	logger := conf.Logger()
	defer func() { _ = logger.Sync() }()

	w, err := newWriter(*_format, isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()))
	if err != nil {
		return err
	}
	var filter *regexp.Regexp
	if *_funcs != "" {
		if filter, err = regexp.Compile(*_funcs); err != nil {
			return fmt.Errorf("parse -funcs: %w", err)
		}
	}

	prog, pkgs, err := load(patterns, *_tests)
	if err != nil {
		return err
	}
	logger.Debug("packages loaded", zap.Int("packages", len(pkgs)))

	plans, err := planFunctions(ctx, prog, conf, collectFunctions(prog, pkgs, conf, filter))
	if werr := w.write(out, plans); werr != nil {
		return fmt.Errorf("write plans: %w", werr)
	}
	return err
}

// load loads the packages matching patterns and builds their SSA form along with the SSA form of
// their dependencies, so calls into dependencies can be planned too.
func load(patterns []string, tests bool) (*ssa.Program, []*ssa.Package, error) {
	cfg := &packages.Config{Mode: _loadMode, Tests: tests}
	initial, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, nil, fmt.Errorf("load packages: %w", err)
	}
	if n := packages.PrintErrors(initial); n > 0 {
		return nil, nil, fmt.Errorf("%d errors while loading packages", n)
	}

	prog, pkgs := ssautil.AllPackages(initial, ssa.InstantiateGenerics)
	prog.Build()
	return prog, pkgs, nil
}

// writer prints the plans in one output format.
type writer interface {
	write(w io.Writer, plans []*dumpPlan) error
}

func newWriter(format string, colored bool) (writer, error) {
	switch format {
	case "text":
		return newTextWriter(colored), nil
	case "json":
		return jsonWriter{}, nil
	case "yaml":
		return yamlWriter{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q, want text, json or yaml", format)
	}
}
