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

// main package makes it possible to build the inlining planner as a standalone checker that can be
// independently invoked on other packages. It also makes it possible to run cpu and mem profiles
// on the planner through command line arguments when planning packages.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qasimy123/inlineplan"
	"github.com/qasimy123/inlineplan/config"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/singlechecker"
)

// Analyzer is identical to the one in inlineplan.go, except that it overrides the run function for
// extra filtering of diagnostics, since the singlechecker does not support suppression like other
// popular linter drivers.
var Analyzer = &analysis.Analyzer{
	Name:       inlineplan.Analyzer.Name,
	Doc:        inlineplan.Analyzer.Doc,
	Run:        run,
	FactTypes:  inlineplan.Analyzer.FactTypes,
	ResultType: inlineplan.Analyzer.ResultType,
	Requires:   inlineplan.Analyzer.Requires,
}

var (
	// _includeInFiles is a driver flag for specifying the list of file prefixes to only report
	// inlining decisions in.
	_includeInFiles string
	// _excludeInFiles is a driver flag for specifying the list of file prefixes to not report
	// inlining decisions in.
	_excludeInFiles string
)

func run(pass *analysis.Pass) (interface{}, error) {
	// The singlechecker plans every package it loads, dependencies included. Callers usually only
	// care about the decisions in their own files, so the diagnostics are filtered here.
	includes, err := parseFilePrefixes(_includeInFiles)
	if err != nil {
		return nil, fmt.Errorf("parse file prefixes for inclusion: %w", err)
	}
	excludes, err := parseFilePrefixes(_excludeInFiles)
	if err != nil {
		return nil, fmt.Errorf("parse file prefixes for exclusion: %w", err)
	}

	report := pass.Report
	pass.Report = func(d analysis.Diagnostic) {
		if keep(pass.Fset.File(d.Pos).Name(), includes, excludes) {
			report(d)
		}
	}

	// Delegate the real analysis run to the original inlineplan analyzer.
	return inlineplan.Analyzer.Run(pass)
}

// keep returns true iff the file p matches one of the includes and none of the excludes.
func keep(p string, includes, excludes []string) bool {
	for _, e := range excludes {
		if strings.HasPrefix(p, e) {
			return false
		}
	}
	for _, i := range includes {
		if strings.HasPrefix(p, i) {
			return true
		}
	}
	return false
}

// parseFilePrefixes parses the comma-separated list of file prefixes, converts them to absolute
// file paths, and returns them as a slice.
func parseFilePrefixes(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}

	list := strings.Split(s, ",")
	for i := range list {
		p, err := filepath.Abs(list[i])
		if err != nil {
			return nil, fmt.Errorf("convert %q to absolute path: %w", list[i], err)
		}
		list[i] = p
	}
	return list, nil
}

func main() {
	// Lift the flags from config.Analyzer to the top level so that users can write
	//
	// `inlineplan -budget 300 ./...`
	//
	// instead of addressing the config analyzer by name:
	//
	// `inlineplan -inlineplan_config.budget 300 ./...`
	config.Analyzer.Flags.VisitAll(func(f *flag.Flag) { flag.Var(f.Value, f.Name, f.Usage) })

	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get working directory: %v\n", err)
		os.Exit(1)
	}
	flag.StringVar(&_includeInFiles, "include-in-files", wd, "A comma-separated list of file prefixes to report inlining decisions in, default is current working directory.")
	flag.StringVar(&_excludeInFiles, "exclude-in-files", "", "A comma-separated list of file prefixes to not report inlining decisions in. This takes precedence over include-in-files.")

	singlechecker.Main(Analyzer)
}
