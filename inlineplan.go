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

// Package inlineplan implements the top-level analyzer that retrieves the inlining decisions from
// the planning analyzer and reports them.
package inlineplan

import (
	"regexp"

	"github.com/fatih/color"
	"github.com/qasimy123/inlineplan/config"
	"github.com/qasimy123/inlineplan/planning"
	"github.com/qasimy123/inlineplan/util/analysishelper"
	"go.uber.org/multierr"
	"golang.org/x/tools/go/analysis"
)

const _doc = "Run the inlining planner on this package to report, for every function, the call sites" +
	" whose callees are worth inlining within the size budget of the function"

// Analyzer is the top-level instance of Analyzer - it reports the call sites planned for inlining
// in this package. It is needed here for nogo to recognize the package.
var Analyzer = &analysis.Analyzer{
	Name:      "inlineplan",
	Doc:       _doc,
	Run:       run,
	FactTypes: []analysis.Fact{},
	Requires:  []*analysis.Analyzer{config.Analyzer, planning.Analyzer},
}

func run(p *analysis.Pass) (interface{}, error) {
	pass := analysishelper.NewEnhancedPass(p)
	conf := pass.ResultOf[config.Analyzer].(*config.Config)
	r := pass.ResultOf[planning.Analyzer].(*analysishelper.Result[planning.Result])

	for _, d := range r.Res.Diagnostics {
		if conf.PrettyPrint {
			d.Message = prettyPrintMessage(d.Message)
		}
		pass.Report(d)
	}
	for _, err := range multierr.Errors(r.Err) {
		// Diagnostics with invalid positions (<= 0) will be silently suppressed, so here we use 1.
		pass.Report(analysis.Diagnostic{Pos: 1, Message: "INTERNAL ERROR: " + err.Error()})
	}

	return nil, nil
}

var _messagePattern = regexp.MustCompile(`^inline (\S+) \((.*)\)$`)

var (
	_verbColor   = newColor(color.FgGreen, color.Bold)
	_calleeColor = newColor(color.FgMagenta)
	_detailColor = newColor(color.FgCyan)
)

// newColor returns a color that is applied even when the output is not a terminal.
func newColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}

// prettyPrintMessage colors the parts of an inlining message. Other messages are returned as is.
func prettyPrintMessage(msg string) string {
	m := _messagePattern.FindStringSubmatch(msg)
	if m == nil {
		return msg
	}
	return _verbColor.Sprint("inline") + " " + _calleeColor.Sprint(m[1]) + " (" + _detailColor.Sprint(m[2]) + ")"
}
