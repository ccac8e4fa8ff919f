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

// Package inlineplantest implements utility functions for tests.
package inlineplantest

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// FindExpectedValues inspects test files and gathers the expected values written in a comment
// on the line of a function declaration, after expectedPrefix. The result is keyed by the full
// name of the declared function (e.g. "pkg.f" or "(*pkg.T).M"). A declaration whose comment has
// nothing after the prefix maps to nil; declarations without such a comment are absent.
func FindExpectedValues(pass *analysis.Pass, expectedPrefix string) map[string][]string {
	results := make(map[string][]string)

	for _, file := range pass.Files {
		// Store a mapping between single comment's line number to its text.
		comments := make(map[int]string)
		for _, group := range file.Comments {
			if len(group.List) != 1 {
				continue
			}
			comment := group.List[0]
			comments[pass.Fset.Position(comment.Pos()).Line] = comment.Text
		}

		for _, decl := range file.Decls {
			funcDecl, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			text, ok := comments[pass.Fset.Position(funcDecl.Pos()).Line]
			if !ok {
				continue
			}
			text = strings.TrimSpace(strings.TrimPrefix(text, "//"))
			if !strings.HasPrefix(text, expectedPrefix) {
				continue
			}
			funcObj, ok := pass.TypesInfo.Defs[funcDecl.Name].(*types.Func)
			if !ok {
				continue
			}

			// Trim the prefix and extra spaces and extract the set of expected values.
			text = strings.TrimSpace(strings.TrimPrefix(text, expectedPrefix))
			results[funcObj.FullName()] = nil
			if len(text) != 0 {
				results[funcObj.FullName()] = strings.Fields(text)
			}
		}
	}

	return results
}
