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

package planning

import (
	"errors"
	"fmt"
	"go/token"

	"github.com/qasimy123/inlineplan/frontend"
	"github.com/qasimy123/inlineplan/idt"
	"golang.org/x/tools/go/analysis"
)

// _category is the category of the reported diagnostics.
const _category = "inlining"

// reportingSplicer implements inliner.Splicer by recording the inlinings instead of performing
// them.
type reportingSplicer struct {
	// inlined lists the inlinings into the root in call site order.
	inlined []*inlining
}

type inlining struct {
	node   *idt.Node
	pos    token.Pos
	nested int
}

// CallSites implements inliner.Splicer.
func (s *reportingSplicer) CallSites(into *idt.Node) []int {
	m, ok := into.Method().(*frontend.Method)
	if !ok {
		return nil
	}
	return m.CallSites()
}

// Inline implements inliner.Splicer.
func (s *reportingSplicer) Inline(into, child *idt.Node) (bool, error) {
	if !into.IsRoot() {
		// The walk finishes an outermost inlining before starting the next one, so the nested
		// inlining belongs to the last one.
		if len(s.inlined) == 0 {
			return false, errors.New("nested inlining before any inlining into the root")
		}
		s.inlined[len(s.inlined)-1].nested++
		return true, nil
	}

	m, ok := into.Method().(*frontend.Method)
	if !ok {
		return false, fmt.Errorf("method %s does not belong to the SSA frontend", into.Name())
	}
	instr := m.Instr(child.BCIndex())
	if instr == nil {
		return false, fmt.Errorf("no instruction at index %d of %s", child.BCIndex(), m.Name())
	}
	s.inlined = append(s.inlined, &inlining{node: child, pos: instr.Pos()})
	return true, nil
}

func (s *reportingSplicer) diagnostics() []analysis.Diagnostic {
	diagnostics := make([]analysis.Diagnostic, 0, len(s.inlined))
	for _, in := range s.inlined {
		diagnostics = append(diagnostics, analysis.Diagnostic{
			Pos:      in.pos,
			Category: _category,
			Message:  in.message(),
		})
	}
	return diagnostics
}

func (in *inlining) message() string {
	msg := fmt.Sprintf("inline %s (cost %d, benefit %.1f", in.node.Name(), in.node.Cost(), in.node.Benefit())
	if in.nested > 0 {
		msg += fmt.Sprintf(", %d nested", in.nested)
	}
	return msg + ")"
}
