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

// Package summary records, per callee method, the secondary optimizations that become
// possible when arguments of known value are passed in, and scores concrete call sites
// against them.
package summary

import (
	"fmt"
	"strings"

	"github.com/qasimy123/inlineplan/absinterp"
	"github.com/qasimy123/inlineplan/util/orderedmap"
	"go.uber.org/zap"
)

// PotentialOptimization is one optimization opportunity found in a method body, guarded by
// a predicate on one argument.
type PotentialOptimization struct {
	Predicate Predicate
	// ArgPos is the position of the argument the predicate tests.
	ArgPos int
	// BCIndex is the instruction index of the optimization site in the method.
	BCIndex int
}

func (o *PotentialOptimization) String() string {
	return fmt.Sprintf("%s @%d on arg %d", o.Predicate, o.BCIndex, o.ArgPos)
}

// Summary is the argument-independent structural metadata for one method: which predicates
// apply to which argument positions. The static benefit of a call site is obtained by
// testing that site's argument values against the summary.
type Summary struct {
	method string
	opts   []*PotentialOptimization
	byArg  *orderedmap.OrderedMap[int, []*PotentialOptimization]
}

// New returns an empty summary for the named method.
func New(method string) *Summary {
	return &Summary{method: method, byArg: orderedmap.New[int, []*PotentialOptimization]()}
}

// Method returns the name of the summarized method.
func (s *Summary) Method() string { return s.method }

// AddOpt registers a potential optimization guarded by pred on argument argPos.
func (s *Summary) AddOpt(bcIndex int, pred Predicate, argPos int) {
	if pred == nil {
		panic("ERROR: nil predicate in summary")
	}
	if argPos < 0 {
		panic(fmt.Sprintf("ERROR: negative argument position %d in summary of %s", argPos, s.method))
	}
	opt := &PotentialOptimization{Predicate: pred, ArgPos: argPos, BCIndex: bcIndex}
	s.opts = append(s.opts, opt)
	s.byArg.Store(argPos, append(s.byArg.Value(argPos), opt))
}

// NumOpts returns the number of recorded optimizations.
func (s *Summary) NumOpts() int {
	if s == nil {
		return 0
	}
	return len(s.opts)
}

// Opts returns the recorded optimizations in insertion order.
func (s *Summary) Opts() []*PotentialOptimization {
	if s == nil {
		return nil
	}
	return s.opts
}

// TestArgument returns how many predicates registered at argPos are satisfied by v. A nil or
// top value satisfies none.
func (s *Summary) TestArgument(v *absinterp.Value, argPos int) int {
	if s == nil || v == nil || v.IsTop() {
		return 0
	}
	n := 0
	for _, opt := range s.byArg.Value(argPos) {
		if opt.Predicate.Test(v) {
			n++
		}
	}
	return n
}

// StaticBenefit scores a call site: the number of predicates satisfied by its arguments.
func (s *Summary) StaticBenefit(args *absinterp.Arguments) int {
	if s == nil || args == nil {
		return 0
	}
	total := 0
	for i := 0; i < args.Size(); i++ {
		total += s.TestArgument(args.At(i), i)
	}
	return total
}

// Trace dumps the summary at debug level.
func (s *Summary) Trace(logger *zap.Logger) {
	if s == nil || logger == nil || !logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	logger.Debug("method summary", zap.String("method", s.method), zap.Int("opts", len(s.opts)))
	for _, opt := range s.opts {
		logger.Debug("potential optimization",
			zap.String("kind", opt.Predicate.Kind().String()),
			zap.String("predicate", opt.Predicate.String()),
			zap.Int("arg", opt.ArgPos),
			zap.Int("index", opt.BCIndex),
		)
	}
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Inlining Method Summary for %s", s.method)
	s.byArg.OrderedRange(func(pos int, opts []*PotentialOptimization) bool {
		fmt.Fprintf(&b, "\n  arg %d:", pos)
		for _, opt := range opts {
			fmt.Fprintf(&b, "\n    %s @%d", opt.Predicate, opt.BCIndex)
		}
		return true
	})
	return b.String()
}
