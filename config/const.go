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

package config

// This file hosts non-user-configurable parameters --- these are for development and testing purposes only.

// MinRootCallRatio is the lowest compounded probability (root call ratio of the caller times the
// call ratio of the call site) for which a call site is still expanded into the inlining tree.
// Call sites reached less often than this contribute so little benefit that exploring their
// callees only inflates the tree; 0.25 keeps trees small on deeply branching code while still
// covering calls nested two conditional levels deep.
const MinRootCallRatio = 0.25

// ColdBlockFrequency is the block execution frequency below which a block is considered cold and
// its call sites are pruned. Frequencies are relative to EntryFrequency.
const ColdBlockFrequency = 6

// EntryFrequency is the frequency assigned to the entry block of every function by the
// frequency estimator. Every other block frequency is expressed relative to it.
const EntryFrequency = 10000

// LoopFrequencyFactor scales the frequency of a loop header relative to the frequency flowing
// into the loop, approximating a loop that iterates a few times.
const LoopFrequencyFactor = 4

// MaxInlineCount bounds the number of successful inlines performed when executing one plan,
// protecting the consumer against pathological plans.
const MaxInlineCount = 1000

// MaxIDTNodes is the default ceiling on the number of nodes of one inlining tree. Budget
// exhaustion and the recursion guard already make the tree finite, but a large budget over a
// dense call graph can still produce an impractically large tree.
const MaxIDTNodes = 512

// MaxTargetsPerSite is the default number of call targets considered for one dynamic call site.
// Interface calls resolved by class hierarchy analysis may have many implementations; beyond a
// handful, none of them is likely to be profitable.
const MaxTargetsPerSite = 4

// MaxConcurrentPlans bounds the number of functions of one package planned concurrently.
const MaxConcurrentPlans = 8

// NoPlanString is the string that may be inserted into the docstring of a function or a file to
// prevent the analyzer from planning it. This is useful for generated code and unit tests.
const NoPlanString = "<inlineplan ignore>"
