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

// Package planning checks which callees are selected for inlining into each function.
package planning

func add(x, y int) int { return x + y }

func clamp(x int) int {
	if x < 0 {
		return 0
	}
	return x
}

func scale(x int) int { // expect_inlined: planning.clamp
	return clamp(x) * 2
}

func chain() int { // expect_inlined: planning.scale planning.add planning.clamp
	return scale(-3) + add(1, 2)
}

func guarded(x int) int { // expect_inlined: planning.add
	if x < 0 {
		// Cold: the block panics.
		add(x, x)
		panic("negative")
	}
	return add(x, 1)
}

func fact(n int) int { // expect_inlined:
	if n <= 1 {
		return 1
	}
	return n * fact(n-1)
}

// skipped is never planned.
// <inlineplan ignore>
func skipped() int {
	return add(1, 1)
}
