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

// Package basic checks the inlining of small static callees.
package basic

func add(x, y int) int { return x + y }

func twice(x int) int {
	return add(x, x) // want "inline basic.add \\(cost \\d+, benefit 10.0\\)"
}

func clamp(x int) int {
	if x < 0 {
		return 0
	}
	return x
}

// useClamp passes a constant, which folds the branch of clamp.
func useClamp() int {
	return clamp(5) // want "inline basic.clamp \\(cost \\d+, benefit 20.0\\)"
}

func scale(x int) int {
	return add(x, x) * 2 // want "inline basic.add \\(cost \\d+, benefit 10.0\\)"
}

func run(x int) int {
	return scale(x) // want "inline basic.scale \\(cost \\d+, benefit 10.0, 1 nested\\)"
}
