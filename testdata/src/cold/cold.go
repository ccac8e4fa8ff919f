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

// Package cold checks that calls in blocks that end in a panic are never inlined.
package cold

func helper(x int) int { return x + 1 }

func check(x int) int {
	if x < 0 {
		helper(x)
		panic("negative")
	}
	return helper(x) // want "inline cold.helper \\(cost \\d+, benefit 5.0\\)"
}
