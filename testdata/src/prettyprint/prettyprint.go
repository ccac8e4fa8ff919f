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

// Package prettyprint is meant to check if our pretty-print flag has effect.
package prettyprint

func add(x, y int) int { return x + y }

func twice(x int) int {
	// Ensure that the ASCII escape code is in the want strings (such that the diagnostics are
	// pretty printed).
	return add(x, x) //want "\u001B"
}
