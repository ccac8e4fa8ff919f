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

// Package dispatch checks the inlining of the implementations of an interface method.
package dispatch

type Shape interface {
	Area() int
}

type Sq struct {
	s int
}

func (q Sq) Area() int { return q.s * q.s }

func area(s Shape) int {
	return s.Area() // want "inline \\(dispatch.Sq\\).Area \\(cost \\d+, benefit 10.0\\)"
}
