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

// Package region implements a compilation-scoped arena. Records allocated from a Region live
// until the Region is released, at which point the whole arena is dropped at once; nothing is
// ever freed individually.
package region

import (
	"fmt"
	"reflect"
)

// _chunkSize is the number of records of one type allocated together. Chunks are never grown
// in place, so pointers handed out by New stay valid until Release.
const _chunkSize = 64

// Region is an arena for the records of one compilation (abstract values, IDT nodes, ...).
// A Region is not safe for concurrent use; concurrent compilations each own their own Region.
type Region struct {
	name     string
	slabs    map[reflect.Type]slabber
	released bool
	count    int
}

type slabber interface {
	release()
}

type slab[T any] struct {
	chunks [][]T
	used   int
}

func (s *slab[T]) alloc() *T {
	if len(s.chunks) == 0 || s.used == _chunkSize {
		s.chunks = append(s.chunks, make([]T, _chunkSize))
		s.used = 0
	}
	p := &s.chunks[len(s.chunks)-1][s.used]
	s.used++
	return p
}

func (s *slab[T]) release() {
	s.chunks = nil
	s.used = 0
}

// NewRegion returns an empty region. The name only shows up in diagnostics.
func NewRegion(name string) *Region {
	return &Region{name: name, slabs: make(map[reflect.Type]slabber)}
}

// New allocates a zero T from the region.
func New[T any](r *Region) *T {
	if r == nil {
		panic("ERROR: allocation from a nil region")
	}
	if r.released {
		panic(fmt.Sprintf("ERROR: allocation from released region %q", r.name))
	}
	typ := reflect.TypeFor[T]()
	s, ok := r.slabs[typ].(*slab[T])
	if !ok {
		s = &slab[T]{}
		r.slabs[typ] = s
	}
	r.count++
	return s.alloc()
}

// Name returns the name given at construction.
func (r *Region) Name() string { return r.name }

// Len returns the number of records allocated so far.
func (r *Region) Len() int { return r.count }

// Released reports whether Release has been called.
func (r *Region) Released() bool { return r.released }

// Release drops every record of the region. Allocating from a released region is a
// programming error.
func (r *Region) Release() {
	for _, s := range r.slabs {
		s.release()
	}
	r.slabs = nil
	r.released = true
	r.count = 0
}
