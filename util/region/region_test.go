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

package region

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type record struct {
	id   int
	next *record
}

func TestNewKeepsPointersStable(t *testing.T) {
	t.Parallel()

	r := NewRegion("test")
	var all []*record
	// Allocate across several chunks to make sure earlier pointers are not moved.
	for i := 0; i < 3*_chunkSize+5; i++ {
		rec := New[record](r)
		rec.id = i
		all = append(all, rec)
	}
	for i, rec := range all {
		require.Equal(t, i, rec.id)
	}
	require.Equal(t, len(all), r.Len())
}

func TestNewSeparatesTypes(t *testing.T) {
	t.Parallel()

	r := NewRegion("types")
	a := New[record](r)
	b := New[int](r)
	*b = 7
	a.id = 3
	require.Equal(t, 3, a.id)
	require.Equal(t, 7, *b)
	require.Equal(t, 2, r.Len())
}

func TestRelease(t *testing.T) {
	t.Parallel()

	r := NewRegion("released")
	New[record](r)
	r.Release()
	require.True(t, r.Released())
	require.Zero(t, r.Len())
	require.PanicsWithValue(t, `ERROR: allocation from released region "released"`, func() {
		New[record](r)
	})
}

func TestNilRegion(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { New[record](nil) })
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
