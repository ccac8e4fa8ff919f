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

package packing

import "fmt"

// Table is the dynamic programming table of the packing algorithm: the cell at (row, col)
// holds the best proposal found using the first row+1 nodes of the linearized tree within
// cost col. Unset cells and cells outside the table hold the empty proposal.
type Table struct {
	rows, cols int
	cells      []*Proposal
	empty      *Proposal
}

// NewTable returns a table with rows*cols empty cells whose proposals select from empty's tree.
func NewTable(rows, cols int, empty *Proposal) *Table {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("ERROR: invalid table dimensions %dx%d", rows, cols))
	}
	if !empty.IsEmpty() {
		panic("ERROR: the filler of a table must be the empty proposal")
	}
	return &Table{rows: rows, cols: cols, cells: make([]*Proposal, rows*cols), empty: empty}
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return t.rows }

// Cols returns the number of columns.
func (t *Table) Cols() int { return t.cols }

// Get returns the proposal at (row, col). It must not be modified.
func (t *Table) Get(row, col int) *Proposal {
	if row < 0 || col < 0 || row >= t.rows || col >= t.cols {
		return t.empty
	}
	if p := t.cells[row*t.cols+col]; p != nil {
		return p
	}
	return t.empty
}

// Set stores p at (row, col).
func (t *Table) Set(row, col int, p *Proposal) {
	if row < 0 || col < 0 || row >= t.rows || col >= t.cols {
		panic(fmt.Sprintf("ERROR: cell (%d, %d) out of a %dx%d table", row, col, t.rows, t.cols))
	}
	t.cells[row*t.cols+col] = p
}
