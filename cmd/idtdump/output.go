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

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/segmentio/encoding/json"
	"gopkg.in/yaml.v3"
)

// textWriter prints every plan as an indented tree, one node per line, with the node names
// aligned in one column.
type textWriter struct {
	header   *color.Color
	selected *color.Color
	skipped  *color.Color
}

func newTextWriter(colored bool) *textWriter {
	t := &textWriter{
		header:   color.New(color.Bold),
		selected: color.New(color.FgGreen),
		skipped:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{t.header, t.selected, t.skipped} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return t
}

type textRow struct {
	label  string
	detail string
	node   *dumpNode
}

func (t *textWriter) write(w io.Writer, plans []*dumpPlan) error {
	for i, p := range plans {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		header := fmt.Sprintf("%s  budget %d  cost %d/%d  benefit %.1f",
			p.Root, p.Budget, p.SelectedCost, p.TotalCost, p.SelectedBenefit)
		if p.Error != "" {
			header = fmt.Sprintf("%s  error: %s", p.Root, p.Error)
		}
		if _, err := t.header.Fprintln(w, header); err != nil {
			return err
		}
		if p.Tree == nil {
			continue
		}

		var rows []textRow
		for _, c := range p.Tree.Children {
			rows = appendRows(rows, c, 1)
		}
		width := 0
		for _, r := range rows {
			width = max(width, runewidth.StringWidth(r.label))
		}
		for _, r := range rows {
			c := t.skipped
			if r.node.Selected {
				c = t.selected
			}
			if _, err := c.Fprintln(w, runewidth.FillRight(r.label, width)+"  "+r.detail); err != nil {
				return err
			}
		}
	}
	return nil
}

func appendRows(rows []textRow, n *dumpNode, depth int) []textRow {
	detail := fmt.Sprintf("#%d @%d %s  cost %d  benefit %.1f  static %d", n.ID, n.BCIndex, n.Pos, n.Cost, n.Benefit, n.StaticBenefit)
	if n.Selected {
		detail += "  inline"
	}
	rows = append(rows, textRow{label: strings.Repeat("  ", depth) + n.Name, detail: detail, node: n})
	for _, c := range n.Children {
		rows = appendRows(rows, c, depth+1)
	}
	return rows
}

// jsonWriter prints the plans as one indented JSON array.
type jsonWriter struct{}

func (jsonWriter) write(w io.Writer, plans []*dumpPlan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plans)
}

// yamlWriter prints the plans as one YAML sequence.
type yamlWriter struct{}

func (yamlWriter) write(w io.Writer, plans []*dumpPlan) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(plans); err != nil {
		return err
	}
	return enc.Close()
}
