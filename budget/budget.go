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

// Package budget sizes the inlining budget of a caller from its size and how aggressively it is
// being optimized.
package budget

import (
	"fmt"
	"strings"
)

// Hotness is the optimization aggressiveness tier of a compilation.
type Hotness uint8

const (
	// Normal is the default tier.
	Normal Hotness = iota
	// Warm compiles code observed to run regularly.
	Warm
	// Hot compiles code that dominates the profile.
	Hot
	// Scorching compiles the hottest code with the largest growth allowance.
	Scorching
)

var _hotnessNames = [...]string{"normal", "warm", "hot", "scorching"}

func (h Hotness) String() string {
	if int(h) < len(_hotnessNames) {
		return _hotnessNames[h]
	}
	return fmt.Sprintf("Hotness(%d)", uint8(h))
}

// ParseHotness parses the name of a tier, case-insensitively.
func ParseHotness(s string) (Hotness, error) {
	for i, name := range _hotnessNames {
		if strings.EqualFold(s, name) {
			return Hotness(i), nil
		}
	}
	return Normal, fmt.Errorf("unknown hotness %q, expected one of %s", s, strings.Join(_hotnessNames[:], ", "))
}

// Set implements flag.Value.
func (h *Hotness) Set(s string) error {
	v, err := ParseHotness(s)
	if err != nil {
		return err
	}
	*h = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (h Hotness) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hotness) UnmarshalText(b []byte) error { return h.Set(string(b)) }

// CallerWeightLimit returns the largest size the caller may grow to by inlining.
func CallerWeightLimit(size int, hotness Hotness) int {
	switch {
	case hotness >= Scorching:
		return max(1500, size*2)
	case hotness >= Hot:
		return max(1500, size+(size>>2))
	case size < 125:
		return 250
	case size < 700:
		return max(700, size+(size>>2))
	default:
		return size + (size >> 3)
	}
}

// ForCaller returns the budget handed to the root of the inlining tree of a caller of the
// given size: how much it may grow.
func ForCaller(size int, hotness Hotness) int {
	if size < 0 {
		panic(fmt.Sprintf("ERROR: negative caller size %d", size))
	}
	return CallerWeightLimit(size, hotness) - size
}
