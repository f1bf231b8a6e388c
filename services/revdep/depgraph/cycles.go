// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

import (
	"slices"
	"strings"
)

// CycleSet collects import cycles from one or more graphs and drops
// duplicates. Two cycles are duplicates when one is a rotation of the
// other, so a->b->a and b->a->b are reported once.
//
// Thread Safety: Not safe for concurrent use.
type CycleSet struct {
	seen   map[string]struct{}
	cycles []ResolutionPath
}

// NewCycleSet creates an empty set.
func NewCycleSet() *CycleSet {
	return &CycleSet{seen: make(map[string]struct{})}
}

// AddGraph adds every cycle recorded while building g.
func (s *CycleSet) AddGraph(g *Graph) {
	if g == nil {
		return
	}
	for _, c := range g.Cycles() {
		s.Add(c)
	}
}

// Add inserts a closed cycle (first element equal to last). It reports
// whether the cycle was new.
func (s *CycleSet) Add(cycle ResolutionPath) bool {
	if len(cycle) < 2 {
		return false
	}
	key := cycleKey(cycle[:len(cycle)-1])
	if _, dup := s.seen[key]; dup {
		return false
	}
	s.seen[key] = struct{}{}
	s.cycles = append(s.cycles, slices.Clone(cycle))
	return true
}

// Cycles returns the distinct cycles in insertion order.
func (s *CycleSet) Cycles() []ResolutionPath {
	return s.cycles
}

// Len returns the number of distinct cycles.
func (s *CycleSet) Len() int {
	return len(s.cycles)
}

// cycleKey rotates the open cycle so its smallest id comes first.
func cycleKey(open ResolutionPath) string {
	start := 0
	for i, id := range open {
		if id < open[start] {
			start = i
		}
	}
	parts := make([]string, 0, len(open))
	for i := range open {
		parts = append(parts, string(open[(start+i)%len(open)]))
	}
	return strings.Join(parts, "\x00")
}
