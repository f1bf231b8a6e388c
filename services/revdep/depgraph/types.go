// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package depgraph builds reverse-walkable module graphs from a dependency
// table and enumerates the import chains that lead from an entry point to a
// target module.
//
// # Data Model
//
// A DependencyTable maps every analyzed module to its ordered list of
// outgoing import edges. Tables are immutable once built; a Graph is built
// per entry point on top of a table and discarded after its paths, depth or
// projections have been read.
//
// # Arena Layout
//
// Nodes live in a per-graph arena and reference each other by NodeID. There
// is exactly one node per real module within one graph. CIRCULAR sentinel
// nodes are appended to the arena on every cycle-closing edge and are never
// shared.
//
// # Thread Safety
//
// Build only reads the table, so any number of graphs may be built
// concurrently from the same table. A Graph is read-only after Build
// returns and can be shared between goroutines.
package depgraph

import (
	"path/filepath"
	"slices"
	"strings"
)

// ModuleID identifies a module. For project files it is the absolute,
// cleaned file path. When external packages are included, a bare package
// name such as "lodash" or "@scope/pkg" is also a valid terminal ModuleID.
type ModuleID string

// CircularPath is the path carried by every CIRCULAR sentinel node.
const CircularPath ModuleID = "CIRCULAR"

// String implements fmt.Stringer.
func (id ModuleID) String() string {
	return string(id)
}

// DependencyEdge is one import statement of a module.
type DependencyEdge struct {
	// Target is the resolved module. Empty when the specifier could not be
	// resolved.
	Target ModuleID `json:"target,omitempty" yaml:"target,omitempty"`

	// Request is the raw import specifier as written in source.
	Request string `json:"request" yaml:"request"`

	// External marks edges whose target is a third-party package.
	External bool `json:"external,omitempty" yaml:"external,omitempty"`
}

// Resolved reports whether the edge points at a known module.
func (e DependencyEdge) Resolved() bool {
	return e.Target != ""
}

// DependencyTable maps each module to its outgoing edges.
//
// A nil slice means the module is known but was not analyzed. An empty,
// non-nil slice means the module was analyzed and imports nothing. A
// module id that is not a key at all is unknown to the table.
type DependencyTable map[ModuleID][]DependencyEdge

// Keys returns the table keys sorted lexicographically.
func (t DependencyTable) Keys() []ModuleID {
	keys := make([]ModuleID, 0, len(t))
	for id := range t {
		keys = append(keys, id)
	}
	slices.Sort(keys)
	return keys
}

// Has reports whether id is a key of the table.
func (t DependencyTable) Has(id ModuleID) bool {
	_, ok := t[id]
	return ok
}

// EdgeCount returns the total number of edges in the table.
func (t DependencyTable) EdgeCount() int {
	n := 0
	for _, edges := range t {
		n += len(edges)
	}
	return n
}

// IsUnderNodeModules reports whether id lies inside a node_modules
// directory.
func IsUnderNodeModules(id ModuleID) bool {
	s := filepath.ToSlash(string(id))
	return strings.Contains(s, "/node_modules/") || strings.HasPrefix(s, "node_modules/")
}

// NodeID indexes a node inside its Graph arena.
type NodeID int32

// NoNode is returned where a node is absent, such as an unreached target.
const NoNode NodeID = -1

// Node is a vertex of a per-entry-point graph.
type Node struct {
	// ID is the node's arena index.
	ID NodeID

	// Path is the module id, or CircularPath for sentinels.
	Path ModuleID

	// Children lists the nodes this module imports, in table edge order.
	Children []NodeID

	// Parents lists one importer per distinct import edge discovered
	// during traversal, in discovery order. Empty for the entry point.
	Parents []NodeID
}

// IsCircular reports whether n is a CIRCULAR sentinel.
func (n *Node) IsCircular() bool {
	return n.Path == CircularPath
}

// IsRoot reports whether n has no recorded importers.
func (n *Node) IsRoot() bool {
	return len(n.Parents) == 0
}

// ResolutionPath is a chain of modules from an entry point to a target,
// both ends included.
type ResolutionPath []ModuleID

// String joins the chain with " -> ".
func (p ResolutionPath) String() string {
	parts := make([]string, len(p))
	for i, id := range p {
		parts[i] = string(id)
	}
	return strings.Join(parts, " -> ")
}

// Equal reports whether p and other contain the same chain.
func (p ResolutionPath) Equal(other ResolutionPath) bool {
	return slices.Equal(p, other)
}

// Mode selects how many paths the resolver enumerates.
type Mode int

const (
	// ModeFirst follows the first recorded parent at each step and returns
	// a single path.
	ModeFirst Mode = iota

	// ModeAll branches over every parent and returns every chain.
	ModeAll
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeFirst:
		return "first"
	case ModeAll:
		return "all"
	default:
		return "unknown"
	}
}
