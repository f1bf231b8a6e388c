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
	"context"
	"log/slog"
	"slices"
	"time"
)

// Matcher decides whether a module id matches a set of patterns.
// Implemented by pathmatch.Matcher.
type Matcher interface {
	Match(id string) bool
}

// BuildOptions configures a single graph build.
type BuildOptions struct {
	// Target is the module or package to locate. Optional.
	Target ModuleID

	// DoNotTraverse prunes edges whose target matches. Nil prunes nothing.
	DoNotTraverse Matcher

	// IncludeExternal follows edges into third-party packages. When false,
	// external and node_modules targets are skipped.
	IncludeExternal bool

	// Logger receives debug output such as detected cycles. Nil uses
	// slog.Default().
	Logger *slog.Logger
}

// Graph is the traversal result for one entry point.
//
// Thread Safety: Safe for concurrent reads after Build returns.
type Graph struct {
	entryPoint ModuleID
	target     ModuleID

	nodes  []Node
	index  map[ModuleID]NodeID
	root   NodeID
	found  NodeID
	cycles []ResolutionPath
}

// EntryPoint returns the module the graph was built from.
func (g *Graph) EntryPoint() ModuleID { return g.entryPoint }

// Root returns the entry point node.
func (g *Graph) Root() *Node { return &g.nodes[g.root] }

// Target returns the target node, or nil when the target was not requested
// or not reached.
func (g *Graph) Target() *Node {
	if g.found == NoNode {
		return nil
	}
	return &g.nodes[g.found]
}

// Node returns the node at id. It panics if id is out of range.
func (g *Graph) Node(id NodeID) *Node { return &g.nodes[id] }

// Vertex returns the shared node for a real module, if it was reached.
func (g *Graph) Vertex(path ModuleID) (*Node, bool) {
	id, ok := g.index[path]
	if !ok {
		return nil, false
	}
	return &g.nodes[id], true
}

// Len returns the number of nodes in the arena, sentinels included.
func (g *Graph) Len() int { return len(g.nodes) }

// VertexCount returns the number of distinct real modules reached.
func (g *Graph) VertexCount() int { return len(g.index) }

// Cycles returns every cycle closed during traversal. Each cycle starts and
// ends with the same module, in import order.
func (g *Graph) Cycles() []ResolutionPath { return g.cycles }

// Modules returns the reached module ids sorted lexicographically.
func (g *Graph) Modules() []ModuleID {
	ids := make([]ModuleID, 0, len(g.index))
	for id := range g.index {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// stack is a persistent cons list of the modules on the current call
// stack. Pushing never mutates an existing frame, so every recursive call
// owns its own view of the visited set.
type stack struct {
	id   ModuleID
	next *stack
}

func (s *stack) push(id ModuleID) *stack {
	return &stack{id: id, next: s}
}

func (s *stack) contains(id ModuleID) bool {
	for f := s; f != nil; f = f.next {
		if f.id == id {
			return true
		}
	}
	return false
}

// cycle returns the chain from the earliest frame holding id to the top of
// the stack, closed with id.
func (s *stack) cycle(id ModuleID) ResolutionPath {
	var rev ResolutionPath
	for f := s; f != nil; f = f.next {
		rev = append(rev, f.id)
		if f.id == id {
			break
		}
	}
	out := make(ResolutionPath, 0, len(rev)+1)
	for i := len(rev) - 1; i >= 0; i-- {
		out = append(out, rev[i])
	}
	return append(out, id)
}

type builder struct {
	table DependencyTable
	opts  BuildOptions
	g     *Graph
	edges int
}

// Build traverses table depth-first from entryPoint and returns the graph.
//
// Description:
//
//	Each real module gets exactly one node. Reaching an already finished
//	module appends the importer to its Parents instead of re-walking it.
//	Reaching a module that is on the current call stack produces a fresh
//	CIRCULAR sentinel with no children. The vertex cache is consulted
//	before the visited set, so a finished module is never reported as a
//	cycle.
//
// Inputs:
//
//	ctx - Used for tracing only; traversal itself does not block.
//	table - Immutable dependency table. Must not be nil.
//	entryPoint - Root module id. Must be a key of table.
//	opts - Target, do-not-traverse matcher and external mode.
//
// Outputs:
//
//	*Graph - The traversal graph. Target() is nil if the target was not reached.
//	error - *GraphConsistencyError if a referenced module is missing from table.
//
// Example:
//
//	g, err := depgraph.Build(ctx, table, "/app/src/index.ts",
//	    depgraph.BuildOptions{Target: "/app/src/util.ts"})
//	paths, _ := depgraph.ResolvePaths(g, depgraph.ResolveOptions{Mode: depgraph.ModeAll})
//
// Thread Safety: Safe to call concurrently on the same table.
func Build(ctx context.Context, table DependencyTable, entryPoint ModuleID, opts BuildOptions) (*Graph, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	if entryPoint == "" {
		return nil, ErrEmptyEntryPoint
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ctx, span := startBuildSpan(ctx, entryPoint, opts.Target)
	defer span.End()
	start := time.Now()

	b := &builder{
		table: table,
		opts:  opts,
		g: &Graph{
			entryPoint: entryPoint,
			target:     opts.Target,
			index:      make(map[ModuleID]NodeID),
			root:       NoNode,
			found:      NoNode,
		},
	}

	root, err := b.visit(entryPoint, nil, NoNode)
	if err != nil {
		span.RecordError(err)
		recordBuildMetrics(ctx, time.Since(start), 0, 0, false)
		return nil, err
	}
	b.g.root = root

	setBuildSpanResult(span, b.g.VertexCount(), b.edges, len(b.g.cycles), b.g.found != NoNode)
	recordBuildMetrics(ctx, time.Since(start), b.g.VertexCount(), b.edges, true)

	return b.g, nil
}

func (b *builder) visit(path ModuleID, visited *stack, parent NodeID) (NodeID, error) {
	if id, ok := b.g.index[path]; ok {
		if parent != NoNode {
			b.g.nodes[id].Parents = append(b.g.nodes[id].Parents, parent)
		}
		return id, nil
	}

	if visited.contains(path) {
		cycle := visited.cycle(path)
		b.g.cycles = append(b.g.cycles, cycle)
		b.opts.Logger.Debug("circular dependency",
			slog.String("entry_point", string(b.g.entryPoint)),
			slog.String("cycle", cycle.String()),
		)
		return b.newNode(CircularPath, parent), nil
	}

	edges, ok := b.table[path]
	if !ok {
		err := &GraphConsistencyError{ID: path, EntryPoint: b.g.entryPoint}
		if parent != NoNode {
			err.ImportedBy = b.g.nodes[parent].Path
		}
		return NoNode, err
	}

	self := b.newNode(path, parent)
	local := visited.push(path)

	var seen map[ModuleID]struct{}
	for _, edge := range edges {
		if !b.follow(edge) {
			continue
		}
		// Repeated imports of one module count as a single edge.
		if seen == nil {
			seen = make(map[ModuleID]struct{}, len(edges))
		}
		if _, dup := seen[edge.Target]; dup {
			continue
		}
		seen[edge.Target] = struct{}{}

		child, err := b.visit(edge.Target, local, self)
		if err != nil {
			return NoNode, err
		}
		b.g.nodes[self].Children = append(b.g.nodes[self].Children, child)
		b.edges++
	}

	b.g.index[path] = self
	if b.g.target != "" && path == b.g.target {
		b.g.found = self
	}
	return self, nil
}

// follow reports whether traversal should descend along edge.
func (b *builder) follow(edge DependencyEdge) bool {
	if !edge.Resolved() {
		return false
	}
	if !b.opts.IncludeExternal && (edge.External || IsUnderNodeModules(edge.Target)) {
		return false
	}
	if b.opts.DoNotTraverse != nil && b.opts.DoNotTraverse.Match(string(edge.Target)) {
		return false
	}
	return true
}

func (b *builder) newNode(path ModuleID, parent NodeID) NodeID {
	id := NodeID(len(b.g.nodes))
	n := Node{ID: id, Path: path}
	if parent != NoNode {
		n.Parents = []NodeID{parent}
	}
	b.g.nodes = append(b.g.nodes, n)
	return id
}
