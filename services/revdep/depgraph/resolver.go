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
	"iter"
	"time"
)

// ResolveOptions configures path enumeration.
type ResolveOptions struct {
	// Mode selects FIRST or ALL enumeration.
	Mode Mode

	// MaxPaths caps ALL-mode enumeration. Zero means no cap, which is the
	// default: ALL mode is complete unless the caller opts into a bound.
	MaxPaths int
}

// ResolvePaths returns the chains from the graph's entry point to its
// target.
//
// Description:
//
//	Walks parent links backward from the target node. FIRST mode follows
//	Parents[0] at each step. ALL mode branches over every parent. A target
//	with no parents is the entry point itself, and a module never depends
//	on itself through zero edges, so that case yields no paths.
//
// Inputs:
//
//	ctx - Used for tracing only.
//	g - A graph from Build. A nil graph or unreached target yields no paths.
//	opts - Mode and optional cap.
//
// Outputs:
//
//	[]ResolutionPath - Chains ordered entry point first. Never nil.
//	bool - True if MaxPaths stopped enumeration before it was complete.
//
// Thread Safety: Safe for concurrent use on a built graph.
func ResolvePaths(ctx context.Context, g *Graph, opts ResolveOptions) ([]ResolutionPath, bool) {
	paths := []ResolutionPath{}
	if g == nil || g.Target() == nil {
		return paths, false
	}

	ctx, span := startResolveSpan(ctx, g.entryPoint, g.target, opts.Mode)
	defer span.End()
	start := time.Now()

	truncated := false
	switch opts.Mode {
	case ModeAll:
		for p := range AllPaths(g, g.Target()) {
			if opts.MaxPaths > 0 && len(paths) == opts.MaxPaths {
				truncated = true
				break
			}
			paths = append(paths, p)
		}
	default:
		if p := FirstPath(g, g.Target()); p != nil {
			paths = append(paths, p)
		}
	}

	setResolveSpanResult(span, len(paths), truncated)
	recordResolveMetrics(ctx, opts.Mode, time.Since(start), len(paths))
	return paths, truncated
}

// FirstPath follows the first recorded parent from n until it reaches a
// root. It returns nil when n has no parents.
func FirstPath(g *Graph, n *Node) ResolutionPath {
	if n == nil || n.IsRoot() {
		return nil
	}
	rev := ResolutionPath{n.Path}
	for cur := n; !cur.IsRoot(); {
		cur = g.Node(cur.Parents[0])
		rev = append(rev, cur.Path)
	}
	return reversed(rev)
}

// AllPaths yields every chain from a root to n, one per distinct walk
// over recorded parent edges, in parent order.
//
// Parent links never form a cycle because cycle-closing edges produce
// sentinels instead of parent entries, so enumeration always terminates.
// The number of chains can still grow combinatorially with fan-in, which
// is why this is an iterator: callers may stop early.
func AllPaths(g *Graph, n *Node) iter.Seq[ResolutionPath] {
	return func(yield func(ResolutionPath) bool) {
		if n == nil || n.IsRoot() {
			return
		}
		buf := make(ResolutionPath, 0, 16)
		walkParents(g, n, buf, yield)
	}
}

// walkParents extends rev (target first) through n and reports whether
// enumeration should continue.
func walkParents(g *Graph, n *Node, rev ResolutionPath, yield func(ResolutionPath) bool) bool {
	rev = append(rev, n.Path)
	if n.IsRoot() {
		return yield(reversed(rev))
	}
	for _, pid := range n.Parents {
		if !walkParents(g, g.Node(pid), rev, yield) {
			return false
		}
	}
	return true
}

func reversed(rev ResolutionPath) ResolutionPath {
	out := make(ResolutionPath, len(rev))
	for i, id := range rev {
		out[len(rev)-1-i] = id
	}
	return out
}
