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

// height is the memoized result for one node: its depth counted from
// itself and the child that achieved it.
type height struct {
	depth int
	next  NodeID
}

// MaxDepth returns the length of the longest import chain below the graph
// root and that chain.
//
// Description:
//
//	A leaf has depth 1 and any other node has 1 plus the maximum depth of
//	its children. When several children tie, the first one in import order
//	wins. Results are memoized per node so shared sub-trees are measured
//	once. CIRCULAR sentinels are leaves and appear at the end of the chain
//	when they terminate it.
//
// Inputs:
//
//	g - A graph from Build. Nil yields (0, nil).
//
// Outputs:
//
//	int - Depth of the root.
//	ResolutionPath - Root first, deepest leaf last.
//
// Thread Safety: Safe for concurrent use on a built graph.
func MaxDepth(g *Graph) (int, ResolutionPath) {
	if g == nil || g.Len() == 0 {
		return 0, nil
	}
	memo := make(map[NodeID]height, g.Len())
	root := g.Root()
	h := measure(g, root.ID, memo)

	path := make(ResolutionPath, 0, h.depth)
	for id := root.ID; id != NoNode; id = memo[id].next {
		path = append(path, g.Node(id).Path)
	}
	return h.depth, path
}

func measure(g *Graph, id NodeID, memo map[NodeID]height) height {
	if h, ok := memo[id]; ok {
		return h
	}
	h := height{depth: 1, next: NoNode}
	for _, child := range g.Node(id).Children {
		ch := measure(g, child, memo)
		if ch.depth+1 > h.depth {
			h = height{depth: ch.depth + 1, next: child}
		}
	}
	memo[id] = h
	return h
}
