// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/revdep/pkg/ux"
	"github.com/AleutianAI/revdep/services/revdep"
	"github.com/AleutianAI/revdep/services/revdep/depgraph"
)

// separatorWidth is the width of the rule printed between entry points.
const separatorWidth = 60

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// render writes v as JSON or YAML, or calls text for the text format.
func render(w io.Writer, format string, v any, text func() error) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case formatText, "":
		return text()
	default:
		return usageError(fmt.Errorf("unknown output format %q", format))
	}
}

// Reports for the structured formats. Field names match the HTTP API.

type filesReport struct {
	EntryPoint string   `json:"entry_point" yaml:"entry_point"`
	Count      int      `json:"count" yaml:"count"`
	Files      []string `json:"files" yaml:"files"`
}

type nodeModulesReport struct {
	EntryPoint  string   `json:"entry_point" yaml:"entry_point"`
	Count       int      `json:"count" yaml:"count"`
	NodeModules []string `json:"node_modules" yaml:"node_modules"`
}

type circularReport struct {
	Count  int        `json:"count" yaml:"count"`
	Cycles [][]string `json:"cycles" yaml:"cycles"`
}

type depthReport struct {
	Results []revdep.DepthResult `json:"results" yaml:"results"`
}

// displayName turns a module id into the text shown to the user.
type displayName func(depgraph.ModuleID) string

// relativeTo shows ids under root relative to it. Package ids and files
// outside root are shown unchanged.
func relativeTo(root string) displayName {
	return func(id depgraph.ModuleID) string {
		s := string(id)
		if root == "" || !filepath.IsAbs(s) {
			return s
		}
		rel, err := filepath.Rel(root, s)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return s
		}
		return filepath.ToSlash(rel)
	}
}

func idStrings(ids []depgraph.ModuleID) []string {
	return names(ids, func(id depgraph.ModuleID) string { return string(id) })
}

func names(ids []depgraph.ModuleID, name displayName) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = name(id)
	}
	return out
}

// writePath prints one chain, indenting each step one column further:
//
//	 ➞ src/index.ts
//	  ➞ src/app.ts
//	   ➞ src/utils/date.ts
func writePath(p *ux.Printer, path depgraph.ResolutionPath, name displayName) {
	arrow := p.Icon(ux.IconArrow)
	last := len(path) - 1
	for i, id := range path {
		text := name(id)
		switch {
		case id == depgraph.CircularPath:
			text = p.Render(ux.Styles.Error, text)
		case i == last:
			text = p.Render(ux.Styles.Highlight, text)
		case i == 0:
			text = p.Render(ux.Styles.Bold, text)
		}
		p.Println(strings.Repeat(" ", i) + " " + arrow + " " + text)
	}
}

// writeResolve prints a resolve result the way the terminal report reads:
// every chain per entry point, or one count per entry point in compact
// mode.
func writeResolve(p *ux.Printer, res *revdep.ResolveResult, compact bool, name displayName) {
	if !res.HasResults() {
		p.Println(fmt.Sprintf("No results found for %s in %s",
			name(res.Target), strings.Join(names(res.EntryPoints, name), ", ")))
		return
	}

	p.Title("Results:")
	p.Println("")

	if compact {
		width := 0
		for _, ep := range res.EntryPoints {
			width = max(width, len(name(ep)))
		}
		for _, er := range res.Results {
			count := strconv.Itoa(len(er.Paths))
			if er.Truncated {
				count += "+"
			}
			p.Println(ux.Pad(name(er.EntryPoint), width) + " : " + count)
		}
		p.Println("")
		p.Println(p.Render(ux.Styles.Bold, fmt.Sprintf("Total: %d", res.TotalPaths())))
		return
	}

	matching := res.Matching()
	for i, er := range matching {
		for _, path := range er.Paths {
			writePath(p, path, name)
			p.Println("")
		}
		if er.Truncated {
			p.Muted(fmt.Sprintf("(stopped after %d paths from %s)", len(er.Paths), name(er.EntryPoint)))
			p.Println("")
		}
		if i < len(matching)-1 {
			p.Separator(separatorWidth)
			p.Println("")
		}
	}
}

// writeList prints ids one per line, or only their number.
func writeList(p *ux.Printer, items []string, countOnly bool) {
	if countOnly {
		p.Println(strconv.Itoa(len(items)))
		return
	}
	if len(items) == 0 {
		p.Println("No results found")
		return
	}
	for _, item := range items {
		p.Println(item)
	}
}

// writeEntryPoints prints discovered entry points, with their dependency
// counts when they were computed.
func writeEntryPoints(p *ux.Printer, res *revdep.EntryPointsResult, withCounts bool, name displayName) {
	if len(res.EntryPoints) == 0 {
		p.Println("No entry points found")
		return
	}
	if !withCounts {
		for _, ep := range res.EntryPoints {
			p.Println(name(ep.ID))
		}
		return
	}
	width := 0
	for _, ep := range res.EntryPoints {
		width = max(width, len(name(ep.ID)))
	}
	for _, ep := range res.EntryPoints {
		p.Println(ux.Pad(name(ep.ID), width) + " : " + strconv.Itoa(ep.Dependencies))
	}
}

// writeCycles prints each cycle on one line.
func writeCycles(p *ux.Printer, cycles []depgraph.ResolutionPath, name displayName) {
	if len(cycles) == 0 {
		p.Success("No circular imports found")
		return
	}
	arrow := " " + p.Icon(ux.IconArrow) + " "
	for _, cycle := range cycles {
		p.Println(p.Icon(ux.IconCycle) + " " + strings.Join(names(cycle, name), arrow))
	}
	p.Println("")
	noun := "cycles"
	if len(cycles) == 1 {
		noun = "cycle"
	}
	p.Warning(fmt.Sprintf("Found %d import %s", len(cycles), noun))
}

// writeDepth prints the depth per entry point and the deepest chain
// overall.
func writeDepth(p *ux.Printer, results []revdep.DepthResult, name displayName) {
	if len(results) == 0 {
		p.Println("No entry points found")
		return
	}
	width := 0
	deepest := results[0]
	for _, r := range results {
		width = max(width, len(name(r.EntryPoint)))
		if r.Depth > deepest.Depth {
			deepest = r
		}
	}
	for _, r := range results {
		p.Println(ux.Pad(name(r.EntryPoint), width) + " : " + strconv.Itoa(r.Depth))
	}
	p.Println("")
	p.Title(fmt.Sprintf("Max depth: %d", deepest.Depth))
	writePath(p, deepest.Path, name)
}
