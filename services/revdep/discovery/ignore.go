// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/AleutianAI/revdep/services/revdep/extract"
)

// IgnoreFileName is the ignore file read from the project root.
const IgnoreFileName = ".gitignore"

type ignoreRule struct {
	raw      string
	globs    []glob.Glob
	negate   bool
	dirOnly  bool
	anchored bool
}

// match tests segs, the root-relative path split on "/". Unanchored rules
// test each segment name; anchored rules test each leading sub-path.
// Directory-only rules never test the final segment.
func (r ignoreRule) match(segs []string) bool {
	last := len(segs)
	if r.dirOnly {
		last--
	}
	for i := 0; i < last; i++ {
		subject := segs[i]
		if r.anchored {
			subject = strings.Join(segs[:i+1], "/")
		}
		for _, g := range r.globs {
			if g.Match(subject) {
				return true
			}
		}
	}
	return false
}

// IgnoreRules is a compiled ignore file.
//
// Rules follow gitignore: a pattern without "/" matches a file or
// directory name at any depth; a pattern containing "/" is relative to the
// root; a trailing "/" matches directories only (and so everything below
// them); "**/x" also matches x at the root; "!" re-includes a path an
// earlier rule ignored. The last matching rule wins.
//
// Thread Safety: Safe for concurrent use after construction.
type IgnoreRules struct {
	root  string
	rules []ignoreRule
}

// LoadIgnoreRules reads root/.gitignore. A missing file yields empty rules.
func LoadIgnoreRules(root string, logger *slog.Logger) (*IgnoreRules, error) {
	path := filepath.Join(root, IgnoreFileName)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &IgnoreRules{root: root}, nil
	}
	if err != nil {
		return nil, &extract.FilesystemError{Op: "read", Path: path, Cause: err}
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return ParseIgnoreRules(root, lines, logger), nil
}

// ParseIgnoreRules compiles ignore file lines. Blank lines and "#"
// comments are skipped before compiling. Patterns the glob compiler
// rejects are logged and skipped.
func ParseIgnoreRules(root string, lines []string, logger *slog.Logger) *IgnoreRules {
	if logger == nil {
		logger = slog.Default()
	}
	ir := &IgnoreRules{root: root}
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, err := compileIgnoreRule(line)
		if err != nil {
			logger.Warn("skipping ignore pattern",
				slog.String("pattern", line),
				slog.String("error", err.Error()),
			)
			continue
		}
		ir.rules = append(ir.rules, rule)
	}
	return ir
}

func compileIgnoreRule(line string) (ignoreRule, error) {
	rule := ignoreRule{raw: line}
	p := line
	if strings.HasPrefix(p, "!") {
		rule.negate = true
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		rule.dirOnly = true
		p = strings.TrimRight(p, "/")
	}
	if strings.HasPrefix(p, "/") {
		rule.anchored = true
		p = strings.TrimLeft(p, "/")
	}
	if strings.Contains(p, "/") {
		rule.anchored = true
	}

	patterns := []string{p}
	if rest, ok := strings.CutPrefix(p, "**/"); ok && rest != "" {
		patterns = append(patterns, rest)
	}
	for _, pat := range patterns {
		g, err := glob.Compile(pat, '/')
		if err != nil {
			return ignoreRule{}, err
		}
		rule.globs = append(rule.globs, g)
	}
	return rule, nil
}

// Len returns the number of compiled rules.
func (ir *IgnoreRules) Len() int {
	if ir == nil {
		return 0
	}
	return len(ir.rules)
}

// Match reports whether path is ignored. Relative paths are taken as
// relative to the root. Paths outside the root are never ignored.
func (ir *IgnoreRules) Match(path string) bool {
	if ir.Len() == 0 {
		return false
	}
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(ir.root, path)
		if err != nil {
			return false
		}
		rel = r
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}

	segs := strings.Split(rel, "/")
	ignored := false
	for _, rule := range ir.rules {
		if rule.match(segs) {
			ignored = !rule.negate
		}
	}
	return ignored
}
