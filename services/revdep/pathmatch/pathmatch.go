// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pathmatch matches module ids against glob patterns written
// relative to a project root.
//
// Patterns use doublestar syntax: '*' matches within one path segment,
// '**' spans directories, and '{a,b}' alternates. A leading "./" is
// ignored. Absolute patterns are matched against the absolute id.
package pathmatch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidPattern is returned for patterns doublestar cannot parse.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// Matcher is a compiled, immutable set of patterns.
//
// Thread Safety: Safe for concurrent use.
type Matcher struct {
	root     string
	patterns []string
}

// New validates patterns and returns a matcher rooted at root.
//
// Inputs:
//
//	root - Absolute project root. Ids under root are matched by their
//	       root-relative path.
//	patterns - Glob patterns. Empty strings are skipped.
//
// Outputs:
//
//	*Matcher - Never nil on success. A matcher with no patterns matches nothing.
//	error - Wraps ErrInvalidPattern naming the first bad pattern.
func New(root string, patterns []string) (*Matcher, error) {
	m := &Matcher{root: filepath.ToSlash(filepath.Clean(root))}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = strings.TrimPrefix(filepath.ToSlash(p), "./")
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
		m.patterns = append(m.patterns, p)
	}
	return m, nil
}

// MustNew is like New but panics on an invalid pattern. Intended for
// tests and package-level defaults.
func MustNew(root string, patterns []string) *Matcher {
	m, err := New(root, patterns)
	if err != nil {
		panic(err)
	}
	return m
}

// Empty reports whether the matcher has no patterns.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// Patterns returns the normalized patterns.
func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return m.patterns
}

// Match reports whether id matches any pattern. A nil matcher matches
// nothing.
func (m *Matcher) Match(id string) bool {
	if m.Empty() {
		return false
	}
	abs := filepath.ToSlash(id)
	rel := m.Rel(id)
	for _, p := range m.patterns {
		subject := rel
		if strings.HasPrefix(p, "/") {
			subject = abs
		}
		if ok, _ := doublestar.Match(p, subject); ok {
			return true
		}
	}
	return false
}

// Rel returns id relative to the matcher root with forward slashes. Ids
// outside the root, and bare package names, are returned unchanged.
func (m *Matcher) Rel(id string) string {
	s := filepath.ToSlash(id)
	if m == nil || m.root == "" || m.root == "." {
		return s
	}
	if s == m.root {
		return "."
	}
	prefix := strings.TrimSuffix(m.root, "/") + "/"
	if strings.HasPrefix(s, prefix) {
		return strings.TrimPrefix(s, prefix)
	}
	return s
}
