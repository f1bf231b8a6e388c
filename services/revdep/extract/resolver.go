// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type statKind uint8

const (
	statMissing statKind = iota
	statFile
	statDir
)

// jsToTS maps emitted-JavaScript extensions to the TypeScript sources that
// produce them, so `import "./x.js"` finds x.ts.
var jsToTS = map[string][]string{
	".js":  {".ts", ".tsx"},
	".jsx": {".tsx"},
	".mjs": {".mts"},
	".cjs": {".cts"},
}

// Resolver maps an import specifier in a file to an absolute path.
//
// Resolution order:
//  1. Platform builtins ("fs", "node:path") are flagged and not resolved.
//  2. Relative and absolute specifiers are looked up on disk.
//  3. Alias candidates, then baseUrl, are looked up on disk.
//  4. Bare specifiers are looked up in the nearest node_modules.
//  5. Anything else is unresolved.
//
// Lookup tries the exact path, then each source extension, then the
// TypeScript source for a .js specifier, then <dir>/index.<ext>.
//
// Thread Safety: Safe for concurrent use. Stat results are cached for the
// lifetime of the resolver, so create one per extraction.
type Resolver struct {
	aliases AliasResolver
	stats   sync.Map // string -> statKind
}

// NewResolver creates a resolver. aliases may be nil.
func NewResolver(aliases AliasResolver) *Resolver {
	return &Resolver{aliases: aliases}
}

// Resolve resolves request as imported from fromFile.
func (r *Resolver) Resolve(fromFile, request string) RawEdge {
	edge := RawEdge{Request: request}
	if request == "" {
		return edge
	}
	dir := filepath.Dir(fromFile)

	if !isBare(request) {
		base := request
		if !filepath.IsAbs(base) {
			base = filepath.Join(dir, request)
		}
		if p, ok := r.resolveFile(base); ok {
			return r.classify(edge, p)
		}
		return edge
	}

	if IsBuiltin(request) {
		edge.Kind = KindBuiltin
		return edge
	}

	if r.aliases != nil {
		for _, candidate := range r.aliases.Candidates(request) {
			if p, ok := r.resolveFile(candidate); ok {
				return r.classify(edge, p)
			}
		}
		if baseURL := r.aliases.BaseURL(); baseURL != "" {
			if p, ok := r.resolveFile(filepath.Join(baseURL, request)); ok {
				return r.classify(edge, p)
			}
		}
	}

	if p, ok := r.resolvePackage(dir, request); ok {
		edge.Target = p
		edge.Kind = KindNodeModule
		return edge
	}
	return edge
}

func (r *Resolver) classify(edge RawEdge, path string) RawEdge {
	edge.Target = path
	edge.Kind = KindUser
	if underNodeModules(path) {
		edge.Kind = KindNodeModule
	}
	return edge
}

func (r *Resolver) resolveFile(base string) (string, bool) {
	return r.lookupFile(base, nil)
}

// lookupFile resolves base to a file. seen holds the package directories
// whose "main" is already being followed, so mains that point back at
// their own directory or at each other fall through to the index files.
func (r *Resolver) lookupFile(base string, seen map[string]bool) (string, bool) {
	base = filepath.Clean(base)
	if r.stat(base) == statFile {
		return base, true
	}
	for _, ext := range resolveExtensions {
		if p := base + ext; r.stat(p) == statFile {
			return p, true
		}
	}
	if alts, ok := jsToTS[strings.ToLower(filepath.Ext(base))]; ok {
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		for _, ext := range alts {
			if p := stem + ext; r.stat(p) == statFile {
				return p, true
			}
		}
	}
	if r.stat(base) == statDir {
		if main := packageMain(base); main != "" && !seen[base] {
			if target := filepath.Join(base, main); target != base {
				if seen == nil {
					seen = make(map[string]bool)
				}
				seen[base] = true
				if p, ok := r.lookupFile(target, seen); ok {
					return p, true
				}
			}
		}
		for _, ext := range resolveExtensions {
			if p := filepath.Join(base, "index"+ext); r.stat(p) == statFile {
				return p, true
			}
		}
	}
	return "", false
}

// resolvePackage walks up from dir looking for node_modules/<package>.
// A package found on disk always resolves: to the requested file when it
// exists, otherwise to the package directory.
func (r *Resolver) resolvePackage(dir, request string) (string, bool) {
	pkg := PackageName(request)
	for d := dir; ; d = filepath.Dir(d) {
		pkgDir := filepath.Join(d, "node_modules", pkg)
		if r.stat(pkgDir) == statDir {
			if p, ok := r.resolveFile(filepath.Join(d, "node_modules", request)); ok {
				return p, true
			}
			return pkgDir, true
		}
		if filepath.Dir(d) == d {
			return "", false
		}
	}
}

func (r *Resolver) stat(path string) statKind {
	if v, ok := r.stats.Load(path); ok {
		return v.(statKind)
	}
	kind := statMissing
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			kind = statDir
		} else if info.Mode().IsRegular() {
			kind = statFile
		}
	}
	r.stats.Store(path, kind)
	return kind
}

// packageMain returns the "main" (or "module") entry of dir/package.json.
func packageMain(dir string) string {
	raw, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Main   string `json:"main"`
		Module string `json:"module"`
	}
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return ""
	}
	if pkg.Main != "" {
		return pkg.Main
	}
	return pkg.Module
}

func underNodeModules(path string) bool {
	s := filepath.ToSlash(path)
	return strings.Contains(s, "/node_modules/") || strings.HasPrefix(s, "node_modules/")
}
