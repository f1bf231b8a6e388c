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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// AliasResolver maps non-relative specifiers to candidate file paths.
type AliasResolver interface {
	// Candidates returns absolute, extensionless-or-exact base paths that
	// request may resolve to, best match first. Nil if no alias applies.
	Candidates(request string) []string

	// BaseURL returns a directory bare specifiers are also tried against,
	// or "" when there is none.
	BaseURL() string
}

// LoadAliasConfig loads the alias source for a project.
//
// Description:
//
//	An explicit path is resolved against cwd. Files named like
//	tsconfig*.json or jsconfig*.json are read as TypeScript configs; any
//	other file is read as a bundler alias map. With no path, tsconfig.json
//	and then jsconfig.json in cwd are tried. A project without either has
//	no aliases, which is not an error.
//
// Outputs:
//
//	AliasResolver - Nil when no alias source exists.
//	error - Wraps ErrInvalidAliasConfig or a *FilesystemError.
func LoadAliasConfig(cwd, path string) (AliasResolver, error) {
	if path == "" {
		for _, name := range []string{"tsconfig.json", "jsconfig.json"} {
			candidate := filepath.Join(cwd, name)
			if fileExists(candidate) {
				return asResolver(LoadTSConfig(candidate))
			}
		}
		return nil, nil
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	base := strings.ToLower(filepath.Base(path))
	if (strings.HasPrefix(base, "tsconfig") || strings.HasPrefix(base, "jsconfig")) && strings.HasSuffix(base, ".json") {
		return asResolver(LoadTSConfig(path))
	}
	return asResolver(LoadBundlerAliases(path))
}

// asResolver keeps a failed load from becoming a non-nil interface holding
// a nil pointer.
func asResolver[T AliasResolver](r T, err error) (AliasResolver, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

// pathRule is one compilerOptions.paths entry with absolute targets.
type pathRule struct {
	prefix   string
	suffix   string
	wildcard bool
	targets  []string
}

func (r pathRule) match(request string) (string, bool) {
	if !r.wildcard {
		return "", request == r.prefix
	}
	if len(request) < len(r.prefix)+len(r.suffix) {
		return "", false
	}
	if !strings.HasPrefix(request, r.prefix) || !strings.HasSuffix(request, r.suffix) {
		return "", false
	}
	return request[len(r.prefix) : len(request)-len(r.suffix)], true
}

// TSConfigAliases resolves specifiers through compilerOptions.paths and
// compilerOptions.baseUrl.
type TSConfigAliases struct {
	baseURL string
	rules   []pathRule
}

type tsconfigFile struct {
	Extends         json.RawMessage `json:"extends"`
	CompilerOptions struct {
		BaseURL *string             `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

// effectiveTSConfig accumulates settings along an extends chain. Each
// field remembers the directory of the config that set it.
type effectiveTSConfig struct {
	baseURL  string
	paths    map[string][]string
	pathsDir string
}

// LoadTSConfig reads a tsconfig/jsconfig file, following "extends".
//
// Comments and trailing commas are accepted. Settings from the extending
// file override the extended one; "paths" is replaced as a whole, like
// the TypeScript compiler does. Paths are resolved against baseUrl when
// one is in effect, otherwise against the directory of the file that
// declared them.
func LoadTSConfig(path string) (*TSConfigAliases, error) {
	eff := &effectiveTSConfig{}
	if err := loadTSConfigChain(path, eff, map[string]bool{}); err != nil {
		return nil, err
	}

	aliases := &TSConfigAliases{baseURL: eff.baseURL}
	root := eff.pathsDir
	if eff.baseURL != "" {
		root = eff.baseURL
	}
	for pattern, targets := range eff.paths {
		rule := pathRule{prefix: pattern}
		if before, after, ok := strings.Cut(pattern, "*"); ok {
			rule = pathRule{prefix: before, suffix: after, wildcard: true}
		}
		for _, t := range targets {
			if !filepath.IsAbs(t) {
				t = filepath.Join(root, t)
			}
			rule.targets = append(rule.targets, filepath.Clean(t))
		}
		aliases.rules = append(aliases.rules, rule)
	}
	// Longest prefix wins; exact patterns beat wildcards of equal length.
	sort.SliceStable(aliases.rules, func(i, j int) bool {
		a, b := aliases.rules[i], aliases.rules[j]
		if len(a.prefix) != len(b.prefix) {
			return len(a.prefix) > len(b.prefix)
		}
		if a.wildcard != b.wildcard {
			return !a.wildcard
		}
		return a.prefix < b.prefix
	})
	return aliases, nil
}

func loadTSConfigChain(path string, eff *effectiveTSConfig, seen map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidAliasConfig, path, err)
	}
	if seen[abs] {
		return nil
	}
	seen[abs] = true

	raw, err := os.ReadFile(abs)
	if err != nil {
		return &FilesystemError{Op: "read", Path: abs, Cause: err}
	}
	var cfg tsconfigFile
	if err := json.Unmarshal(jsonc.ToJSON(raw), &cfg); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidAliasConfig, abs, err)
	}
	dir := filepath.Dir(abs)

	// Extended configs apply first, in order, so this file overrides them.
	for _, ext := range extendsList(cfg.Extends) {
		if target := resolveExtends(dir, ext); target != "" {
			if err := loadTSConfigChain(target, eff, seen); err != nil {
				return err
			}
		}
	}

	if cfg.CompilerOptions.BaseURL != nil {
		eff.baseURL = filepath.Join(dir, *cfg.CompilerOptions.BaseURL)
	}
	if cfg.CompilerOptions.Paths != nil {
		eff.paths = cfg.CompilerOptions.Paths
		eff.pathsDir = dir
	}
	return nil
}

// extendsList accepts both the string and the array form of "extends".
func extendsList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	return nil
}

// resolveExtends finds the file an "extends" value points at. Relative
// values are files next to dir; bare values are looked up as packages in
// node_modules. Returns "" when nothing exists.
func resolveExtends(dir, ext string) string {
	var candidates []string
	if filepath.IsAbs(ext) || strings.HasPrefix(ext, ".") {
		p := ext
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		candidates = append(candidates, p, p+".json")
	} else {
		for d := dir; ; d = filepath.Dir(d) {
			nm := filepath.Join(d, "node_modules", ext)
			candidates = append(candidates, nm, nm+".json", filepath.Join(nm, "tsconfig.json"))
			if filepath.Dir(d) == d {
				break
			}
		}
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c
		}
	}
	return ""
}

// Candidates implements AliasResolver.
func (a *TSConfigAliases) Candidates(request string) []string {
	for _, rule := range a.rules {
		star, ok := rule.match(request)
		if !ok {
			continue
		}
		out := make([]string, 0, len(rule.targets))
		for _, t := range rule.targets {
			out = append(out, strings.Replace(t, "*", star, 1))
		}
		return out
	}
	return nil
}

// BaseURL implements AliasResolver.
func (a *TSConfigAliases) BaseURL() string {
	return a.baseURL
}

// BundlerAliases resolves specifiers through a bundler-style alias map:
//
//	"@": ./src              # "@/x" -> <dir>/src/x
//	"utils$": ./src/utils   # exact "utils" only
//
// The map may be the whole file, or nested under "alias" or
// "resolve.alias". Targets are relative to the file's directory.
type BundlerAliases struct {
	entries []bundlerAlias
}

type bundlerAlias struct {
	key    string
	exact  bool
	target string
}

// LoadBundlerAliases reads a YAML or JSON alias map.
func LoadBundlerAliases(path string) (*BundlerAliases, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &FilesystemError{Op: "read", Path: path, Cause: err}
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAliasConfig, path, err)
	}
	if resolve, ok := doc["resolve"].(map[string]any); ok {
		if alias, ok := resolve["alias"].(map[string]any); ok {
			doc = alias
		}
	} else if alias, ok := doc["alias"].(map[string]any); ok {
		doc = alias
	}

	dir := filepath.Dir(path)
	b := &BundlerAliases{}
	for key, v := range doc {
		target, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s: alias %q must map to a string", ErrInvalidAliasConfig, path, key)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		entry := bundlerAlias{key: key, target: filepath.Clean(target)}
		if strings.HasSuffix(key, "$") {
			entry.key = strings.TrimSuffix(key, "$")
			entry.exact = true
		}
		b.entries = append(b.entries, entry)
	}
	sort.Slice(b.entries, func(i, j int) bool {
		if len(b.entries[i].key) != len(b.entries[j].key) {
			return len(b.entries[i].key) > len(b.entries[j].key)
		}
		return b.entries[i].key < b.entries[j].key
	})
	return b, nil
}

// Candidates implements AliasResolver.
func (b *BundlerAliases) Candidates(request string) []string {
	for _, e := range b.entries {
		if request == e.key {
			return []string{e.target}
		}
		if !e.exact && strings.HasPrefix(request, e.key+"/") {
			return []string{filepath.Join(e.target, strings.TrimPrefix(request, e.key+"/"))}
		}
	}
	return nil
}

// BaseURL implements AliasResolver. Bundler maps have none.
func (b *BundlerAliases) BaseURL() string {
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
