// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/AleutianAI/revdep/services/revdep/extract"
)

// Fingerprint digests the on-disk state a table was extracted from.
//
// Description:
//
//	Covers the size and modification time of every analyzed file, of the
//	directories holding them (so created, deleted and renamed files show
//	up), of the project root, and of the alias config the key names or
//	the default tsconfig.json/jsconfig.json. A path that cannot be
//	stat'ed contributes a fixed marker, so deleting a file also changes
//	the digest. node_modules files are not analyzed and not covered.
//
//	Checking a fingerprint costs one stat per path, far less than the
//	parse it saves.
//
// Inputs:
//
//	key - The extraction key; supplies the root and alias config.
//	table - The extracted table.
//
// Outputs:
//
//	string - Hex digest, stable for an unchanged tree.
func Fingerprint(key Key, table extract.RawTable) string {
	root := key.Root()
	seen := map[string]struct{}{root: {}}
	add := func(p string) { seen[filepath.Clean(p)] = struct{}{} }

	if key.AliasConfig != "" {
		p := key.AliasConfig
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		add(p)
	} else {
		add(filepath.Join(root, "tsconfig.json"))
		add(filepath.Join(root, "jsconfig.json"))
	}
	for file, edges := range table {
		if edges == nil {
			continue
		}
		add(file)
		add(filepath.Dir(file))
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	h := sha256.New()
	buf := make([]byte, 0, 64)
	for _, p := range paths {
		h.Write([]byte(p))
		buf = buf[:0]
		if info, err := os.Stat(p); err != nil {
			buf = append(buf, "\x00-"...)
		} else {
			buf = append(buf, 0)
			buf = strconv.AppendInt(buf, info.Size(), 10)
			buf = append(buf, ':')
			buf = strconv.AppendInt(buf, info.ModTime().UnixNano(), 10)
		}
		buf = append(buf, '\n')
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}
