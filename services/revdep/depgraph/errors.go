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
	"errors"
	"fmt"
)

// Sentinel errors for graph operations.
var (
	// ErrModuleNotInTable is returned when traversal reaches a module id
	// that has no entry in the dependency table. It always aborts the build:
	// a partial graph would silently drop import chains.
	ErrModuleNotInTable = errors.New("module not found in dependency table")

	// ErrEmptyEntryPoint is returned when Build is called without an entry
	// point.
	ErrEmptyEntryPoint = errors.New("entry point is required")

	// ErrNilTable is returned when Build is called with a nil table.
	ErrNilTable = errors.New("dependency table is nil")
)

// GraphConsistencyError reports a module id referenced during traversal
// that the dependency table does not contain.
//
// Example:
//
//	g, err := depgraph.Build(ctx, table, entry, opts)
//	var gce *depgraph.GraphConsistencyError
//	if errors.As(err, &gce) {
//	    fmt.Printf("%s imported from %s is missing\n", gce.ID, gce.ImportedBy)
//	}
type GraphConsistencyError struct {
	// ID is the missing module.
	ID ModuleID

	// ImportedBy is the module whose edge pointed at ID. Empty when the
	// missing module is the entry point itself.
	ImportedBy ModuleID

	// EntryPoint is the root of the failed traversal.
	EntryPoint ModuleID
}

// Error returns a message naming the missing module and its importer.
func (e *GraphConsistencyError) Error() string {
	if e.ImportedBy == "" {
		return fmt.Sprintf("dependency %q not found (entry point %q)", e.ID, e.EntryPoint)
	}
	return fmt.Sprintf("dependency %q not found, imported from %q (entry point %q)",
		e.ID, e.ImportedBy, e.EntryPoint)
}

// Unwrap returns ErrModuleNotInTable.
func (e *GraphConsistencyError) Unwrap() error {
	return ErrModuleNotInTable
}
