// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package revdep

import "errors"

var (
	// ErrNoTarget is returned by Resolve when no target is given.
	ErrNoTarget = errors.New("target is required")

	// ErrNoEntryPoint is returned by single-entry-point operations when
	// none is given.
	ErrNoEntryPoint = errors.New("entry point is required")

	// ErrEntryPointNotFound is returned when a given entry point is not a
	// module of the extracted table, typically a missing or non-source
	// file.
	ErrEntryPointNotFound = errors.New("entry point not found")
)
