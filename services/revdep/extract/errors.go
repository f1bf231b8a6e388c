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
	"errors"
	"fmt"
)

// Sentinel errors for extraction.
//
// These can be checked with errors.Is() regardless of which typed error
// wraps them.
var (
	// ErrExtraction indicates a source file could not be analyzed.
	ErrExtraction = errors.New("extraction failed")

	// ErrFilesystem indicates a directory or file could not be read.
	ErrFilesystem = errors.New("filesystem error")

	// ErrInvalidAliasConfig indicates the alias config could not be parsed.
	ErrInvalidAliasConfig = errors.New("invalid alias config")

	// ErrNoCwd is returned when Options.Cwd is empty.
	ErrNoCwd = errors.New("working directory is required")
)

// FilesystemError reports an unreadable file or directory.
//
// Example:
//
//	var fsErr *extract.FilesystemError
//	if errors.As(err, &fsErr) {
//	    fmt.Printf("cannot %s %s\n", fsErr.Op, fsErr.Path)
//	}
type FilesystemError struct {
	// Op is the failed operation, such as "read" or "scan".
	Op string

	// Path is the file or directory involved.
	Path string

	// Cause is the underlying error, typically *fs.PathError.
	Cause error
}

// Error returns "op path: cause".
func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *FilesystemError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrFilesystem) true for every FilesystemError.
func (e *FilesystemError) Is(target error) bool {
	return target == ErrFilesystem
}

// ExtractionError reports a source file that could not be analyzed.
type ExtractionError struct {
	// File is the absolute path of the file.
	File string

	// Cause is the underlying parser error.
	Cause error
}

// Error returns "extract file: cause".
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.File, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrExtraction) true for every ExtractionError.
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}
