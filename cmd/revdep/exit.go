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
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/revdep/pkg/logging"
	"github.com/AleutianAI/revdep/services/revdep"
	"github.com/AleutianAI/revdep/services/revdep/config"
	"github.com/AleutianAI/revdep/services/revdep/pathmatch"
	"github.com/AleutianAI/revdep/services/revdep/telemetry"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
	ExitEmpty   = 3
)

// errNoResults is returned by resolve --fail-if-empty when no entry point
// reaches the target.
var errNoResults = errors.New("no results")

// ExitError carries a process exit code with the failure behind it.
//
// # Example
//
//	err := &ExitError{Code: ExitUsage, Err: errors.New("unknown flag")}
//
//	var exitErr *ExitError
//	if errors.As(err, &exitErr) {
//	    os.Exit(exitErr.Code)
//	}
type ExitError struct {
	// Code is the process exit code.
	Code int

	// Err is the underlying error.
	Err error
}

// Error returns the underlying message.
func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit %d", e.Code)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}

// usageArgs marks positional argument failures as usage errors.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

// exitCode maps an error returned by command execution to a process exit
// code.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch {
	case errors.Is(err, errNoResults):
		return ExitEmpty
	case errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, revdep.ErrNoTarget),
		errors.Is(err, revdep.ErrNoEntryPoint),
		errors.Is(err, pathmatch.ErrInvalidPattern),
		errors.Is(err, logging.ErrUnknownLevel),
		errors.Is(err, logging.ErrUnknownFormat),
		errors.Is(err, telemetry.ErrUnknownExporter):
		return ExitUsage
	default:
		return ExitFailure
	}
}
