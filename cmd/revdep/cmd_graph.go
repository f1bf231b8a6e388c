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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/revdep/pkg/ux"
	"github.com/AleutianAI/revdep/services/revdep"
)

func (a *app) graphRequest(entryPoints []string) revdep.GraphRequest {
	return revdep.GraphRequest{
		Project:     a.cfg.ProjectSpec(),
		EntryPoints: entryPoints,
		NotTraverse: a.cfg.Resolve.NotTraverse,
	}
}

func (a *app) circularCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "circular [entryPoints...]",
		Short: "List the import cycles reachable from entry points",
		Args:  usageArgs(cobra.ArbitraryArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cycles, err := a.engine.Circular(cmd.Context(), a.graphRequest(args))
			if err != nil {
				return err
			}
			report := circularReport{Count: len(cycles), Cycles: make([][]string, len(cycles))}
			for i, c := range cycles {
				report.Cycles[i] = idStrings(c)
			}
			return a.report(report, func(p *ux.Printer) {
				writeCycles(p, cycles, a.display())
			})
		},
	}
	addFilterFlags(cmd)
	addNotTraverseFlag(cmd)
	return cmd
}

func (a *app) depthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "depth [entryPoints...]",
		Short: "Show the longest import chain from each entry point",
		Args:  usageArgs(cobra.ArbitraryArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.engine.Depth(cmd.Context(), a.graphRequest(args))
			if err != nil {
				return err
			}
			return a.report(depthReport{Results: results}, func(p *ux.Printer) {
				writeDepth(p, results, a.display())
			})
		},
	}
	addFilterFlags(cmd)
	addNotTraverseFlag(cmd)
	return cmd
}
