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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/revdep/pkg/ux"
	"github.com/AleutianAI/revdep/services/revdep"
)

type countReport struct {
	Count int `json:"count" yaml:"count"`
}

func (a *app) entryPointsCmd() *cobra.Command {
	var (
		countOnly bool
		depsCount bool
	)
	cmd := &cobra.Command{
		Use:   "entry-points",
		Short: "List the project files that no other file imports",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.engine.EntryPoints(cmd.Context(), revdep.EntryPointsRequest{
				Project: a.cfg.ProjectSpec(),
				Count:   depsCount,
			})
			if err != nil {
				return err
			}
			if countOnly {
				n := len(res.EntryPoints)
				return a.report(countReport{Count: n}, func(p *ux.Printer) {
					p.Println(strconv.Itoa(n))
				})
			}
			return a.report(res, func(p *ux.Printer) {
				writeEntryPoints(p, res, depsCount, a.display())
			})
		},
	}

	cmd.Flags().BoolVarP(&countOnly, "count", "c", false, "print only the number of entry points")
	cmd.Flags().BoolVar(&depsCount, "print-deps-count", false, "print how many modules each entry point reaches")
	addFilterFlags(cmd)
	return cmd
}
