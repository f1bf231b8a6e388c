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

func (a *app) filesCmd() *cobra.Command {
	var countOnly bool
	cmd := &cobra.Command{
		Use:   "files <entryPoint>",
		Short: "List the files an entry point requires",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := a.engine.Files(cmd.Context(), revdep.EntryRequest{
				Project:    a.cfg.ProjectSpec(),
				EntryPoint: args[0],
			})
			if err != nil {
				return err
			}
			files := idStrings(ids)
			report := filesReport{EntryPoint: args[0], Count: len(files), Files: files}
			return a.report(report, func(p *ux.Printer) {
				writeList(p, names(ids, a.display()), countOnly)
			})
		},
	}
	cmd.Flags().BoolVarP(&countOnly, "count", "c", false, "print only the number of files")
	return cmd
}

func (a *app) nodeModulesCmd() *cobra.Command {
	var countOnly bool
	cmd := &cobra.Command{
		Use:   "node-modules <entryPoint>",
		Short: "List the third-party packages an entry point uses",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs, err := a.engine.NodeModules(cmd.Context(), revdep.EntryRequest{
				Project:    a.cfg.ProjectSpec(),
				EntryPoint: args[0],
			})
			if err != nil {
				return err
			}
			if pkgs == nil {
				pkgs = []string{}
			}
			report := nodeModulesReport{EntryPoint: args[0], Count: len(pkgs), NodeModules: pkgs}
			return a.report(report, func(p *ux.Printer) {
				writeList(p, pkgs, countOnly)
			})
		},
	}
	cmd.Flags().BoolVarP(&countOnly, "count", "c", false, "print only the number of packages")
	return cmd
}
