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
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/revdep/pkg/ux"
	"github.com/AleutianAI/revdep/services/revdep"
)

func (a *app) resolveCmd() *cobra.Command {
	var failIfEmpty bool
	cmd := &cobra.Command{
		Use:   "resolve <target> [entryPoints...]",
		Short: "Show the import chains from entry points to a file or package",
		Long: `Resolve shows how entry points reach target. Entry points may be files or
globs; when none are given they are discovered as the project files no other
file imports. By default one chain per entry point is printed; --all prints
every chain.`,
		Example: `  revdep resolve src/utils/date.ts
  revdep resolve src/utils/date.ts 'src/pages/**/*.tsx' --all
  revdep resolve react --include-node-modules --compact-summary`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			res, err := a.engine.Resolve(cmd.Context(), revdep.ResolveRequest{
				Project:     cfg.ProjectSpec(),
				Target:      args[0],
				EntryPoints: args[1:],
				All:         cfg.Resolve.All,
				MaxPaths:    cfg.Resolve.MaxPaths,
				NotTraverse: cfg.Resolve.NotTraverse,
			})
			if err != nil {
				return err
			}
			a.logger.Debug("resolved",
				slog.String("target", string(res.Target)),
				slog.Int("entry_points", len(res.EntryPoints)),
				slog.Int("paths", res.TotalPaths()),
			)

			err = a.report(res, func(p *ux.Printer) {
				writeResolve(p, res, cfg.Output.CompactSummary, a.display())
			})
			if err != nil {
				return err
			}
			if failIfEmpty && !res.HasResults() {
				return errNoResults
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolP("all", "a", false, "print every chain instead of one per entry point")
	f.Int("max-paths", 0, "stop after this many chains per entry point with --all (0 is unlimited)")
	f.Bool("compact-summary", false, "print only the number of chains per entry point")
	f.BoolVar(&failIfEmpty, "fail-if-empty", false, "exit with status 3 when no entry point reaches the target")
	addFilterFlags(cmd)
	addNotTraverseFlag(cmd)
	return cmd
}
