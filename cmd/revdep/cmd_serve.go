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
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/revdep/services/revdep/api"
	"github.com/AleutianAI/revdep/services/revdep/telemetry"
	"github.com/AleutianAI/revdep/services/revdep/watch"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolution engine over HTTP",
		Long: `Serve exposes resolve, entry-points, files, node-modules, depth and circular
as JSON endpoints under /v1/revdep. Requests name their project with an
absolute cwd. With --watch, the project root (or every allowed root) is
watched and its cached tables are dropped when sources change.`,
		Example: `  revdep serve --addr 127.0.0.1:7331 --cache --watch
  curl -s localhost:7331/v1/revdep/resolve -d '{"cwd":"/src/app","target":"src/util.ts"}'`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if a.cfg.Server.Watch {
				stop, err := a.startWatchers(ctx)
				if err != nil {
					return err
				}
				defer stop()
			}

			srv := api.NewServer(a.cfg.Server.Addr, a.httpHandler(), a.cfg.Server.ShutdownTimeout, a.logger)
			return srv.ListenAndServe(ctx)
		},
	}

	f := cmd.Flags()
	f.String("addr", "127.0.0.1:7331", "listen address")
	f.Float64("rate-limit", 0, "requests per second per client (0 disables limiting)")
	f.Bool("watch", true, "invalidate cached tables when project files change")
	return cmd
}

// httpHandler builds the API router from the loaded configuration.
func (a *app) httpHandler() http.Handler {
	if a.cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	api.ServiceVersion = version

	handlers := api.NewHandlers(a.engine, a.cfg.Server.AllowedRoots, a.logger)
	return api.NewRouter(handlers, api.RouterOptions{
		ServiceName: a.cfg.Telemetry.ServiceName,
		Limiter:     api.NewRateLimiter(a.cfg.Server.RateLimit, a.cfg.Server.RateBurst),
		Metrics:     telemetry.MetricsHandler(),
		Logger:      a.logger,
	})
}

// watchRoots returns the directories to watch: the allowed roots when
// configured, otherwise the project root.
func (a *app) watchRoots() ([]string, error) {
	if len(a.cfg.Server.AllowedRoots) > 0 {
		return a.cfg.Server.AllowedRoots, nil
	}
	if a.cfg.Project.Cwd != "" {
		return []string{a.cfg.Project.Cwd}, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return []string{wd}, nil
}

// startWatchers starts one watcher per watch root. The returned function
// stops them all.
func (a *app) startWatchers(ctx context.Context) (func(), error) {
	roots, err := a.watchRoots()
	if err != nil {
		return nil, err
	}

	var watchers []*watch.Watcher
	stop := func() {
		for _, w := range watchers {
			if err := w.Stop(); err != nil {
				a.logger.Warn("stop watcher", slog.String("root", w.Root()), slog.String("error", err.Error()))
			}
		}
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			stop()
			return nil, err
		}
		w, err := watch.New(abs, watch.InvalidateOnChange(a.engine, abs, a.logger), watch.Options{
			Debounce: a.cfg.Server.Debounce,
			Logger:   a.logger,
		})
		if err != nil {
			stop()
			return nil, err
		}
		if err := w.Start(ctx); err != nil {
			_ = w.Stop()
			stop()
			return nil, err
		}
		watchers = append(watchers, w)
	}
	return stop, nil
}
