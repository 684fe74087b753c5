// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"zb.256lights.llc/sideband/internal/scancache"
	"zb.256lights.llc/sideband/sideband"
	"zombiezen.com/go/log"
)

// cacheRetention is how long an unused scan cache entry is kept.
const cacheRetention = 30 * 24 * time.Hour

type listOptions struct {
	showPaths bool
	useCache  bool
}

func newListCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "list [options]",
		Short:                 "list the sideband logs in the sideband directory",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(listOptions)
	c.Flags().BoolVar(&opts.showPaths, "paths", false, "print the paths recorded in each log")
	c.Flags().BoolVar(&opts.useCache, "cache", false, "remember verified logs in the cache database")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runList(cmd.Context(), g, opts)
	}
	return c
}

func runList(ctx context.Context, g *globalConfig, opts *listOptions) error {
	scanOpts := &sideband.ScanOptions{Concurrency: g.Concurrency}
	if opts.useCache {
		if g.CacheDB == "" {
			return fmt.Errorf("--cache given but no cache database configured")
		}
		if err := os.MkdirAll(filepath.Dir(g.CacheDB), 0o777); err != nil {
			return err
		}
		db := scancache.Open(g.CacheDB)
		defer func() {
			if err := db.Close(); err != nil {
				log.Errorf(ctx, "%v", err)
			}
		}()
		scanOpts.Cache = db
		defer pruneCache(ctx, db)
	}

	summaries, err := sideband.Scan(ctx, g.Directory, scanOpts)
	if err != nil {
		return err
	}
	out := bufio.NewWriter(os.Stdout)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintf(out, "STATUS\tPATHS\tLOG\n")
	}
	for _, summary := range summaries {
		fmt.Fprintf(out, "%v\t%d\t%s\n", summary.Status, len(summary.Paths), summary.LogPath)
		if opts.showPaths {
			for _, path := range summary.Paths {
				fmt.Fprintf(out, "\t%s\n", path)
			}
		}
	}
	return out.Flush()
}

func pruneCache(ctx context.Context, db *scancache.DB) {
	cutoff := time.Now().Add(-cacheRetention)
	log.Debugf(ctx, "Removing scan cache entries unused since %v...", cutoff.UTC())
	n, err := db.Prune(ctx, cutoff)
	if err != nil {
		log.Warnf(ctx, "Failed to clean up scan cache: %v", err)
		return
	}
	if n > 0 {
		log.Infof(ctx, "Removed %d unused scan cache entries", n)
	}
	if total, err := db.Len(ctx); err == nil {
		log.Debugf(ctx, "Scan cache has %d entries", total)
	}
}
