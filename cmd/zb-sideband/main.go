// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// zb-sideband inspects and writes the sideband logs
// that record the files each build step wrote
// into shared opaque output directories.
package main

import (
	"context"
	"iter"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"
	"zombiezen.com/go/bass/sigterm"
	"zombiezen.com/go/log"
)

func main() {
	rootCommand := &cobra.Command{
		Use:           "zb-sideband",
		Short:         "inspect zb sideband logs",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	g := defaultGlobalConfig()
	if err := g.mergeFiles(configFiles()); err != nil {
		initLogging(false)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
	g.mergeEnvironment()

	rootCommand.PersistentFlags().BoolVar(&g.Debug, "debug", g.Debug, "show debugging output")
	rootCommand.PersistentFlags().StringVar(&g.Directory, "dir", g.Directory, "sideband log root `dir`ectory")
	rootCommand.PersistentFlags().StringVar(&g.CacheDB, "cache-db", g.CacheDB, "`path` to scan cache database")

	rootCommand.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogging(g.Debug)
		return g.validate()
	}

	rootCommand.AddCommand(
		newPathCommand(g),
		newListCommand(g),
		newDumpCommand(g),
		newRecordCommand(g),
		newVersionCommand(g),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), sigterm.Signals()...)
	err := rootCommand.ExecuteContext(ctx)
	cancel()
	if err != nil {
		initLogging(g.Debug)
		log.Errorf(context.Background(), "%v", err)
		os.Exit(1)
	}
}

// configFiles returns the paths of configuration files
// in increasing order of preference.
func configFiles() iter.Seq[string] {
	return func(yield func(string) bool) {
		for dir := range systemConfigDirs() {
			if !yield(filepath.Join(dir, "zb", "sideband.jwcc")) {
				return
			}
		}
	}
}

var initLogOnce sync.Once

func initLogging(showDebug bool) {
	initLogOnce.Do(func() {
		minLogLevel := log.Info
		if showDebug {
			minLogLevel = log.Debug
		}
		log.SetDefault(&log.LevelFilter{
			Min:    minLogLevel,
			Output: log.New(os.Stderr, "zb-sideband: ", log.StdFlags, nil),
		})
	})
}
