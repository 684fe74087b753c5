// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
	"zb.256lights.llc/sideband/sideband"
	"zombiezen.com/go/log"
)

// zbVersion is the version string filled in by the linker (e.g. "1.2.3").
var zbVersion string

func newVersionCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "version",
		Short:                 "show version information",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runVersion(cmd.Context())
	}
	return c
}

func runVersion(ctx context.Context) error {
	firstLine := "zb-sideband"
	if zbVersion == "" {
		firstLine += " (version unknown)"
	} else {
		firstLine += " version " + zbVersion
	}
	fmt.Printf("%s\nSystem:       %s/%s\nCPUs:         %d\n", firstLine, runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	fmt.Printf("Log format:   %s v%d\n", sideband.Envelope.Name(), sideband.Envelope.Version())

	if info, ok := debug.ReadBuildInfo(); ok {
		fmt.Printf("Go:           %s\n", info.GoVersion)
	} else {
		log.Debugf(ctx, "No build information in binary")
	}
	return nil
}
