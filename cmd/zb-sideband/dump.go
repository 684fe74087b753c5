// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"zb.256lights.llc/sideband/sideband"
)

func newDumpCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "dump FILE",
		Short:                 "print the contents of a sideband log",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runDump(cmd.Context(), os.Stdout, args[0])
	}
	return c
}

func runDump(ctx context.Context, w io.Writer, logPath string) error {
	r, err := sideband.Open(logPath)
	if err != nil {
		return err
	}
	defer r.Close()
	if _, err := r.ReadHeader(false); err != nil {
		return err
	}

	out := bufio.NewWriter(w)
	res := r.Header()
	fmt.Fprintf(out, "Status:   %v\n", res.Status)
	if res.Header.Name != "" {
		fmt.Fprintf(out, "Format:   %s v%d\n", res.Header.Name, res.Header.Version)
		fmt.Fprintf(out, "ID:       %v\n", res.Header.ID)
	}
	if res.Header.IsFixedUp() {
		fmt.Fprintf(out, "Checksum: %016x\n", res.Header.Checksum)
		fmt.Fprintf(out, "Length:   %d\n", res.Header.Length)
	}
	fmt.Fprintln(out)
	for path := range r.ReadAll() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprintln(out, path)
	}
	if err := r.Err(); err != nil {
		return err
	}
	return out.Flush()
}
