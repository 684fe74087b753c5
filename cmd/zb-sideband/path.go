// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"zb.256lights.llc/sideband/sideband"
	"zombiezen.com/go/log"
	"zombiezen.com/go/nix"
)

type pathOptions struct {
	hash pipHashFlag
	pip  string
}

func newPathCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "path (--hash HEX | --pip ID)",
		Short:                 "print the location of a pip's sideband log",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(pathOptions)
	c.Flags().Var(&opts.hash, "hash", "semi-stable pip `hash` in hexadecimal")
	c.Flags().StringVar(&opts.pip, "pip", "", "derive the pip hash from the SHA-256 hash of `id`")
	c.MarkFlagsMutuallyExclusive("hash", "pip")
	c.MarkFlagsOneRequired("hash", "pip")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return runPath(cmd.Context(), g, opts)
	}
	return c
}

func runPath(ctx context.Context, g *globalConfig, opts *pathOptions) error {
	pipHash := opts.hash.hash
	if opts.pip != "" {
		h := nix.NewHasher(nix.SHA256)
		h.Write([]byte(opts.pip))
		pipHash = sideband.PipHash(h.SumHash())
		log.Debugf(ctx, "Pip %q has hash %016X", opts.pip, pipHash)
	}
	_, err := fmt.Println(sideband.PathFor(g.Directory, pipHash))
	return err
}
