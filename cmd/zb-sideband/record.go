// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/spf13/cobra"
	"zb.256lights.llc/sideband/sideband"
	"zombiezen.com/go/log"
)

type recordOptions struct {
	configPath    string
	logPath       string
	roots         absPathListFlag
	ensureCreated bool
	printConfig   bool
	paths         []string
}

func newRecordCommand(g *globalConfig) *cobra.Command {
	c := &cobra.Command{
		Use:                   "record (--config FILE | --log FILE [--root DIR [...]]) [options] [PATH [...]]",
		Short:                 "record writes to a sideband log",
		DisableFlagsInUseLine: true,
		Args:                  cobra.ArbitraryArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
	}
	opts := new(recordOptions)
	c.Flags().StringVar(&opts.configPath, "config", "", "read the writer configuration as JSON from `file` (- for stdin)")
	c.Flags().StringVar(&opts.logPath, "log", "", "`path` of the sideband log")
	c.Flags().Var(&opts.roots, "root", "only record paths inside `dir` (can be passed multiple times)")
	c.Flags().BoolVar(&opts.ensureCreated, "ensure-created", false, "create the log even if no paths are recorded")
	c.Flags().BoolVar(&opts.printConfig, "print-config", false, "print the writer configuration as JSON")
	c.MarkFlagsMutuallyExclusive("config", "log")
	c.MarkFlagsMutuallyExclusive("config", "root")
	c.MarkFlagsOneRequired("config", "log")
	c.RunE = func(cmd *cobra.Command, args []string) error {
		opts.paths = args
		return runRecord(cmd.Context(), opts)
	}
	return c
}

func runRecord(ctx context.Context, opts *recordOptions) (err error) {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	if opts.printConfig {
		data, err := jsonv2.Marshal(cfg)
		if err != nil {
			return err
		}
		data = append(data, '\n')
		if _, err := os.Stdout.Write(data); err != nil {
			return err
		}
	}

	w := sideband.NewWriter(cfg)
	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			if err == nil {
				err = closeErr
			} else {
				log.Errorf(ctx, "%v", closeErr)
			}
		}
	}()
	if opts.ensureCreated {
		if err := w.EnsureCreated(); err != nil {
			return err
		}
	}
	for _, arg := range opts.paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := filepath.Abs(arg)
		if err != nil {
			return err
		}
		added, err := w.RecordWrite(path)
		if err != nil {
			return err
		}
		if added {
			fmt.Println(path)
		} else {
			log.Debugf(ctx, "Skipped %s", path)
		}
	}
	return nil
}

func (opts *recordOptions) config() (*sideband.Config, error) {
	if opts.configPath == "" {
		logPath, err := filepath.Abs(opts.logPath)
		if err != nil {
			return nil, err
		}
		cfg := &sideband.Config{LogPath: logPath}
		if len(opts.roots.list) > 0 {
			cfg.RootDirectories = opts.roots.GetSlice()
		}
		return cfg, nil
	}

	var data []byte
	var err error
	if opts.configPath == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(opts.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read writer configuration: %v", err)
	}
	return sideband.ParseConfig(data)
}
