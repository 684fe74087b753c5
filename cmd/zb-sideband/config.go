// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/tailscale/hujson"
)

type globalConfig struct {
	Debug       bool   `json:"debug"`
	Directory   string `json:"sidebandDirectory"`
	CacheDB     string `json:"cacheDB"`
	Concurrency int    `json:"concurrency"`
}

// defaultGlobalConfig returns the configuration used
// in the absence of configuration files or environment variables.
func defaultGlobalConfig() *globalConfig {
	g := &globalConfig{
		Directory:   filepath.Join(defaultVarDir(), "sideband"),
		Concurrency: 8,
	}
	if cd := cacheDir(); cd != "" {
		g.CacheDB = filepath.Join(cd, "zb", "sideband-cache.db")
	}
	return g
}

func (g *globalConfig) mergeEnvironment() {
	if dir := os.Getenv("ZB_SIDEBAND_DIR"); dir != "" {
		g.Directory = dir
	}
	if path := os.Getenv("ZB_SIDEBAND_CACHE_DB"); path != "" {
		g.CacheDB = path
	}
}

func (g *globalConfig) mergeFiles(paths iter.Seq[string]) error {
	for path := range paths {
		huJSONData, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return err
		}
		jsonData, err := hujson.Standardize(huJSONData)
		if err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
		if err := jsonv2.Unmarshal(jsonData, g, jsonv2.RejectUnknownMembers(false)); err != nil {
			return fmt.Errorf("read %s: %v", path, err)
		}
	}

	return nil
}

// UnmarshalJSONFrom unmarshals the configuration object from the JSON decoder,
// merging any fields in the JSON object with existing values.
func (g *globalConfig) UnmarshalJSONFrom(in *jsontext.Decoder) error {
	tok, err := in.ReadToken()
	if err != nil {
		return err
	}
	if got := tok.Kind(); got != '{' {
		return fmt.Errorf("config must be an object not a %v", got)
	}

	for {
		keyToken, err := in.ReadToken()
		if err != nil {
			return err
		}
		switch kind := keyToken.Kind(); kind {
		case '}':
			return nil
		case '"':
			// Keep going.
		default:
			return fmt.Errorf("unexpected non-string key (%v) in object", kind)
		}

		switch k := keyToken.String(); k {
		case "debug":
			if err := jsonv2.UnmarshalDecode(in, &g.Debug); err != nil {
				return fmt.Errorf("unmarshal config.debug: %w", err)
			}
		case "sidebandDirectory":
			if err := jsonv2.UnmarshalDecode(in, &g.Directory); err != nil {
				return fmt.Errorf("unmarshal config.sidebandDirectory: %w", err)
			}
		case "cacheDB":
			if err := jsonv2.UnmarshalDecode(in, &g.CacheDB); err != nil {
				return fmt.Errorf("unmarshal config.cacheDB: %w", err)
			}
		case "concurrency":
			if err := jsonv2.UnmarshalDecode(in, &g.Concurrency); err != nil {
				return fmt.Errorf("unmarshal config.concurrency: %w", err)
			}
		default:
			if reject, _ := jsonv2.GetOption(in.Options(), jsonv2.RejectUnknownMembers); reject {
				return fmt.Errorf("unmarshal config: unknown field %q", k)
			}
			if err := in.SkipValue(); err != nil {
				return err
			}
		}
	}
}

func (g *globalConfig) validate() error {
	if !filepath.IsAbs(g.Directory) {
		return fmt.Errorf("sideband directory %q is not absolute", g.Directory)
	}
	if g.CacheDB != "" && !filepath.IsAbs(g.CacheDB) {
		return fmt.Errorf("cache database %q is not absolute", g.CacheDB)
	}
	if g.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive (got %d)", g.Concurrency)
	}
	return nil
}
