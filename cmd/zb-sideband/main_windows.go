// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"iter"
	"os"
)

func cacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return dir
}

// systemConfigDirs yields the machine-wide configuration directory
// followed by the user's configuration directory.
func systemConfigDirs() iter.Seq[string] {
	return func(yield func(string) bool) {
		if dir := os.Getenv("ProgramData"); dir != "" {
			if !yield(dir) {
				return
			}
		}
		if dir, err := os.UserConfigDir(); err == nil {
			yield(dir)
		}
	}
}

// defaultVarDir returns the build state directory
// whose sideband subdirectory holds the logs.
func defaultVarDir() string {
	return `C:\zb\var\zb`
}
