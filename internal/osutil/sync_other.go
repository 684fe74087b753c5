// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

//go:build !linux

package osutil

import "os"

func syncData(f *os.File) error {
	return f.Sync()
}
