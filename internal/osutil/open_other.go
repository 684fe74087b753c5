// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

//go:build !unix && !windows

package osutil

import "os"

func createShared(name string, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, perm)
}

func openShared(name string) (*os.File, error) {
	return os.Open(name)
}
