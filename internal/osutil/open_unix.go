// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

//go:build unix

package osutil

import (
	"os"

	"golang.org/x/sys/unix"
)

func createShared(name string, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC|unix.O_NOFOLLOW, perm)
}

func openShared(name string) (*os.File, error) {
	return os.Open(name)
}
