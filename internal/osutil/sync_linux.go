// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package osutil

import (
	"os"

	"golang.org/x/sys/unix"
)

func syncData(f *os.File) error {
	rc, err := f.SyscallConn()
	if err != nil {
		return err
	}
	var syncErr error
	err = rc.Control(func(fd uintptr) {
		for {
			syncErr = unix.Fdatasync(int(fd))
			if syncErr != unix.EINTR {
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return syncErr
}
