// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package osutil

import (
	"os"

	"golang.org/x/sys/windows"
)

// createShared is like [os.Create], but permits other processes
// to read or delete the file while it is open.
// perm is ignored, as in [os.OpenFile] on Windows.
func createShared(name string, perm os.FileMode) (*os.File, error) {
	return openFile(
		name,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_DELETE,
		windows.CREATE_ALWAYS,
	)
}

func openShared(name string) (*os.File, error) {
	return openFile(
		name,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		windows.OPEN_EXISTING,
	)
}

func openFile(name string, access, share, disposition uint32) (*os.File, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}
	h, err := windows.CreateFile(p, access, share, nil, disposition, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}
	return os.NewFile(uintptr(h), name), nil
}
