// Copyright 2024 The zb Authors
// SPDX-License-Identifier: MIT

// Package osutil provides convenience functions for working with the local filesystem.
//
// Files opened through this package can be read by other processes
// and deleted while a handle is still outstanding, on every platform.
package osutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// CreateShared creates or truncates the named file for reading and writing,
// creating its parent directories as needed.
// Other processes may open the file for reading or delete it
// while the returned handle is open,
// but may not open it for writing.
// CreateShared does not follow a symbolic link in the final path component
// on platforms that support it.
func CreateShared(name string, perm os.FileMode) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(name), 0o777); err != nil {
		return nil, err
	}
	return createShared(name, perm)
}

// OpenShared opens the named file for reading.
// Unlike [os.Open], the file may be deleted or written by other processes
// while the returned handle is open, on every platform.
func OpenShared(name string) (*os.File, error) {
	return openShared(name)
}

// SyncData commits the file's data to stable storage.
// On platforms that support it,
// metadata that is not needed to read the data back is not flushed.
func SyncData(f *os.File) error {
	if err := syncData(f); err != nil {
		return fmt.Errorf("sync %s: %w", f.Name(), err)
	}
	return nil
}
