// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package osutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestCreateShared(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "file.txt")
	f, err := CreateShared(path, 0o666)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	const content = "Hello, World!\n"
	if _, err := io.WriteString(f, content); err != nil {
		t.Fatal(err)
	}
	if err := SyncData(f); err != nil {
		t.Error(err)
	}

	// Readers can open the file while the writer holds it.
	r, err := OpenShared(path)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Error(err)
	}
	if string(got) != content {
		t.Errorf("read %q; want %q", got, content)
	}

	// The file can be deleted while handles are outstanding.
	r, err = OpenShared(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := os.Remove(path); err != nil {
		t.Error("remove while open:", err)
	}
}

func TestCreateSharedTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("old content"), 0o666); err != nil {
		t.Fatal(err)
	}
	f, err := CreateShared(path, 0o666)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Error(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("size after CreateShared = %d; want 0", info.Size())
	}
}

func TestOpenSharedNotExist(t *testing.T) {
	_, err := OpenShared(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("OpenShared(missing) error = %v; want %v", err, fs.ErrNotExist)
	}
}
