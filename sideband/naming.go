// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package sideband

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"zombiezen.com/go/nix"
)

// Sideband log file names are FilePrefix, a 16-digit hexadecimal pip hash,
// then FileSuffix.
const (
	FilePrefix = "Pip"
	FileSuffix = ".sideband"
)

// shardLength is the number of leading hash digits
// used to name the subdirectory that holds a log.
const shardLength = 2

// PathFor returns the path of the sideband log for the pip
// with the given semi-stable hash under root.
// The result is the same in every build,
// so a build can find the logs written by the previous one.
func PathFor(root string, pipHash uint64) string {
	hex := fmt.Sprintf("%016X", pipHash)
	return filepath.Join(root, hex[:shardLength], FilePrefix+hex+FileSuffix)
}

// PipHash derives a pip's semi-stable hash
// from a hash of its content-independent identity.
func PipHash(h nix.Hash) uint64 {
	var buf [8]byte
	copy(buf[:], h.Bytes(nil))
	return binary.BigEndian.Uint64(buf[:])
}

// IsLogName reports whether name is the base name of a sideband log.
func IsLogName(name string) bool {
	hex, ok := strings.CutPrefix(name, FilePrefix)
	if !ok {
		return false
	}
	hex, ok = strings.CutSuffix(hex, FileSuffix)
	return ok && len(hex) > 0
}

// FindAll returns the absolute paths of all the sideband logs under root
// in no particular order.
// If root does not exist, FindAll returns an empty list.
func FindAll(root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("find sideband logs: %v", err)
	}
	var result []string
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			// Root is missing or an entry vanished during the walk.
			return nil
		}
		if err != nil {
			return err
		}
		if entry.Type().IsRegular() && IsLogName(entry.Name()) {
			result = append(result, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find sideband logs in %s: %w", root, err)
	}
	return result, nil
}
