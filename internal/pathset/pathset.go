// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package pathset provides a set of filesystem paths compared by identity
// rather than by spelling.
package pathset

import (
	"iter"
	"maps"
	"path/filepath"
	"runtime"
	"strings"
)

// Set is an unordered set of paths with O(1) lookup and insertion.
// Two paths are the same member if they have the same [Key].
// The zero value is an empty set.
type Set struct {
	m map[string]string // key -> first spelling added
}

// Key returns the identity of a path:
// the path is cleaned lexically,
// and on Windows, case differences are ignored.
func Key(path string) string {
	path = filepath.Clean(path)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
	}
	return path
}

// Add adds path to the set
// and reports whether it was not already a member.
func (s *Set) Add(path string) bool {
	k := Key(path)
	if _, present := s.m[k]; present {
		return false
	}
	if s.m == nil {
		s.m = make(map[string]string)
	}
	s.m[k] = path
	return true
}

// Has reports whether the set contains path.
func (s *Set) Has(path string) bool {
	_, present := s.m[Key(path)]
	return present
}

// Len returns the number of paths in the set.
func (s *Set) Len() int {
	return len(s.m)
}

// All returns an iterator of the paths in the set
// as they were spelled when first added.
func (s *Set) All() iter.Seq[string] {
	return maps.Values(s.m)
}

// Clear removes all paths from the set,
// but retains the space allocated for the set.
func (s *Set) Clear() {
	clear(s.m)
}
