// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"zb.256lights.llc/sideband/internal/pathset"
)

// pipHashFlag is a [pflag.Value] for a 64-bit pip hash
// written in hexadecimal.
type pipHashFlag struct {
	hash uint64
	set  bool
}

var _ pflag.Value = (*pipHashFlag)(nil)

func (f *pipHashFlag) Type() string { return "hex" }
func (f *pipHashFlag) Get() any     { return f.hash }

func (f *pipHashFlag) String() string {
	if !f.set {
		return ""
	}
	return fmt.Sprintf("%016X", f.hash)
}

func (f *pipHashFlag) Set(s string) error {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	h, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return fmt.Errorf("invalid pip hash: %v", err)
	}
	f.hash = h
	f.set = true
	return nil
}

// absPathListFlag is similar to [pflag.StringArray],
// but converts its arguments to absolute paths
// and ignores duplicate entries while preserving order.
type absPathListFlag struct {
	list []string
	seen pathset.Set
}

var _ pflag.SliceValue = (*absPathListFlag)(nil)

func (f *absPathListFlag) Type() string       { return "stringArray" }
func (f *absPathListFlag) Get() any           { return f.list }
func (f *absPathListFlag) GetSlice() []string { return f.list }

func (f *absPathListFlag) String() string {
	buf := new(bytes.Buffer)
	buf.WriteString("[")
	w := csv.NewWriter(buf)
	_ = w.Write(f.list)
	w.Flush()
	b := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	b = append(b, "]"...)
	return string(b)
}

func (f *absPathListFlag) Set(s string) error {
	return f.Append(s)
}

func (f *absPathListFlag) Append(s string) error {
	path, err := filepath.Abs(s)
	if err != nil {
		return err
	}
	if f.seen.Add(path) {
		f.list = append(f.list, path)
	}
	return nil
}

func (f *absPathListFlag) Replace(val []string) error {
	f.list = nil
	f.seen.Clear()
	for _, s := range val {
		if err := f.Append(s); err != nil {
			return err
		}
	}
	return nil
}
