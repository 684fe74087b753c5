// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package sideband

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"zb.256lights.llc/sideband/internal/osutil"
	"zb.256lights.llc/sideband/internal/pathset"
)

type writerState int8

const (
	notCreated writerState = iota
	created
	failed
	closed
)

// A Writer appends the paths written by one pip to its sideband log.
//
// The log file is created lazily:
// a Writer that never accepts a write (and whose [Writer.EnsureCreated]
// is never called) never touches the filesystem, not even in [Writer.Close].
// This lets a pip's log be owned by whichever of several Writers
// for the same path actually observes writes,
// for example the host process or a sandboxed executor.
//
// A Writer is not safe to use from multiple goroutines concurrently.
type Writer struct {
	logPath  string
	roots    []string // nil means no filter
	recorded pathset.Set

	state writerState
	f     *os.File
	id    uuid.UUID
	end   int64 // offset just past the last complete entry
	err   error // set when state == failed
	buf   []byte
}

// NewWriter returns a new [Writer] for the given configuration.
// NewWriter does not access the filesystem.
// The caller is responsible for calling [Writer.Close].
func NewWriter(cfg *Config) *Writer {
	w := &Writer{logPath: cfg.LogPath}
	if cfg.RootDirectories != nil {
		w.roots = make([]string, 0, len(cfg.RootDirectories))
		for _, root := range cfg.RootDirectories {
			w.roots = append(w.roots, filepath.Clean(root))
		}
	}
	return w
}

// Config returns the writer's configuration.
// Passing the configuration to [NewWriter] in another process
// produces a writer for the same log.
func (w *Writer) Config() *Config {
	c := &Config{LogPath: w.logPath, RootDirectories: w.roots}
	return c.Clone()
}

// IsCreated reports whether this writer has created its log file.
func (w *Writer) IsCreated() bool {
	return w.state == created || w.state == failed || w.state == closed && w.id != uuid.Nil
}

// EnsureCreated creates the log file and writes its header
// if the writer has not done so already.
// A log created this way is finalized by [Writer.Close]
// even if no writes are recorded.
func (w *Writer) EnsureCreated() error {
	if err := w.create(); err != nil {
		return fmt.Errorf("create sideband log %s: %w", w.logPath, err)
	}
	return nil
}

func (w *Writer) create() error {
	switch w.state {
	case created:
		return nil
	case failed:
		return w.err
	case closed:
		return ErrClosed
	}
	if !filepath.IsAbs(w.logPath) {
		return fmt.Errorf("log path is not absolute")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	f, err := osutil.CreateShared(w.logPath, 0o666)
	if err != nil {
		return err
	}
	if err := Envelope.WriteHeader(f, id); err != nil {
		f.Close()
		os.Remove(w.logPath)
		return err
	}
	w.f = f
	w.id = id
	w.end = Envelope.HeaderSize()
	w.state = created
	return nil
}

// RecordWrite records that the pip wrote to the file at the given absolute path.
// It reports whether the path was appended to the log:
// false means the path is outside the writer's root directories
// or was already recorded by this writer.
// The log file is created on the first accepted path.
//
// If RecordWrite returns true, then the path is in the log file
// by the time RecordWrite returns.
// If the path could not be written, RecordWrite returns an error
// and the path is not considered recorded.
// Any partial entry is removed from the log
// so that later paths remain readable.
// If the partial entry cannot be removed,
// the writer stops accepting paths
// and every later call to RecordWrite returns an error.
//
// Paths must be valid UTF-8.
func (w *Writer) RecordWrite(path string) (bool, error) {
	switch w.state {
	case closed:
		return false, fmt.Errorf("record write %s: %w", path, ErrClosed)
	case failed:
		return false, fmt.Errorf("record write %s: %w", path, w.err)
	}
	if !filepath.IsAbs(path) {
		return false, fmt.Errorf("record write %s: not an absolute path", path)
	}
	path = filepath.Clean(path)
	if !w.inRoots(path) || w.recorded.Has(path) {
		return false, nil
	}
	if !utf8.ValidString(path) {
		return false, fmt.Errorf("record write %q: path is not valid UTF-8", path)
	}
	if len(path) > maxEntryLength {
		return false, fmt.Errorf("record write %s: path too long (%d bytes)", path, len(path))
	}
	if err := w.create(); err != nil {
		return false, fmt.Errorf("record write %s: create %s: %w", path, w.logPath, err)
	}
	w.buf = appendEntry(w.buf[:0], path)
	if _, err := w.f.Write(w.buf); err != nil {
		if rollbackErr := w.rollback(); rollbackErr != nil {
			w.state = failed
			w.err = fmt.Errorf("sideband log %s unusable after failed write: %v", w.logPath, rollbackErr)
		}
		return false, fmt.Errorf("record write %s: %w", path, err)
	}
	w.end += int64(len(w.buf))
	w.recorded.Add(path)
	return true, nil
}

// rollback removes any bytes written after the last complete entry.
func (w *Writer) rollback() error {
	if err := w.f.Truncate(w.end); err != nil {
		return err
	}
	if _, err := w.f.Seek(w.end, io.SeekStart); err != nil {
		return err
	}
	return nil
}

// RecordPathID is like [Writer.RecordWrite],
// but takes a path interned in table.
func (w *Writer) RecordPathID(table PathTable, id PathID) (bool, error) {
	path, ok := table.ExpandPath(id)
	if !ok {
		return false, fmt.Errorf("record write: unknown path ID %d", id)
	}
	return w.RecordWrite(path)
}

// inRoots reports whether the cleaned path is lexically inside
// (or equal to) one of the writer's root directories.
func (w *Writer) inRoots(path string) bool {
	if w.roots == nil {
		return true
	}
	for _, root := range w.roots {
		if isWithin(root, path) {
			return true
		}
	}
	return false
}

func isWithin(root, path string) bool {
	root, path = pathset.Key(root), pathset.Key(path)
	if !strings.HasPrefix(path, root) {
		return false
	}
	if len(path) == len(root) || strings.HasSuffix(root, string(filepath.Separator)) {
		return true
	}
	return path[len(root)] == filepath.Separator
}

// Close finalizes the log's header and releases the file handle
// if this writer created the log.
// If this writer never created the log,
// Close does nothing to the filesystem:
// another writer for the same path may own the file.
// Calling Close more than once is a no-op.
func (w *Writer) Close() error {
	switch w.state {
	case closed:
		return nil
	case notCreated:
		w.state = closed
		return nil
	case failed:
		// Leave the header unfinished so readers treat the log as incomplete.
		w.state = closed
		f := w.f
		w.f = nil
		f.Close()
		return fmt.Errorf("close sideband log %s: %w", w.logPath, w.err)
	}
	w.state = closed
	f := w.f
	w.f = nil
	_, err := Envelope.FixUpHeader(f, w.id)
	if err == nil {
		err = osutil.SyncData(f)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("close sideband log %s: %w", w.logPath, err)
	}
	return nil
}

const entryAlign = 8

// appendEntry appends a path to dst in the log's entry format:
// an unsigned 64-bit little endian length,
// the path's bytes,
// and zero padding to 8-byte alignment.
func appendEntry(dst []byte, path string) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(len(path)))
	dst = append(dst, path...)
	if off := len(path) % entryAlign; off != 0 {
		for range entryAlign - off {
			dst = append(dst, 0)
		}
	}
	return dst
}

// padEntrySize returns the smallest integer >= n
// that is evenly divisible by [entryAlign].
func padEntrySize(n int) int {
	return (n + entryAlign - 1) &^ (entryAlign - 1)
}
