// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package sideband

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"unicode/utf8"

	"zb.256lights.llc/sideband/envelope"
	"zb.256lights.llc/sideband/internal/osutil"
	"zombiezen.com/go/log"
)

// maxEntryLength is the largest path accepted in a log.
// Longer lengths are treated as corruption.
const maxEntryLength = 64 << 10

// A Reader reads a sideband log.
// A Reader is not safe to use from multiple goroutines concurrently,
// except that [Reader.Close] may be called at any time
// to interrupt a [Reader.ReadAll] in progress.
type Reader struct {
	path     string
	f        *os.File
	header   *envelope.Result
	consumed bool
	err      error
	buf      []byte
}

// Open opens the sideband log at the given path for reading.
// If the file does not exist, the returned error satisfies
// errors.Is(err, fs.ErrNotExist).
// The log may be opened while a [Writer] still has it open,
// and it may be deleted while the Reader is open.
func Open(path string) (*Reader, error) {
	f, err := osutil.OpenShared(path)
	if err != nil {
		return nil, fmt.Errorf("open sideband log: %w", err)
	}
	return &Reader{path: path, f: f}, nil
}

// Close releases the file handle.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	if errors.Is(err, os.ErrClosed) {
		// Already closed, possibly from another goroutine.
		return nil
	}
	return err
}

// ReadHeader reads the log's header
// and reports whether it is intact.
// If ignoreChecksum is false, then ReadHeader also reads the whole payload
// to verify its length and checksum.
// A compromised header does not prevent calling [Reader.ReadAll]:
// the entries recovered from a compromised log are still useful,
// but the caller should not assume they are complete.
func (r *Reader) ReadHeader(ignoreChecksum bool) (bool, error) {
	res, err := Envelope.TryReadHeader(r.f, ignoreChecksum)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", r.path, err)
	}
	r.header = res
	return res.Intact(), nil
}

// Header returns the result of the most recent call to [Reader.ReadHeader]
// or nil if ReadHeader has not been called.
func (r *Reader) Header() *envelope.Result {
	return r.header
}

// ReadAll returns an iterator over the paths in the log in the order they were written.
// The iterator stops at the end of the log
// or at the first entry that is truncated or malformed;
// the damaged entry and anything following it are ignored.
// Afterward, [Reader.Err] reports any I/O error that stopped the iteration.
//
// The log can only be iterated once:
// subsequent iterations yield nothing.
// If [Reader.ReadHeader] has not been called,
// the iterator skips over the header without checking it.
func (r *Reader) ReadAll() iter.Seq[string] {
	return func(yield func(string) bool) {
		if r.consumed {
			return
		}
		r.consumed = true
		if r.header == nil {
			if _, err := r.f.Seek(Envelope.HeaderSize(), io.SeekStart); err != nil {
				r.err = fmt.Errorf("read %s: %w", r.path, err)
				return
			}
		}
		br := bufio.NewReader(r.f)
		for {
			path, ok := r.next(br)
			if !ok || !yield(path) {
				return
			}
		}
	}
}

// Err returns the I/O error that stopped the last [Reader.ReadAll], if any.
// Reaching the end of the file or a damaged entry is not an error.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) next(br *bufio.Reader) (string, bool) {
	r.buf = slices.Grow(r.buf[:0], 8)[:8]
	if _, err := io.ReadFull(br, r.buf); err != nil {
		r.fail(err)
		return "", false
	}
	n := binary.LittleEndian.Uint64(r.buf)
	if n == 0 || n > maxEntryLength {
		return "", false
	}
	size := padEntrySize(int(n))
	r.buf = slices.Grow(r.buf[:0], size)[:size]
	if _, err := io.ReadFull(br, r.buf); err != nil {
		r.fail(err)
		return "", false
	}
	for _, b := range r.buf[n:] {
		if b != 0 {
			return "", false
		}
	}
	p := r.buf[:n]
	if !utf8.Valid(p) {
		return "", false
	}
	path := string(p)
	if !filepath.IsAbs(path) {
		return "", false
	}
	return path, true
}

func (r *Reader) fail(err error) {
	if err != io.EOF && err != io.ErrUnexpectedEOF {
		r.err = fmt.Errorf("read %s: %w", r.path, err)
	}
}

// ReadRecordedPaths returns the paths recorded in the sideband log at the given path.
// If the log does not exist, ReadRecordedPaths returns no paths and no error:
// a pip that never wrote to its shared opaque directories has no log.
// The header's checksum is not verified,
// and as many entries as can be recovered from a damaged log are returned.
func ReadRecordedPaths(ctx context.Context, path string) ([]string, error) {
	r, err := Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Debugf(ctx, "No sideband log at %s", path)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()

	intact, err := r.ReadHeader(true)
	if err != nil {
		return nil, err
	}
	paths := slices.Collect(r.ReadAll())
	if err := r.Err(); err != nil {
		return nil, err
	}
	if !intact {
		log.Warnf(ctx, "Sideband log %s is compromised (%v). Recovered %d paths.",
			path, r.Header().Status, len(paths))
	}
	return paths, nil
}
