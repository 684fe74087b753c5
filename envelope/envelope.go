// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package envelope provides a fixed-size integrity header
// for append-only files whose payload is not known up front.
//
// A header is written in two phases.
// [Envelope.WriteHeader] writes a placeholder when the file is created,
// and [Envelope.FixUpHeader] rewrites it in place
// once every payload byte has been written,
// recording the payload's length and xxHash64 checksum.
// A file whose header was never fixed up
// (for example, because the writing process crashed)
// can still be read, but [Envelope.TryReadHeader] reports it as compromised.
package envelope

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// notFixedUp is the length stored in a placeholder header.
const notFixedUp = math.MaxUint64

const (
	stringAlign   = 8
	maxNameLength = 256
)

var (
	// ErrIDMismatch is returned by [Envelope.FixUpHeader]
	// when the header on disk was written with a different identity.
	ErrIDMismatch = errors.New("envelope identity mismatch")
	// ErrNotFixable is returned by [Envelope.FixUpHeader]
	// when the stream does not start with a header for the envelope.
	ErrNotFixable = errors.New("header cannot be fixed up")
)

// An Envelope describes the header format for one kind of file.
// Envelopes are immutable and safe to use from multiple goroutines.
type Envelope struct {
	name    string
	version uint64
}

// New returns a new [Envelope] with the given name tag and format version.
// New panics if name is empty or longer than 256 bytes.
func New(name string, version uint64) *Envelope {
	if name == "" || len(name) > maxNameLength {
		panic("envelope.New: invalid name")
	}
	return &Envelope{name: name, version: version}
}

// Name returns the name tag written at the start of every header.
func (e *Envelope) Name() string {
	return e.name
}

// Version returns the format version written in every header.
func (e *Envelope) Version() uint64 {
	return e.version
}

// HeaderSize returns the size of the header in bytes.
// The payload always starts at this offset.
func (e *Envelope) HeaderSize() int64 {
	return e.checksumOffset() + 16
}

func (e *Envelope) versionOffset() int64 {
	return 8 + int64(padStringSize(len(e.name)))
}

func (e *Envelope) checksumOffset() int64 {
	return e.versionOffset() + 8 + int64(len(uuid.UUID{}))
}

// Header is the decoded form of an envelope header.
type Header struct {
	Name    string
	Version uint64
	// ID identifies the file the header was written for.
	// Writers generate a new ID every time they create a file.
	ID uuid.UUID
	// Checksum is the xxHash64 of the payload.
	// It is only meaningful if IsFixedUp reports true.
	Checksum uint64
	// Length is the size of the payload in bytes.
	Length uint64
}

// IsFixedUp reports whether h is a final header
// rather than the placeholder written at creation.
func (h *Header) IsFixedUp() bool {
	return h.Length != notFixedUp
}

func (e *Envelope) appendHeader(dst []byte, h *Header) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, uint64(len(e.name)))
	dst = append(dst, e.name...)
	for range padStringSize(len(e.name)) - len(e.name) {
		dst = append(dst, 0)
	}
	dst = binary.LittleEndian.AppendUint64(dst, h.Version)
	dst = append(dst, h.ID[:]...)
	dst = binary.LittleEndian.AppendUint64(dst, h.Checksum)
	dst = binary.LittleEndian.AppendUint64(dst, h.Length)
	return dst
}

// parseHeader decodes a buffer of exactly e.HeaderSize() bytes.
func (e *Envelope) parseHeader(buf []byte) (Header, Status) {
	if n := binary.LittleEndian.Uint64(buf); n != uint64(len(e.name)) {
		return Header{}, BadName
	}
	nameEnd := 8 + len(e.name)
	if string(buf[8:nameEnd]) != e.name {
		return Header{}, BadName
	}
	versionOffset := e.versionOffset()
	for _, b := range buf[nameEnd:versionOffset] {
		if b != 0 {
			return Header{}, BadName
		}
	}

	h := Header{
		Name:    e.name,
		Version: binary.LittleEndian.Uint64(buf[versionOffset:]),
	}
	copy(h.ID[:], buf[versionOffset+8:])
	checksumOffset := e.checksumOffset()
	h.Checksum = binary.LittleEndian.Uint64(buf[checksumOffset:])
	h.Length = binary.LittleEndian.Uint64(buf[checksumOffset+8:])
	switch {
	case h.Version != e.version:
		return h, BadVersion
	case !h.IsFixedUp():
		return h, NotFixedUp
	default:
		return h, OK
	}
}

// WriteHeader writes a placeholder header tagged with id to w.
// w should be positioned at the start of an empty file.
func (e *Envelope) WriteHeader(w io.Writer, id uuid.UUID) error {
	buf := e.appendHeader(make([]byte, 0, e.HeaderSize()), &Header{
		Version:  e.version,
		ID:       id,
		Checksum: 0,
		Length:   notFixedUp,
	})
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write %s header: %w", e.name, err)
	}
	return nil
}

// FixUpHeader computes the checksum and length of the payload in f
// and rewrites the header at the start of f to record them.
// The header on disk must have been written by [Envelope.WriteHeader]
// with the same id.
// All payload bytes must have been written to f before calling FixUpHeader.
// On success, f is positioned at its end
// and FixUpHeader returns the header that was written.
func (e *Envelope) FixUpHeader(f io.ReadWriteSeeker, id uuid.UUID) (*Header, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("fix up %s header: %w", e.name, err)
	}
	buf := make([]byte, e.HeaderSize())
	if _, err := io.ReadFull(f, buf); err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("fix up %s header: %w (file too short)", e.name, ErrNotFixable)
	} else if err != nil {
		return nil, fmt.Errorf("fix up %s header: %w", e.name, err)
	}
	h, status := e.parseHeader(buf)
	switch status {
	case OK, NotFixedUp:
	default:
		return nil, fmt.Errorf("fix up %s header: %w (%v)", e.name, ErrNotFixable, status)
	}
	if h.ID != id {
		return nil, fmt.Errorf("fix up %s header: %w (found %v, want %v)", e.name, ErrIDMismatch, h.ID, id)
	}

	checksum, length, err := digest(f)
	if err != nil {
		return nil, fmt.Errorf("fix up %s header: %w", e.name, err)
	}
	h.Checksum, h.Length = checksum, length
	buf = binary.LittleEndian.AppendUint64(buf[:0], h.Checksum)
	buf = binary.LittleEndian.AppendUint64(buf, h.Length)
	if _, err := f.Seek(e.checksumOffset(), io.SeekStart); err != nil {
		return nil, fmt.Errorf("fix up %s header: %w", e.name, err)
	}
	if _, err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("fix up %s header: %w", e.name, err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("fix up %s header: %w", e.name, err)
	}
	return &h, nil
}

// TryReadHeader reads the header at the start of r.
// A header that is malformed, from another version, not yet fixed up,
// or that does not match the payload
// is reported through the returned [Result]'s Status.
// TryReadHeader only returns an error if reading from r fails.
//
// If ignoreChecksum is false and the header has been fixed up,
// then TryReadHeader reads the rest of r
// to verify the payload length and checksum.
//
// If r is at least [Envelope.HeaderSize] bytes long,
// TryReadHeader leaves r positioned at the start of the payload
// regardless of the result,
// so that callers can attempt to recover data from a compromised file.
func (e *Envelope) TryReadHeader(r io.ReadSeeker, ignoreChecksum bool) (*Result, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("read %s header: %w", e.name, err)
	}
	buf := make([]byte, e.HeaderSize())
	if _, err := io.ReadFull(r, buf); err == io.EOF || err == io.ErrUnexpectedEOF {
		return &Result{Status: TruncatedHeader}, nil
	} else if err != nil {
		return nil, fmt.Errorf("read %s header: %w", e.name, err)
	}
	res := new(Result)
	res.Header, res.Status = e.parseHeader(buf)
	if res.Status != OK || ignoreChecksum {
		return res, nil
	}

	checksum, n, err := digest(r)
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", e.name, err)
	}
	if _, err := r.Seek(e.HeaderSize(), io.SeekStart); err != nil {
		return nil, fmt.Errorf("read %s header: %w", e.name, err)
	}
	switch {
	case n != res.Header.Length:
		res.Status = LengthMismatch
	case checksum != res.Header.Checksum:
		res.Status = ChecksumMismatch
	}
	return res, nil
}

// digest returns the xxHash64 and byte count of the rest of r.
func digest(r io.Reader) (checksum uint64, n uint64, err error) {
	d := xxhash.New()
	nn, err := io.Copy(d, r)
	if err != nil {
		return 0, 0, err
	}
	return d.Sum64(), uint64(nn), nil
}

// padStringSize returns the smallest integer >= n
// that is evenly divisible by [stringAlign].
func padStringSize(n int) int {
	return (n + stringAlign - 1) &^ (stringAlign - 1)
}
