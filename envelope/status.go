// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package envelope

import "fmt"

// Status is the outcome of reading a header.
type Status int

// Header statuses.
const (
	// OK indicates an intact header.
	// If the header was read with ignoreChecksum set,
	// the payload was not verified.
	OK Status = iota
	// TruncatedHeader indicates that the file ends before the header does.
	TruncatedHeader
	// BadName indicates that the file does not start with the envelope's name tag.
	BadName
	// BadVersion indicates a header written for a different format version.
	BadVersion
	// NotFixedUp indicates a placeholder header:
	// the writer did not finish the file.
	NotFixedUp
	// LengthMismatch indicates that the payload size
	// differs from the length recorded in the header.
	LengthMismatch
	// ChecksumMismatch indicates that the payload's checksum
	// differs from the checksum recorded in the header.
	ChecksumMismatch
)

// String returns a short description of the status.
func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case TruncatedHeader:
		return "truncated header"
	case BadName:
		return "bad name tag"
	case BadVersion:
		return "unsupported version"
	case NotFixedUp:
		return "not fixed up"
	case LengthMismatch:
		return "length mismatch"
	case ChecksumMismatch:
		return "checksum mismatch"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is the result of [Envelope.TryReadHeader].
type Result struct {
	// Header is the decoded header.
	// It is the zero value if Status is [TruncatedHeader] or [BadName].
	Header Header
	Status Status
}

// Intact reports whether the header was read successfully.
func (res *Result) Intact() bool {
	return res.Status == OK
}
