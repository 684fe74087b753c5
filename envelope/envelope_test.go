// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package envelope

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"zb.256lights.llc/sideband/internal/bytewriter"
)

var testEnvelope = New("zb-test-envelope!", 3)

var testID = uuid.MustParse("2b0a3a58-0b1d-4d63-8f4e-5c0f3f8a9e11")

func TestHeaderSize(t *testing.T) {
	tests := []struct {
		name string
		want int64
	}{
		{"a", 8 + 8 + 8 + 16 + 8 + 8},
		{"12345678", 8 + 8 + 8 + 16 + 8 + 8},
		{"123456789", 8 + 16 + 8 + 16 + 8 + 8},
	}
	for _, test := range tests {
		e := New(test.name, 1)
		if got := e.HeaderSize(); got != test.want {
			t.Errorf("New(%q, 1).HeaderSize() = %d; want %d", test.name, got, test.want)
		}
		buf := new(bytes.Buffer)
		if err := e.WriteHeader(buf, testID); err != nil {
			t.Error(err)
			continue
		}
		if got := int64(buf.Len()); got != test.want {
			t.Errorf("New(%q, 1).WriteHeader(...) wrote %d bytes; want %d", test.name, got, test.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	const payload = "Hello, World!\n"
	f := bytewriter.New(nil)
	if err := testEnvelope.WriteHeader(f, testID); err != nil {
		t.Fatal(err)
	}

	// Before fix-up, the header is readable but compromised.
	res, err := testEnvelope.TryReadHeader(f, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != NotFixedUp {
		t.Errorf("before fix-up, status = %v; want %v", res.Status, NotFixedUp)
	}

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(f, payload); err != nil {
		t.Fatal(err)
	}
	h, err := testEnvelope.FixUpHeader(f, testID)
	if err != nil {
		t.Fatal("FixUpHeader:", err)
	}
	want := &Header{
		Name:     testEnvelope.Name(),
		Version:  testEnvelope.Version(),
		ID:       testID,
		Checksum: xxhash.Sum64String(payload),
		Length:   uint64(len(payload)),
	}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("FixUpHeader(...) (-want +got):\n%s", diff)
	}
	if pos, _ := f.Seek(0, io.SeekCurrent); pos != f.Size() {
		t.Errorf("after FixUpHeader, position = %d; want %d (end of file)", pos, f.Size())
	}

	for _, ignoreChecksum := range []bool{false, true} {
		res, err := testEnvelope.TryReadHeader(f, ignoreChecksum)
		if err != nil {
			t.Errorf("TryReadHeader(f, %t): %v", ignoreChecksum, err)
			continue
		}
		if diff := cmp.Diff(&Result{Header: *want, Status: OK}, res); diff != "" {
			t.Errorf("TryReadHeader(f, %t) (-want +got):\n%s", ignoreChecksum, diff)
		}
		rest, err := io.ReadAll(f)
		if err != nil {
			t.Error(err)
		}
		if string(rest) != payload {
			t.Errorf("after TryReadHeader(f, %t), remaining = %q; want %q", ignoreChecksum, rest, payload)
		}
	}
}

func TestTryReadHeader(t *testing.T) {
	const payload = "some payload bytes"
	valid := func(t *testing.T) []byte {
		f := bytewriter.New(nil)
		if err := testEnvelope.WriteHeader(f, testID); err != nil {
			t.Fatal(err)
		}
		if _, err := io.WriteString(f, payload); err != nil {
			t.Fatal(err)
		}
		if _, err := testEnvelope.FixUpHeader(f, testID); err != nil {
			t.Fatal(err)
		}
		return f.Bytes()
	}

	tests := []struct {
		name           string
		modify         func(b []byte) []byte
		ignoreChecksum bool
		want           Status
	}{
		{
			name:   "Intact",
			modify: func(b []byte) []byte { return b },
			want:   OK,
		},
		{
			name:   "Empty",
			modify: func(b []byte) []byte { return nil },
			want:   TruncatedHeader,
		},
		{
			name:   "ShortHeader",
			modify: func(b []byte) []byte { return b[:testEnvelope.HeaderSize()-1] },
			want:   TruncatedHeader,
		},
		{
			name: "WrongName",
			modify: func(b []byte) []byte {
				b[8] = 'Z'
				return b
			},
			want: BadName,
		},
		{
			name: "WrongNameLength",
			modify: func(b []byte) []byte {
				b[0]++
				return b
			},
			want: BadName,
		},
		{
			name: "NonZeroPadding",
			modify: func(b []byte) []byte {
				b[8+len(testEnvelope.Name())] = 1
				return b
			},
			want: BadName,
		},
		{
			name: "WrongVersion",
			modify: func(b []byte) []byte {
				b[testEnvelope.versionOffset()]++
				return b
			},
			want: BadVersion,
		},
		{
			name: "PayloadFlipped",
			modify: func(b []byte) []byte {
				b[len(b)-1] ^= 0xff
				return b
			},
			want: ChecksumMismatch,
		},
		{
			name: "PayloadFlippedIgnoreChecksum",
			modify: func(b []byte) []byte {
				b[len(b)-1] ^= 0xff
				return b
			},
			ignoreChecksum: true,
			want:           OK,
		},
		{
			name:   "PayloadTruncated",
			modify: func(b []byte) []byte { return b[:len(b)-1] },
			want:   LengthMismatch,
		},
		{
			name:   "PayloadExtended",
			modify: func(b []byte) []byte { return append(b, "more"...) },
			want:   LengthMismatch,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b := test.modify(valid(t))
			res, err := testEnvelope.TryReadHeader(bytewriter.New(b), test.ignoreChecksum)
			if err != nil {
				t.Fatal(err)
			}
			if res.Status != test.want {
				t.Errorf("status = %v; want %v", res.Status, test.want)
			}
			if got, want := res.Intact(), test.want == OK; got != want {
				t.Errorf("Intact() = %t; want %t", got, want)
			}
		})
	}
}

func TestFixUpHeaderErrors(t *testing.T) {
	t.Run("WrongID", func(t *testing.T) {
		f := bytewriter.New(nil)
		if err := testEnvelope.WriteHeader(f, testID); err != nil {
			t.Fatal(err)
		}
		before := bytes.Clone(f.Bytes())
		_, err := testEnvelope.FixUpHeader(f, uuid.Nil)
		if !errors.Is(err, ErrIDMismatch) {
			t.Errorf("FixUpHeader(f, uuid.Nil) = _, %v; want %v", err, ErrIDMismatch)
		}
		if !bytes.Equal(f.Bytes(), before) {
			t.Error("FixUpHeader with wrong ID modified the file")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := testEnvelope.FixUpHeader(bytewriter.New(nil), testID)
		if !errors.Is(err, ErrNotFixable) {
			t.Errorf("FixUpHeader(empty, testID) = _, %v; want %v", err, ErrNotFixable)
		}
	})

	t.Run("OtherEnvelope", func(t *testing.T) {
		f := bytewriter.New(nil)
		if err := New("some-other-envelope", 3).WriteHeader(f, testID); err != nil {
			t.Fatal(err)
		}
		_, err := testEnvelope.FixUpHeader(f, testID)
		if !errors.Is(err, ErrNotFixable) {
			t.Errorf("FixUpHeader(...) = _, %v; want %v", err, ErrNotFixable)
		}
	})
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := testEnvelope.WriteHeader(f, testID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("abc"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("def"); err != nil {
		t.Fatal(err)
	}
	if _, err := testEnvelope.FixUpHeader(f, testID); err != nil {
		t.Fatal(err)
	}
	// Appending after fix-up must go to the end of the file.
	if _, err := f.WriteString("ghi"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data[testEnvelope.HeaderSize():]), "abcdefghi"; got != want {
		t.Errorf("payload = %q; want %q", got, want)
	}

	res, err := testEnvelope.TryReadHeader(f, false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != LengthMismatch {
		t.Errorf("status after write past fix-up = %v; want %v", res.Status, LengthMismatch)
	}
}
