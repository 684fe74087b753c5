// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

// Package sideband records and recovers the set of files a build step wrote
// into shared opaque output directories.
//
// Each build step ("pip") gets one sideband log,
// located by [PathFor] from the pip's semi-stable hash.
// A [Writer] appends every distinct path the pip writes,
// and a later build uses [ReadRecordedPaths] or [Scan]
// to find outputs that may be stale.
//
// A sideband log is an [envelope] header followed by a sequence of
// length-prefixed path strings in the order they were first written.
// Every accepted write reaches the operating system before
// [Writer.RecordWrite] returns,
// so a log from a crashed process still contains every path
// that was recorded before the crash.
// Readers tolerate truncated or corrupted logs
// by returning every entry before the damage.
package sideband

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"zb.256lights.llc/sideband/envelope"
)

// Envelope is the header format of sideband logs.
var Envelope = envelope.New("zb-opaque-writes", 1)

// ErrClosed is returned when recording a write with a [Writer] after it has been closed.
var ErrClosed = errors.New("sideband log closed")

// Config is the serializable identity of a [Writer].
// It can be sent to another process
// so that a writer there appends to the same log file.
type Config struct {
	// LogPath is the absolute path of the log file.
	LogPath string
	// RootDirectories limits the writes that are recorded
	// to those lexically inside one of the directories.
	// If RootDirectories is nil, then every write is recorded.
	// A non-nil empty slice records nothing.
	RootDirectories []string
}

// ParseConfig parses a JSON-serialized [Config]
// and checks that its paths are absolute.
func ParseConfig(data []byte) (*Config, error) {
	c := new(Config)
	if err := jsonv2.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse sideband config: %v", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("parse sideband config: %v", err)
	}
	return c, nil
}

func (c *Config) validate() error {
	if !filepath.IsAbs(c.LogPath) {
		return fmt.Errorf("log path %q is not absolute", c.LogPath)
	}
	for _, root := range c.RootDirectories {
		if !filepath.IsAbs(root) {
			return fmt.Errorf("root directory %q is not absolute", root)
		}
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	c2 := &Config{LogPath: c.LogPath}
	if c.RootDirectories != nil {
		c2.RootDirectories = slices.Clone(c.RootDirectories)
	}
	return c2
}

// MarshalJSONTo marshals the configuration as a JSON object.
// A nil RootDirectories is marshaled as null
// so that it survives a round trip distinct from an empty list.
func (c *Config) MarshalJSONTo(out *jsontext.Encoder) error {
	if err := out.WriteToken(jsontext.BeginObject); err != nil {
		return err
	}
	if err := out.WriteToken(jsontext.String("logPath")); err != nil {
		return err
	}
	if err := out.WriteToken(jsontext.String(c.LogPath)); err != nil {
		return err
	}
	if err := out.WriteToken(jsontext.String("rootDirectories")); err != nil {
		return err
	}
	if c.RootDirectories == nil {
		if err := out.WriteToken(jsontext.Null); err != nil {
			return err
		}
	} else {
		if err := out.WriteToken(jsontext.BeginArray); err != nil {
			return err
		}
		for _, root := range c.RootDirectories {
			if err := out.WriteToken(jsontext.String(root)); err != nil {
				return err
			}
		}
		if err := out.WriteToken(jsontext.EndArray); err != nil {
			return err
		}
	}
	return out.WriteToken(jsontext.EndObject)
}

// UnmarshalJSONFrom unmarshals a configuration object,
// replacing any existing fields.
// A missing or null "rootDirectories" member means no filter.
func (c *Config) UnmarshalJSONFrom(in *jsontext.Decoder) error {
	tok, err := in.ReadToken()
	if err != nil {
		return err
	}
	if got := tok.Kind(); got != '{' {
		return fmt.Errorf("sideband config must be an object not a %v", got)
	}

	*c = Config{}
	for {
		keyToken, err := in.ReadToken()
		if err != nil {
			return err
		}
		switch kind := keyToken.Kind(); kind {
		case '}':
			return nil
		case '"':
			// Keep going.
		default:
			return fmt.Errorf("unexpected non-string key (%v) in object", kind)
		}

		switch k := keyToken.String(); k {
		case "logPath":
			if err := jsonv2.UnmarshalDecode(in, &c.LogPath); err != nil {
				return fmt.Errorf("unmarshal logPath: %w", err)
			}
		case "rootDirectories":
			if in.PeekKind() == 'n' {
				if _, err := in.ReadToken(); err != nil {
					return err
				}
				c.RootDirectories = nil
				continue
			}
			var roots []string
			if err := jsonv2.UnmarshalDecode(in, &roots); err != nil {
				return fmt.Errorf("unmarshal rootDirectories: %w", err)
			}
			if roots == nil {
				roots = []string{}
			}
			c.RootDirectories = roots
		default:
			if err := in.SkipValue(); err != nil {
				return err
			}
		}
	}
}

// PathID is a handle to a path interned in a [PathTable].
type PathID uint32

// A PathTable resolves interned path handles
// to absolute paths in the local filesystem.
type PathTable interface {
	ExpandPath(id PathID) (path string, ok bool)
}
