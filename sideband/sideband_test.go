// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package sideband

import (
	"path/filepath"
	"testing"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
)

func TestConfigJSON(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.sideband")
	root := filepath.Join(dir, "out")

	tests := []struct {
		name string
		cfg  *Config
	}{
		{
			name: "NoFilter",
			cfg:  &Config{LogPath: logPath},
		},
		{
			name: "EmptyFilter",
			cfg:  &Config{LogPath: logPath, RootDirectories: []string{}},
		},
		{
			name: "Roots",
			cfg:  &Config{LogPath: logPath, RootDirectories: []string{root, dir}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data, err := jsonv2.Marshal(test.cfg)
			if err != nil {
				t.Fatal(err)
			}
			got, err := ParseConfig(data)
			if err != nil {
				t.Fatalf("ParseConfig(%s): %v", data, err)
			}
			// cmp.Diff treats nil and empty slices as different.
			if diff := cmp.Diff(test.cfg, got); diff != "" {
				t.Errorf("ParseConfig(%s) (-want +got):\n%s", data, diff)
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.sideband")
	logPathJSON, err := jsonv2.Marshal(logPath)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("MissingRoots", func(t *testing.T) {
		data := `{"logPath": ` + string(logPathJSON) + `, "extra": [1, 2]}`
		got, err := ParseConfig([]byte(data))
		if err != nil {
			t.Fatal(err)
		}
		want := &Config{LogPath: logPath}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ParseConfig(%s) (-want +got):\n%s", data, diff)
		}
	})

	bad := []string{
		``,
		`[]`,
		`{}`,
		`{"logPath": "relative.sideband"}`,
		`{"logPath": ` + string(logPathJSON) + `, "rootDirectories": ["relative"]}`,
		`{"logPath": ` + string(logPathJSON) + `, "rootDirectories": "/foo"}`,
		`{"logPath": 42}`,
	}
	for _, data := range bad {
		if got, err := ParseConfig([]byte(data)); err == nil {
			t.Errorf("ParseConfig(%q) = %+v, <nil>; want error", data, got)
		}
	}
}

func TestConfigClone(t *testing.T) {
	c := &Config{
		LogPath:         "/log",
		RootDirectories: []string{"/a", "/b"},
	}
	c2 := c.Clone()
	if diff := cmp.Diff(c, c2); diff != "" {
		t.Errorf("Clone() (-want +got):\n%s", diff)
	}
	c2.RootDirectories[0] = "/z"
	if c.RootDirectories[0] != "/a" {
		t.Errorf("modifying clone changed original RootDirectories[0] to %q", c.RootDirectories[0])
	}
	if got := (&Config{RootDirectories: []string{}}).Clone().RootDirectories; got == nil {
		t.Error("Clone() of empty RootDirectories = nil")
	}
}
