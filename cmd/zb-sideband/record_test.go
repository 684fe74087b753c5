// Copyright 2026 The zb Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/google/go-cmp/cmp"
	"zb.256lights.llc/sideband/internal/testcontext"
	"zb.256lights.llc/sideband/sideband"
	"zombiezen.com/go/log/testlog"
)

func TestMain(m *testing.M) {
	testlog.Main(nil)
	os.Exit(m.Run())
}

func TestRecordFromConfig(t *testing.T) {
	ctx := testcontext.New(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	cfg := &sideband.Config{
		LogPath:         sideband.PathFor(filepath.Join(dir, "sideband"), 0x1234),
		RootDirectories: []string{out},
	}
	cfgJSON, err := jsonv2.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "writer.json")
	if err := os.WriteFile(configPath, cfgJSON, 0o666); err != nil {
		t.Fatal(err)
	}

	opts := &recordOptions{
		configPath: configPath,
		paths: []string{
			filepath.Join(out, "a"),
			filepath.Join(dir, "elsewhere"),
			filepath.Join(out, "b"),
			filepath.Join(out, "a"),
		},
	}
	if err := runRecord(ctx, opts); err != nil {
		t.Fatal(err)
	}

	got, err := sideband.ReadRecordedPaths(ctx, cfg.LogPath)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(out, "a"), filepath.Join(out, "b")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("recorded paths (-want +got):\n%s", diff)
	}

	buf := new(bytes.Buffer)
	if err := runDump(ctx, buf, cfg.LogPath); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "Status:   ok\n") {
		t.Errorf("dump output does not start with OK status:\n%s", buf)
	}
	for _, path := range want {
		if !strings.Contains(buf.String(), "\n"+path+"\n") {
			t.Errorf("dump output does not include %s:\n%s", path, buf)
		}
	}
}

func TestRecordNothing(t *testing.T) {
	ctx := testcontext.New(t)
	logPath := filepath.Join(t.TempDir(), "log.sideband")

	opts := &recordOptions{logPath: logPath}
	if err := runRecord(ctx, opts); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Lstat(logPath); !os.IsNotExist(err) {
		t.Errorf("log exists after recording nothing (Lstat error = %v)", err)
	}

	opts.ensureCreated = true
	if err := runRecord(ctx, opts); err != nil {
		t.Fatal(err)
	}
	r, err := sideband.Open(logPath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if intact, err := r.ReadHeader(false); !intact || err != nil {
		t.Errorf("ReadHeader(false) = %t, %v; want true, <nil>", intact, err)
	}
}
