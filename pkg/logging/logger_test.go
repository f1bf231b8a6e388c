// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			if got := tt.level.toSlogLevel(); got != tt.want {
				t.Errorf("Level.toSlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{" warn ", LevelWarn},
		{"warning", LevelWarn},
		{"Error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLevel("verbose"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("ParseLevel(verbose) error = %v, want ErrUnknownLevel", err)
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_TextFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: LevelWarn, Writer: &buf, Service: "revdep"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer logger.Close()

	logger.Slog().Info("hidden")
	logger.Slog().Warn("cache degraded", slog.String("root", "/p"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record written at warn level: %s", out)
	}
	for _, want := range []string{"cache degraded", "root=/p", "service=revdep"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: LevelDebug, Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Slog().Debug("parsed", slog.Int("files", 3))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if rec["msg"] != "parsed" || rec["files"] != float64(3) {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, err := New(Config{Format: "xml"}); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("New(xml) error = %v, want ErrUnknownFormat", err)
	}
}

func TestNew_File(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "serve.log")

	logger, err := New(Config{Level: LevelInfo, File: path, Writer: &console})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Slog().Info("server started", slog.String("addr", "127.0.0.1:7331"))
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"addr":"127.0.0.1:7331"`) {
		t.Errorf("log file missing record: %s", data)
	}
	if !strings.Contains(console.String(), "server started") {
		t.Errorf("console missing record: %s", console.String())
	}
}

func TestNew_QuietWithFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "revdep.log")

	logger, err := New(Config{File: path, Writer: &console, Quiet: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Slog().Info("only in file")
	_ = logger.Close()

	if console.Len() != 0 {
		t.Errorf("quiet logger wrote to console: %s", console.String())
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "only in file") {
		t.Errorf("log file missing record: %s", data)
	}
}

func TestNew_FileError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Config{File: filepath.Join(blocker, "x.log")}); err == nil {
		t.Error("New() with a file as log directory should fail")
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("dropped")
	if logger.Enabled(t.Context(), slog.LevelError) {
		t.Error("Discard logger should be disabled at every level")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/logs/a.log"); got != filepath.Join(home, "logs/a.log") {
		t.Errorf("expandPath(~/logs/a.log) = %q", got)
	}
	if got := expandPath("/var/log/a.log"); got != "/var/log/a.log" {
		t.Errorf("expandPath(/var/log/a.log) = %q", got)
	}
	if got := expandPath("~user/a.log"); got != "~user/a.log" {
		t.Errorf("expandPath(~user/a.log) = %q", got)
	}
}
