// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := AtomicWriteFile(path, []byte("key = 1\n"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "key = 1\n" {
		t.Errorf("content = %q", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestAtomicWriteFile_CreatesParentAndOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "conv.json")

	if err := AtomicWriteFile(path, []byte("first"), 0644); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("second"), 0644); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("content = %q, want %q", data, "second")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, temp files leaked", len(entries))
	}
}

// =============================================================================
// TEXT TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 6, "hello…"},
		{"你好世界欢迎", 3, "你好…"},
		{"abc", 1, "…"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateRunes(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestTruncateWidth(t *testing.T) {
	if got := TruncateWidth("hello", 10); got != "hello" {
		t.Errorf("short string changed: %q", got)
	}
	got := TruncateWidth("你好世界", 5)
	if w := StringWidth(got); w > 5 {
		t.Errorf("TruncateWidth width = %d, want <= 5 (%q)", w, got)
	}
	if TruncateWidth("abc", 0) != "" {
		t.Error("zero width should return empty string")
	}
}

func TestStringWidthAndPad(t *testing.T) {
	if w := StringWidth("猫a"); w != 3 {
		t.Errorf("StringWidth = %d, want 3", w)
	}
	if got := PadWidth("猫", 4); got != "猫  " {
		t.Errorf("PadWidth = %q", got)
	}
}

func TestOneLine(t *testing.T) {
	if got := OneLine("  a\n\tb   c \r\n"); got != "a b c" {
		t.Errorf("OneLine = %q", got)
	}
}
