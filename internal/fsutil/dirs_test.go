// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDatedSubdir_FormatsYYYYMMDD checks the dated-directory naming
// convention every durable-state directory is keyed by.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestDatedSubdir_FormatsYYYYMMDD(t *testing.T) {
	got := DatedSubdir("/var/pytf/log", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))
	want := filepath.Join("/var/pytf/log", "20240305")
	if got != want {
		t.Errorf("DatedSubdir = %q, want %q", got, want)
	}
}

// TestMakeDirIfNecessary_IdempotentOnExistingDir checks that calling it
// twice on the same path does not error.
func TestMakeDirIfNecessary_IdempotentOnExistingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dated")
	if err := MakeDirIfNecessary(dir); err != nil {
		t.Fatalf("first MakeDirIfNecessary returned error: %v", err)
	}
	if !DirExists(dir) {
		t.Fatal("expected dir to exist after MakeDirIfNecessary")
	}
	if err := MakeDirIfNecessary(dir); err != nil {
		t.Errorf("second MakeDirIfNecessary returned error: %v", err)
	}
}

// TestTextFilesInDir_SkipsIgnoredNames checks that files matching any
// ignore_regex pattern are excluded from the result.
func TestTextFilesInDir_SkipsIgnoredNames(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile returned error: %v", err)
		}
	}
	write("billing", "start = \"0000\"\n")
	write("billing~", "stale backup")
	write("notes.bak", "scratch")

	files, err := TextFilesInDir(dir, []string{".*~$", `.*\.bak$`})
	if err != nil {
		t.Fatalf("TextFilesInDir returned error: %v", err)
	}
	if len(files) != 1 || files[0].Name != "billing" {
		t.Errorf("files = %+v, want only billing", files)
	}
}

// TestTextFilesInDir_SkipsSubdirectories checks that nested directories
// are not treated as family files.
func TestTextFilesInDir_SkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "archive"), 0o755); err != nil {
		t.Fatalf("Mkdir returned error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "billing"), []byte("start = \"0000\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}

	files, err := TextFilesInDir(dir, nil)
	if err != nil {
		t.Fatalf("TextFilesInDir returned error: %v", err)
	}
	if len(files) != 1 || files[0].Name != "billing" {
		t.Errorf("files = %+v, want only billing", files)
	}
}

// TestCopyFilesFromDirToDir_PreservesContentAndNames checks the first-of-
// day family snapshot copy the main loop relies on.
func TestCopyFilesFromDirToDir_PreservesContentAndNames(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "billing"), []byte("start = \"0000\"\nJ1()\n"), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}

	if err := CopyFilesFromDirToDir(src, dest); err != nil {
		t.Fatalf("CopyFilesFromDirToDir returned error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "billing"))
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	if string(got) != "start = \"0000\"\nJ1()\n" {
		t.Errorf("copied content = %q, want original content preserved", got)
	}
}

// TestListFilesInDir_SortedAndRegularOnly checks that ListFilesInDir
// returns only regular files, sorted by name.
func TestListFilesInDir_SortedAndRegularOnly(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.info", "a.info"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile returned error: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("Mkdir returned error: %v", err)
	}

	names, err := ListFilesInDir(dir)
	if err != nil {
		t.Fatalf("ListFilesInDir returned error: %v", err)
	}
	want := []string{"a.info", "b.info"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("names = %v, want %v", names, want)
	}
}

// TestAtomicWriteFile_ReplacesExistingContent checks that AtomicWriteFile
// overwrites a pre-existing file in full rather than appending.
func TestAtomicWriteFile_ReplacesExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token_usage.toml")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}

	if err := AtomicWriteFile(path, []byte("fresh"), 0o644); err != nil {
		t.Fatalf("AtomicWriteFile returned error: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}
	if string(got) != "fresh" {
		t.Errorf("content = %q, want %q", got, "fresh")
	}
}
