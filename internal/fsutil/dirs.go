// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package fsutil implements the dated-subdirectory naming, ignore-regex
// filtered file listing, and file-copy helpers the scheduler uses instead of
// a database: every piece of durable state lives under one of the three
// configured directories.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// DatedSubdir returns dir/YYYYMMDD for the given instant.
func DatedSubdir(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%04d%02d%02d", t.Year(), int(t.Month()), t.Day()))
}

// DirExists reports whether dir exists.
func DirExists(dir string) bool {
	_, err := os.Stat(dir)
	return err == nil
}

// MakeDirIfNecessary creates dir (and parents) if it does not already exist.
func MakeDirIfNecessary(dir string) error {
	if DirExists(dir) {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// TextFilesInDir returns the (name, contents) of every regular file in dir
// whose name does not match any of ignoreRegex.
func TextFilesInDir(dir string, ignoreRegex []string) ([]NamedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	compiled := make([]*regexp.Regexp, 0, len(ignoreRegex))
	for _, pattern := range ignoreRegex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}

	var out []NamedFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if matchesAny(e.Name(), compiled) {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, NamedFile{Name: e.Name(), Content: string(content)})
	}
	return out, nil
}

// NamedFile pairs a file's base name with its full text content.
type NamedFile struct {
	Name    string
	Content string
}

func matchesAny(name string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// CopyFilesFromDirToDir copies every regular file in src into dest,
// preserving file names.
func CopyFilesFromDirToDir(src, dest string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, e.Name()), filepath.Join(dest, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// ListFilesInDir returns the sorted base names of every regular file in dir.
func ListFilesInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// AtomicWriteFile writes data to path by writing to a temp file in the same
// directory and renaming over the target, so readers never observe a
// partial write.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
