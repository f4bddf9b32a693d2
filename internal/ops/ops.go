// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package ops implements the operator actions: mark, hold, release, and
// rerun. Each is a pure file operation against today's log directory; none
// of them evaluate dependencies or touch the scheduling engine directly.
package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/taskforest/pytf/internal/clock"
	"github.com/taskforest/pytf/internal/config"
	"github.com/taskforest/pytf/internal/jobresult"
	"github.com/taskforest/pytf/internal/parseerr"
)

// singleInfoFile locates the one non-Orig info file for (family, job) in
// today's log directory.
func singleInfoFile(cfg *config.Config, family, job string) (string, error) {
	files, err := jobresult.InfoFilesFor(cfg.TodaysLogDir, family, job)
	if err != nil {
		return "", err
	}
	var current []string
	for _, f := range files {
		if strings.Contains(f, "-Orig-") {
			continue
		}
		current = append(current, f)
	}
	if len(current) != 1 {
		return "", parseerr.New(parseerr.MsgCantFindSingleJobInfoFile, fmt.Sprintf("%s.%s", family, job))
	}
	return filepath.Join(cfg.TodaysLogDir, current[0]), nil
}

// Mark sets a job's error_code to newCode, preserving the previous value
// (if any) under a timestamped original_error_code_<YYYYMMDD_HHMMSS> key.
func Mark(cfg *config.Config, family, job string, newCode int, clk clock.Clock) error {
	path, err := singleInfoFile(cfg, family, job)
	if err != nil {
		return err
	}
	doc, err := jobresult.LoadDoc(path)
	if err != nil {
		return err
	}

	now, err := clk.Now(cfg.PrimaryTZ)
	if err != nil {
		return err
	}
	if existing, ok := doc["error_code"]; ok {
		key := fmt.Sprintf("original_error_code_%s", now.Format("20060102_150405"))
		doc[key] = existing
	}
	doc["error_code"] = newCode

	return doc.Save(path)
}

// Hold creates a .hold marker for (family, job), removing any .release
// marker. Idempotent.
func Hold(cfg *config.Config, family, job string) error {
	return writeMarker(cfg, family, job, ".hold", ".release")
}

// RemoveHold (a.k.a. release_dependencies) creates a .release marker for
// (family, job), removing any .hold marker. Idempotent.
func RemoveHold(cfg *config.Config, family, job string) error {
	return writeMarker(cfg, family, job, ".release", ".hold")
}

func writeMarker(cfg *config.Config, family, job, create, remove string) error {
	base := family + "." + job
	removePath := filepath.Join(cfg.TodaysLogDir, base+remove)
	if err := os.Remove(removePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	createPath := filepath.Join(cfg.TodaysLogDir, base+create)
	f, err := os.Create(createPath)
	if err != nil {
		return err
	}
	return f.Close()
}

// Rerun renames a job's completed info file to a -Orig-N history slot and
// releases its dependencies so it runs again on the next tick. Does nothing
// if the job's current info file has no error_code (still running).
func Rerun(cfg *config.Config, family, job string) error {
	path, err := singleInfoFile(cfg, family, job)
	if err != nil {
		return err
	}
	doc, err := jobresult.LoadDoc(path)
	if err != nil {
		return err
	}
	if _, hasErrorCode := doc["error_code"]; !hasErrorCode {
		return nil // cannot rerun a live job
	}

	n, err := nextOrigSuffix(cfg, family, job)
	if err != nil {
		return err
	}

	origJobName := fmt.Sprintf("%s-Orig-%d", job, n)
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	newBase := strings.Replace(base, family+"."+job+".", family+"."+origJobName+".", 1)
	newPath := filepath.Join(dir, newBase)

	doc["job_name"] = origJobName
	if err := doc.Save(newPath); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return err
	}

	return RemoveHold(cfg, family, job)
}

// nextOrigSuffix scans existing <family>.<job>-Orig-N.*.info files and
// returns one greater than the maximum N found (1 if none exist).
func nextOrigSuffix(cfg *config.Config, family, job string) (int, error) {
	files, err := filesInDir(cfg.TodaysLogDir)
	if err != nil {
		return 0, err
	}

	prefix := family + "." + job + "-Orig-"
	max := 0
	for _, f := range files {
		if !strings.HasPrefix(f, prefix) {
			continue
		}
		rest := strings.TrimPrefix(f, prefix)
		idx := strings.IndexByte(rest, '.')
		if idx < 0 {
			continue
		}
		n, err := strconv.Atoi(rest[:idx])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

func filesInDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
