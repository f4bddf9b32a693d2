// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package jobresult

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/taskforest/pytf/internal/fsutil"
)

// Doc is a loosely-typed info-file document: known fields are accessed via
// typed getters/setters, but arbitrary keys (the mark operation's
// original_error_code_<timestamp> audit trail) round-trip untouched.
type Doc map[string]interface{}

// LoadDoc reads and parses one info-file TOML document.
func LoadDoc(path string) (Doc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Doc
	if err := toml.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}

// Save atomically overwrites path with d's TOML encoding.
func (d Doc) Save(path string) error {
	raw, err := toml.Marshal(map[string]interface{}(d))
	if err != nil {
		return err
	}
	return fsutil.AtomicWriteFile(path, raw, 0o644)
}

func (d Doc) str(key string) string {
	s, _ := d[key].(string)
	return s
}

func (d Doc) intPtr(key string) *int {
	switch v := d[key].(type) {
	case int64:
		n := int(v)
		return &n
	case int:
		return &v
	default:
		return nil
	}
}

func (d Doc) intOr(key string, def int) int {
	if p := d.intPtr(key); p != nil {
		return *p
	}
	return def
}

// ToResult projects a Doc into a Result, deriving Running/Success/Failure
// from the presence and value of error_code, and RetryWait from
// retry_wait_until with no error_code yet.
func (d Doc) ToResult() *Result {
	r := &Result{
		FamilyName: d.str("family_name"),
		JobName:    d.str("job_name"),
		QueueName:  d.str("queue_name"),
		TZ:         d.str("tz"),
		WorkerName: d.str("worker_name"),
		StartTime:  d.str("start_time"),
		NumRetries: d.intOr("num_retries", 0),
		RetrySleep: d.intOr("retry_sleep", 0),
	}

	if ec := d.intPtr("error_code"); ec != nil {
		r.ErrorCode = ec
		if *ec == 0 {
			r.Status = Success
		} else {
			r.Status = Failure
		}
	} else if _, hasRetryWait := d["retry_wait_until"]; hasRetryWait {
		r.Status = RetryWait
	} else {
		r.Status = Running
	}

	return r
}

// InfoFilename builds the canonical info-file name for a dispatch.
func InfoFilename(family, job, queue, worker, timestamp string) string {
	return fmt.Sprintf("%s.%s.%s.%s.%s.info", family, job, queue, worker, timestamp)
}

// LogFilename builds the canonical per-run log-file name for a dispatch.
func LogFilename(family, job, queue, worker, timestamp string) string {
	return fmt.Sprintf("%s.%s.%s.%s.%s.log", family, job, queue, worker, timestamp)
}

// InfoFilesFor returns every *.info file name in dir whose name starts with
// "family.job." (used by mark, rerun, and the token reconciler to find a
// job's own info files). Rerun's archived "family.job-Orig-N." files do not
// match the prefix and are not returned.
func InfoFilesFor(dir, family, job string) ([]string, error) {
	all, err := fsutil.ListFilesInDir(dir)
	if err != nil {
		return nil, err
	}
	prefix := family + "." + job + "."
	var out []string
	for _, name := range all {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".info") {
			out = append(out, name)
		}
	}
	return out, nil
}

// World is the two-level family -> job -> Result projection built once per
// tick from today's log directory, implementing dependency.World.
type World struct {
	byFamily map[string]map[string]*Result
}

// Succeeded implements dependency.World.
func (w *World) Succeeded(family, job string) bool {
	if w == nil {
		return false
	}
	fam, ok := w.byFamily[family]
	if !ok {
		return false
	}
	r, ok := fam[job]
	return ok && r.Succeeded()
}

// Lookup returns the projected Result for (family, job), if any.
func (w *World) Lookup(family, job string) (*Result, bool) {
	if w == nil {
		return nil, false
	}
	fam, ok := w.byFamily[family]
	if !ok {
		return nil, false
	}
	r, ok := fam[job]
	return r, ok
}

// ScanLogDir reads every *.info file in dir and builds both a flat list (in
// file-sorted order) and the family/job World projection used for
// dependency evaluation.
func ScanLogDir(dir string) ([]*Result, *World, error) {
	names, err := fsutil.ListFilesInDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &World{byFamily: map[string]map[string]*Result{}}, nil
		}
		return nil, nil, err
	}

	w := &World{byFamily: map[string]map[string]*Result{}}
	var flat []*Result

	for _, name := range names {
		if !strings.HasSuffix(name, ".info") {
			continue
		}
		doc, err := LoadDoc(filepath.Join(dir, name))
		if err != nil {
			// A partial/unparsable read means the file is mid-write;
			// tolerate it and pick it up again next tick instead of
			// failing the whole scan.
			continue
		}
		r := doc.ToResult()
		if r.FamilyName == "" || r.JobName == "" {
			continue
		}
		if w.byFamily[r.FamilyName] == nil {
			w.byFamily[r.FamilyName] = map[string]*Result{}
		}
		w.byFamily[r.FamilyName][r.JobName] = r
		flat = append(flat, r)
	}

	return flat, w, nil
}

// HeldJobs and ReleasedJobs scan dir for .hold / .release marker files and
// return family -> job -> true sets.
func HeldJobs(dir string) (map[string]map[string]bool, error) {
	return markerSet(dir, ".hold")
}

func ReleasedJobs(dir string) (map[string]map[string]bool, error) {
	return markerSet(dir, ".release")
}

func markerSet(dir, suffix string) (map[string]map[string]bool, error) {
	names, err := fsutil.ListFilesInDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]map[string]bool{}, nil
		}
		return nil, err
	}
	out := map[string]map[string]bool{}
	for _, name := range names {
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		base := strings.TrimSuffix(name, suffix)
		parts := strings.SplitN(base, ".", 2)
		if len(parts) != 2 {
			continue
		}
		family, job := parts[0], parts[1]
		if out[family] == nil {
			out[family] = map[string]bool{}
		}
		out[family][job] = true
	}
	return out, nil
}
