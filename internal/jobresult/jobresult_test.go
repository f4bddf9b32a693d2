// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package jobresult

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDoc_ToResult_DerivesStatus validates the documented status-derivation
// priority from a raw info-file Doc: error_code present decides
// Success/Failure, its absence with retry_wait_until present means
// RetryWait, and its total absence means Running.
//
// Parameters:
//   - t: testing context.
//
// Returns:
//   - None.
func TestDoc_ToResult_DerivesStatus(t *testing.T) {
	cases := []struct {
		name string
		doc  Doc
		want Status
	}{
		{"success", Doc{"family_name": "f", "job_name": "j", "error_code": int64(0)}, Success},
		{"failure", Doc{"family_name": "f", "job_name": "j", "error_code": int64(1)}, Failure},
		{"retry-wait", Doc{"family_name": "f", "job_name": "j", "retry_wait_until": "2024-03-15T10:00:00Z"}, RetryWait},
		{"running", Doc{"family_name": "f", "job_name": "j"}, Running},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.doc.ToResult()
			if r.Status != tc.want {
				t.Errorf("ToResult().Status = %q, want %q", r.Status, tc.want)
			}
		})
	}
}

// TestResult_Succeeded checks the Succeeded predicate used by Job/External
// dependencies: only error_code == 0 counts.
func TestResult_Succeeded(t *testing.T) {
	zero := 0
	one := 1

	if !(&Result{ErrorCode: &zero}).Succeeded() {
		t.Error("Succeeded() should be true when ErrorCode is 0")
	}
	if (&Result{ErrorCode: &one}).Succeeded() {
		t.Error("Succeeded() should be false for a nonzero ErrorCode")
	}
	if (&Result{}).Succeeded() {
		t.Error("Succeeded() should be false when ErrorCode is nil")
	}
}

// TestDoc_SaveAndLoadRoundTrip checks that an info-file document survives an
// atomic save and reload intact, including an arbitrary audit-trail key.
func TestDoc_SaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "billing.load.default.w-1.20240315.info")

	doc := Doc{
		"family_name":              "billing",
		"job_name":                 "load",
		"error_code":               int64(0),
		"original_error_code_1234": int64(7),
	}
	if err := doc.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	reloaded, err := LoadDoc(path)
	if err != nil {
		t.Fatalf("LoadDoc returned error: %v", err)
	}
	if reloaded.str("family_name") != "billing" {
		t.Errorf("family_name = %q, want billing", reloaded.str("family_name"))
	}
	if got := reloaded.intPtr("original_error_code_1234"); got == nil || *got != 7 {
		t.Error("arbitrary audit-trail key should round-trip untouched")
	}
}

// TestScanLogDir_TolerantOfUnparsableFile checks that a malformed info file
// (mid-write) is skipped instead of aborting the whole directory scan.
func TestScanLogDir_TolerantOfUnparsableFile(t *testing.T) {
	dir := t.TempDir()

	good := Doc{"family_name": "billing", "job_name": "load", "error_code": int64(0)}
	if err := good.Save(filepath.Join(dir, "billing.load.default.w-1.20240315.info")); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "billing.partial.default.w-2.20240315.info"), []byte("not [ valid toml"), 0o644); err != nil {
		t.Fatalf("WriteFile returned error: %v", err)
	}

	flat, world, err := ScanLogDir(dir)
	if err != nil {
		t.Fatalf("ScanLogDir returned error: %v", err)
	}
	if len(flat) != 1 {
		t.Fatalf("len(flat) = %d, want 1 (unparsable file should be skipped)", len(flat))
	}
	if !world.Succeeded("billing", "load") {
		t.Error("World should report billing/load as succeeded")
	}
}

// TestScanLogDir_MissingDirIsEmptyWorld checks that scanning a nonexistent
// log directory returns an empty projection rather than an error, since the
// scheduler must still run on the very first tick before any info file
// exists.
func TestScanLogDir_MissingDirIsEmptyWorld(t *testing.T) {
	flat, world, err := ScanLogDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("ScanLogDir returned error: %v", err)
	}
	if len(flat) != 0 {
		t.Errorf("len(flat) = %d, want 0", len(flat))
	}
	if world.Succeeded("any", "job") {
		t.Error("empty World should report nothing succeeded")
	}
}

// TestHeldAndReleasedJobs checks that marker-file scanning correctly
// distinguishes .hold from .release suffixes and groups by family/job.
func TestHeldAndReleasedJobs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"billing.load.hold", "billing.report.release", "other.job.hold"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte{}, 0o644); err != nil {
			t.Fatalf("WriteFile returned error: %v", err)
		}
	}

	held, err := HeldJobs(dir)
	if err != nil {
		t.Fatalf("HeldJobs returned error: %v", err)
	}
	if !held["billing"]["load"] || !held["other"]["job"] {
		t.Error("HeldJobs should report billing/load and other/job as held")
	}
	if held["billing"]["report"] {
		t.Error("HeldJobs should not report a .release marker as held")
	}

	released, err := ReleasedJobs(dir)
	if err != nil {
		t.Fatalf("ReleasedJobs returned error: %v", err)
	}
	if !released["billing"]["report"] {
		t.Error("ReleasedJobs should report billing/report as released")
	}
}

// TestInfoFilesFor_ExcludesHistoryAndOtherJobs checks that only the live
// info file matches the family/job prefix: rerun's archived -Orig-N files
// and other jobs' files are excluded.
func TestInfoFilesFor_ExcludesHistoryAndOtherJobs(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"billing.load.default.w-1.20240315.info",
		"billing.load-Orig-1.default.w-0.20240314.info",
		"billing.other.default.w-1.20240315.info",
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte{}, 0o644); err != nil {
			t.Fatalf("WriteFile returned error: %v", err)
		}
	}

	found, err := InfoFilesFor(dir, "billing", "load")
	if err != nil {
		t.Fatalf("InfoFilesFor returned error: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("len(found) = %d, want 1 (only the live info file, not the archived one or another job)", len(found))
	}
}
