// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package jobresult implements the JobResult projection record and its
// round-trip to/from the TOML info files that are the scheduler's
// authoritative per-run state.
package jobresult

// Status is the job status enum. String values are exactly what is
// serialised into the status JSON and used throughout the CLI/API.
type Status string

const (
	Waiting   Status = "Waiting"
	Ready     Status = "Ready"
	Released  Status = "Released"
	TokenWait Status = "Token Wait"
	Running   Status = "Running"
	Success   Status = "Success"
	Failure   Status = "Failure"
	Hold      Status = "On Hold"
	RetryWait Status = "Retry Wait"
)
