// Copyright 2024 Seakee.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package jobresult

// Result is the projection record joining a job's identity with its
// observed outcome for today, either read verbatim from an info file or
// synthesized from dependency evaluation and marker files.
type Result struct {
	FamilyName string   `json:"family_name"`
	JobName    string   `json:"job_name"`
	Status     Status   `json:"status"`
	QueueName  string   `json:"queue_name"`
	TZ         string   `json:"tz"`
	WorkerName string   `json:"worker_name"`
	StartTime  string   `json:"start_time"`
	ErrorCode  *int     `json:"error_code"`
	Tokens     []string `json:"tokens"`
	NumRetries int      `json:"num_retries"`
	RetrySleep int      `json:"retry_sleep"`
}

// Succeeded reports whether this result represents a terminal success
// (error_code == 0), the predicate used by JobDependency/ExternalDependency.
func (r *Result) Succeeded() bool {
	return r.ErrorCode != nil && *r.ErrorCode == 0
}
