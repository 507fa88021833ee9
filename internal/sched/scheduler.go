// Package sched is the boundary to the external batch scheduler: submission,
// queue inspection, and drain waiting.
package sched

import "context"

// JobID is an external scheduler job identifier.
type JobID string

// Scheduler is the narrow contract this engine needs from a batch scheduler.
// Implementations do not retry; failure handling is the coordinator's job.
type Scheduler interface {
	// Submit hands the script to the scheduler, optionally chained behind
	// the given jobs, and returns the new job's id.
	Submit(ctx context.Context, script string, dependsOn []JobID) (JobID, error)

	// IsQueued reports whether the job is still queued or running.
	IsQueued(ctx context.Context, id JobID) (bool, error)

	// QueuedIDs returns the ids of all jobs currently queued by this user.
	QueuedIDs(ctx context.Context) (map[JobID]struct{}, error)
}
