// Package operations runs upload batches in the background and keeps their
// users informed.
//
// JobQueue executes queued tasks on a bounded set of workers, recording each
// job's lifecycle in a JobStore. StatusBroadcaster keeps the latest snapshot
// of every upload and pushes it to the user who started it. ProgressNotifier
// is the pipeline's progress sink: it hands notifications to the broadcaster
// through a bounded buffer and drops them rather than slow a batch down.
package operations
