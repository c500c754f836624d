// Package progress turns successive reads of the passing-feature set into
// deduplicated progress notifications.
//
// Each Engine.Run compares the current passing set against a persisted
// Snapshot (the checkpoint), commits the new checkpoint, and only then hands
// the resulting event to a notifier. A checkpoint write failure aborts the
// cycle before anything is sent; a delivery failure is never retried. Missed
// notifications are therefore possible, duplicates are not (for a single
// caller).
//
// Snapshots written before per-feature ids were tracked carry only a count.
// They decode as SnapshotLegacy, and the next increase is reported as an
// aggregate without naming individual features.
package progress
