// Package features persists the backlog in SQLite and implements the
// priority queue and status tracking operations on top of it.
//
// Every feature carries a priority rank; selection order is the strict total
// order (priority asc, id asc). New features and skipped features are placed
// at MAX(priority)+1, computed inside an IMMEDIATE transaction so concurrent
// writers on the same database serialize on the allocation. Priorities are
// never renumbered: deletes leave gaps and duplicate ranks are tolerated by
// the id tie-break.
//
// Only the status tracker operations (SetPasses) change the passes flag and
// only the queue operations (Create, CreateBulk, Skip) assign priorities.
//
// Schema changes bump schemaVersion in schema.go; the store refuses to open a
// database written with another version.
package features
