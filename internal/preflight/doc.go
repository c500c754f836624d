// Package preflight provides readiness checks for the filesystem paths,
// database, and notification sinks backlog depends on.
//
// backlogd runs RunAll at startup and logs failures without refusing to
// start; `backlog doctor` prints every result. Sink checks only run for
// sinks that are configured.
package preflight
