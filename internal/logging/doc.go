// Package logging assembles structured slog loggers for the backlog daemon and
// CLI.
//
// It owns the console and JSON handlers, level and output plumbing, a tee
// handler used to mirror console output into a JSON log file, and
// context-aware helpers so request handlers automatically tag log lines with
// correlation ids and feature ids. A no-op logger is provided for tests and
// wiring code that cannot fail.
package logging
