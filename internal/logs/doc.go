// Package logs tails the backlogd log file for `backlog logs`.
//
// Reads are bounded: a negative offset returns the last N lines, a
// non-negative offset returns everything appended since. Follow mode waits on
// fsnotify write events (with a slow poll as backstop) until new lines arrive,
// the wait elapses, or the context ends.
package logs
