// Package notifications delivers progress events to external sinks.
//
// Two transports are provided: an n8n-style webhook that receives a JSON
// array holding one event object, and an ntfy topic that receives a plain-text
// summary. NewService combines whichever are configured and degrades to a
// no-op when none are. The Dispatcher hands events to the service on a
// background goroutine with a bounded timeout; delivery failures are logged
// and dropped, never returned to the caller that produced the event.
package notifications
