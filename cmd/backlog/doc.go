// Package main hosts the backlog CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into HTTP calls against
// backlogd, runs progress cycles, and scaffolds configuration. Config
// resolution and client construction live in commandContext so subcommands
// only deal with presentation.
package main
