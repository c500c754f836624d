// Package config loads, normalizes, and validates backlog configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PROGRESS_N8N_WEBHOOK_URL. The Config type centralizes every knob the daemon
// and CLI need, so the database, checkpoint, and lock locations are derived in
// one place.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
