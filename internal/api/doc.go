// Package api defines the wire-format types shared by the daemon's HTTP
// server and the CLI client, plus converters between them and the features
// domain types.
//
// # Key Types
//
// Feature: transport representation of a backlog entry.
//
// FeatureCreate/BulkCreateRequest/StatusUpdate: request bodies. Each has an
// embedded JSON Schema checked by Validator before the body is decoded.
//
// FeatureListResponse, StatsResponse, AllPassingResponse, SkipResponse,
// ProgressCheckResponse, HealthResponse: response bodies.
//
// ErrorResponse: the {"detail": "..."} body returned for every failure.
//
// # Design Notes
//
// DTOs use snake_case JSON tags so existing consumers of the backlog API keep
// working. Timestamps use RFC3339 with milliseconds. The domain store remains
// the authority on validation; the schemas only reject malformed input
// early with a clearer message.
package api
