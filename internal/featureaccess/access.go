// Package featureaccess gives read-only commands a backlog view whether or not
// backlogd is running: the HTTP API when it answers, the SQLite file
// otherwise. Mutations always go through the daemon.
package featureaccess

import (
	"context"

	"backlog/internal/client"
	"backlog/internal/features"
)

// Reader provides read-only backlog operations. *client.Client and
// *features.Store both satisfy it.
type Reader interface {
	Stats(ctx context.Context) (features.Stats, error)
	PassingSet(ctx context.Context) ([]features.PassingFeature, error)
	List(ctx context.Context, q features.ListQuery) (features.ListPage, error)
	Next(ctx context.Context) (*features.Feature, error)
	Get(ctx context.Context, id int64) (*features.Feature, error)
}

var (
	_ Reader = (*client.Client)(nil)
	_ Reader = (*features.Store)(nil)
)

// Backend names where a Session reads from.
type Backend string

const (
	BackendAPI   Backend = "api"
	BackendStore Backend = "store"
)
