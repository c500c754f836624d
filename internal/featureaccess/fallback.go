package featureaccess

import (
	"context"
	"fmt"

	"backlog/internal/client"
	"backlog/internal/features"
)

// Session is a Reader plus its cleanup function.
type Session struct {
	Reader  Reader
	Backend Backend
	close   func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback uses the daemon API when its health check answers and
// falls back to opening the store directly otherwise.
func OpenWithFallback(
	ctx context.Context,
	dial func() (*client.Client, error),
	openStore func() (*features.Store, error),
) (Session, error) {
	if dial != nil {
		if cl, err := dial(); err == nil {
			if _, err := cl.Health(ctx); err == nil {
				return Session{Reader: cl, Backend: BackendAPI}, nil
			} else if !client.IsAPIUnavailable(err) {
				return Session{}, err
			}
		}
	}

	if openStore == nil {
		return Session{}, fmt.Errorf("open feature store: no store opener configured")
	}
	store, err := openStore()
	if err != nil {
		return Session{}, fmt.Errorf("open feature store: %w", err)
	}
	return Session{
		Reader:  store,
		Backend: BackendStore,
		close:   store.Close,
	}, nil
}
