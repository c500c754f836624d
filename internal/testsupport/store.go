package testsupport

import (
	"context"
	"fmt"
	"testing"

	"backlog/internal/config"
	"backlog/internal/features"
)

// MustOpenStore opens a features.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *features.Store {
	t.Helper()

	store, err := features.Open(cfg)
	if err != nil {
		t.Fatalf("features.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SampleFeature builds a valid NewFeature named after n.
func SampleFeature(n int) features.NewFeature {
	return features.NewFeature{
		Category:    "functional",
		Name:        fmt.Sprintf("feature %d", n),
		Description: fmt.Sprintf("description for feature %d", n),
		Steps:       []string{"open the app", fmt.Sprintf("verify behaviour %d", n)},
	}
}

// NewFeature creates a feature in store and fails the test on error.
func NewFeature(t testing.TB, store *features.Store, n int) *features.Feature {
	t.Helper()

	f, err := store.Create(context.Background(), SampleFeature(n))
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return f
}

// MarkPassing sets passes=true on each id.
func MarkPassing(t testing.TB, store *features.Store, ids ...int64) {
	t.Helper()

	for _, id := range ids {
		if _, err := store.SetPasses(context.Background(), id, true); err != nil {
			t.Fatalf("store.SetPasses(%d): %v", id, err)
		}
	}
}
