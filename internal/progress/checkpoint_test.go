package progress_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"backlog/internal/progress"
)

func TestFileCheckpointMissing(t *testing.T) {
	cp := progress.NewFileCheckpoint(filepath.Join(t.TempDir(), "demo.progress.json"))
	snap, err := cp.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Kind != progress.SnapshotMissing || snap.Count != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestFileCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.progress.json")
	cp := progress.NewFileCheckpoint(path)
	ctx := context.Background()
	if err := cp.Save(ctx, progress.NewSnapshot(4, []int64{1, 2, 3, 5})); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("checkpoint is not JSON: %v", err)
	}
	if _, ok := doc["passing_ids"]; !ok {
		t.Fatalf("checkpoint missing passing_ids: %s", data)
	}

	snap, err := cp.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Kind != progress.SnapshotFresh || snap.Count != 4 || !slices.Equal(snap.PassingIDs, []int64{1, 2, 3, 5}) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestFileCheckpointFallback(t *testing.T) {
	dir := t.TempDir()
	legacy := filepath.Join(dir, ".progress_cache")
	if err := os.WriteFile(legacy, []byte(`{"count": 3}`), 0o644); err != nil {
		t.Fatalf("write legacy: %v", err)
	}
	primary := filepath.Join(dir, "demo.progress.json")
	cp := progress.NewFileCheckpoint(primary).WithFallback(legacy)
	ctx := context.Background()

	snap, err := cp.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Kind != progress.SnapshotLegacy || snap.Count != 3 {
		t.Fatalf("expected legacy fallback, got %+v", snap)
	}

	if err := cp.Save(ctx, progress.NewSnapshot(4, []int64{9})); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(primary); err != nil {
		t.Fatalf("primary not written: %v", err)
	}
	snap, err = cp.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Kind != progress.SnapshotFresh || snap.Count != 4 {
		t.Fatalf("primary should win after save, got %+v", snap)
	}
}

func TestFileCheckpointCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.progress.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := progress.NewFileCheckpoint(path).Load(context.Background())
	if !errors.Is(err, progress.ErrCorruptSnapshot) {
		t.Fatalf("Load error = %v, want ErrCorruptSnapshot", err)
	}
}
