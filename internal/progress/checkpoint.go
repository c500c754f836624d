package progress

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"backlog/internal/fileutil"
)

// CheckpointStore persists the progress snapshot.
type CheckpointStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snapshot Snapshot) error
}

// FileCheckpoint keeps the snapshot in a JSON file, replaced atomically on
// every save.
type FileCheckpoint struct {
	path     string
	fallback string
}

// NewFileCheckpoint stores the snapshot at path.
func NewFileCheckpoint(path string) *FileCheckpoint {
	return &FileCheckpoint{path: path}
}

// WithFallback makes Load read path (typically an old .progress_cache file)
// when the primary file does not exist yet. Saves always go to the primary.
func (f *FileCheckpoint) WithFallback(path string) *FileCheckpoint {
	f.fallback = path
	return f
}

// Path returns the primary checkpoint location.
func (f *FileCheckpoint) Path() string {
	return f.path
}

func (f *FileCheckpoint) Load(_ context.Context) (Snapshot, error) {
	for _, path := range []string{f.path, f.fallback} {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("read checkpoint %s: %w", path, err)
		}
		snap, err := DecodeSnapshot(data)
		if err != nil {
			return Snapshot{}, fmt.Errorf("decode checkpoint %s: %w", path, err)
		}
		return snap, nil
	}
	return Snapshot{Kind: SnapshotMissing}, nil
}

func (f *FileCheckpoint) Save(_ context.Context, snapshot Snapshot) error {
	if err := fileutil.WriteJSONAtomic(f.path, snapshot); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", f.path, err)
	}
	return nil
}
