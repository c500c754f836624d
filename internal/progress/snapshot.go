package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// SnapshotKind tags how much a checkpoint knows about past progress.
type SnapshotKind int

const (
	// SnapshotMissing means no checkpoint has been written yet. It behaves
	// as count 0 with no passing ids.
	SnapshotMissing SnapshotKind = iota
	// SnapshotFresh carries the ids that were passing at the last commit.
	SnapshotFresh
	// SnapshotLegacy carries a positive count but no ids.
	SnapshotLegacy
)

func (k SnapshotKind) String() string {
	switch k {
	case SnapshotMissing:
		return "missing"
	case SnapshotFresh:
		return "fresh"
	case SnapshotLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("SnapshotKind(%d)", int(k))
	}
}

// ErrCorruptSnapshot marks a checkpoint document that could not be decoded.
var ErrCorruptSnapshot = errors.New("corrupt progress snapshot")

// Snapshot is the persisted progress checkpoint.
type Snapshot struct {
	Kind       SnapshotKind
	Count      int
	PassingIDs []int64
}

// NewSnapshot builds the checkpoint committed after a cycle.
func NewSnapshot(count int, ids []int64) Snapshot {
	return Snapshot{Kind: SnapshotFresh, Count: count, PassingIDs: slices.Clone(ids)}
}

type snapshotDoc struct {
	Count      int      `json:"count"`
	PassingIDs []*int64 `json:"passing_ids"`
}

// DecodeSnapshot parses a checkpoint document. The kind is fixed here: a
// positive count with no ids (key absent, null or empty) is Legacy,
// everything else is Fresh.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}
	if doc.Count < 0 {
		return Snapshot{}, fmt.Errorf("%w: negative count %d", ErrCorruptSnapshot, doc.Count)
	}
	ids := make([]int64, 0, len(doc.PassingIDs))
	for _, id := range doc.PassingIDs {
		if id != nil {
			ids = append(ids, *id)
		}
	}
	kind := SnapshotFresh
	if len(ids) == 0 && doc.Count > 0 {
		kind = SnapshotLegacy
	}
	return Snapshot{Kind: kind, Count: doc.Count, PassingIDs: ids}, nil
}

// MarshalJSON writes the on-disk form {"count": n, "passing_ids": [...]}.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	ids := s.PassingIDs
	if ids == nil {
		ids = []int64{}
	}
	return json.Marshal(struct {
		Count      int     `json:"count"`
		PassingIDs []int64 `json:"passing_ids"`
	}{s.Count, ids})
}

// newIDs returns the ids in current that the snapshot has not seen, in the
// order of current. Legacy snapshots cannot name new ids and return nil.
func (s Snapshot) newIDs(current []int64) []int64 {
	if s.Kind == SnapshotLegacy {
		return nil
	}
	seen := make(map[int64]struct{}, len(s.PassingIDs))
	for _, id := range s.PassingIDs {
		seen[id] = struct{}{}
	}
	var out []int64
	for _, id := range current {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
