package repository

import "context"

// SnapshotStore persists the serialized session collection as a single blob
// under a fixed namespace key. It is the local-storage analog of the UI: one
// key, one JSON document, best-effort durability.
//
// Load returns (nil, nil) when no snapshot exists.
type SnapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Clear(ctx context.Context) error
	Close()
}
