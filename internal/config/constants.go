package config

import "time"

const (
	// Model cache duration
	ModelCacheDuration = 1 * time.Hour

	// Snapshot namespace key in the blob store
	SnapshotNamespace = "sillogic.sessions"

	// Snapshot schema version
	SnapshotVersion = 1
)
