// Package blob stores rendered artifacts in object storage.
package blob

import (
	"context"
	"fmt"
	"time"
)

// ArtifactStore persists one artifact and returns its public URL.
type ArtifactStore interface {
	Upload(ctx context.Context, key, content string) (string, error)
}

// ObjectKey builds the storage key for an artifact. Keys shard by user and
// day so listings stay cheap as volume grows.
func ObjectKey(userID, recordID string, createdAt time.Time) string {
	return fmt.Sprintf("artifacts/%s/%s/%s.txt",
		userID,
		createdAt.UTC().Format("2006/01/02"),
		recordID)
}
