package blob

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"sentientplanner.app/planner/common/gcp"
)

type gcsStore struct {
	client    *storage.Client
	bucket    string
	cdnDomain string
}

type GCSConfig struct {
	Bucket    string
	CDNDomain string // optional, public URLs use the bucket endpoint when empty
}

// NewGCSStore creates a Cloud Storage backed ArtifactStore.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (ArtifactStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("artifact bucket is required")
	}

	opts := gcp.ClientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &gcsStore{
		client:    client,
		bucket:    cfg.Bucket,
		cdnDomain: cfg.CDNDomain,
	}, nil
}

func (s *gcsStore) Upload(ctx context.Context, key, content string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	if _, err := io.Copy(w, strings.NewReader(content)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write artifact to bucket: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close bucket writer: %w", err)
	}

	return s.publicURL(key), nil
}

func (s *gcsStore) publicURL(key string) string {
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", strings.TrimSuffix(s.cdnDomain, "/"), key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}
