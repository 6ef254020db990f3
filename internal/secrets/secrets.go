// Package secrets resolves the process-wide secret bundle: the inference API
// key and the JWT signing secret. The bundle is fetched once per process
// lifetime and never refreshed; rotating a secret requires a restart.
package secrets

import (
	"context"
	"fmt"
	"sync"
)

// Bundle holds the sensitive configuration shared by all components.
type Bundle struct {
	InferenceAPIKey string `json:"INFERENCE_API_KEY"`
	SigningSecret   string `json:"JWT_SECRET"`
}

type Provider interface {
	Fetch(ctx context.Context) (Bundle, error)
}

// Cached wraps a Provider and memoizes the first successful fetch for the
// life of the process. Failed fetches are not cached, so a transient secrets
// outage at startup does not poison the process forever.
type Cached struct {
	provider Provider

	mu     sync.Mutex
	loaded bool
	bundle Bundle
}

func NewCached(provider Provider) *Cached {
	return &Cached{provider: provider}
}

func (c *Cached) Fetch(ctx context.Context) (Bundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.bundle, nil
	}

	bundle, err := c.provider.Fetch(ctx)
	if err != nil {
		return Bundle{}, fmt.Errorf("fetching secret bundle: %w", err)
	}

	c.bundle = bundle
	c.loaded = true
	return c.bundle, nil
}
