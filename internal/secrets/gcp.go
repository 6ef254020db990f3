package secrets

import (
	"context"
	"encoding/json"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"sentientplanner.app/planner/common/gcp"
)

// GCPProvider fetches the secret bundle from Google Secret Manager.
type GCPProvider struct {
	client *secretmanager.Client
	name   string
}

// NewGCPProvider creates a Secret Manager backed provider. name is the fully
// qualified secret version resource (".../versions/latest" in practice).
func NewGCPProvider(ctx context.Context, name string) (*GCPProvider, error) {
	if name == "" {
		return nil, fmt.Errorf("secret name is required")
	}

	client, err := secretmanager.NewClient(ctx, gcp.ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("creating secret manager client: %w", err)
	}

	return &GCPProvider{client: client, name: name}, nil
}

func (p *GCPProvider) Fetch(ctx context.Context) (Bundle, error) {
	resp, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: p.name,
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("accessing secret version %s: %w", p.name, err)
	}

	var bundle Bundle
	if err := json.Unmarshal(resp.GetPayload().GetData(), &bundle); err != nil {
		return Bundle{}, fmt.Errorf("parsing secret bundle: %w", err)
	}

	if bundle.InferenceAPIKey == "" {
		return Bundle{}, fmt.Errorf("secret bundle missing INFERENCE_API_KEY")
	}
	if bundle.SigningSecret == "" {
		return Bundle{}, fmt.Errorf("secret bundle missing JWT_SECRET")
	}

	return bundle, nil
}

func (p *GCPProvider) Close() error {
	return p.client.Close()
}
