// Package secrets pulls provider credentials from Google Secret Manager.
package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
)

// Well-known secret names.
const (
	StripeSecretKey     = "stripe-secret-key"
	StripeWebhookSecret = "stripe-webhook-secret"
	GeminiAPIKey        = "gemini-api-key"
	UploadCallbackKey   = "upload-callback-secret"
)

type accessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// Store reads the latest version of named secrets in one project.
type Store struct {
	client    accessor
	closer    func() error
	projectID string
}

func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("secrets project ID is not set")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &Store{client: client, closer: client.Close, projectID: projectID}, nil
}

// Get returns the latest version of secret name.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, name)
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", name, err)
	}
	return string(result.Payload.Data), nil
}

// Fill replaces each target that is still empty with the secret it maps to.
// Values already set in the environment win.
func (s *Store) Fill(ctx context.Context, targets map[string]*string) error {
	for name, dst := range targets {
		if *dst != "" {
			continue
		}
		v, err := s.Get(ctx, name)
		if err != nil {
			return err
		}
		*dst = v
	}
	return nil
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
