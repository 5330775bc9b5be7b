package secrets

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/require"
)

type fakeAccessor struct {
	values   map[string]string
	requests []string
}

func (f *fakeAccessor) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.requests = append(f.requests, req.Name)
	v, ok := f.values[req.Name]
	if !ok {
		return nil, errors.New("not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(v)},
	}, nil
}

func TestFillKeepsEnvironmentValues(t *testing.T) {
	fake := &fakeAccessor{values: map[string]string{
		"projects/p/secrets/stripe-secret-key/versions/latest": "sk_from_sm",
		"projects/p/secrets/gemini-api-key/versions/latest":    "gm_from_sm",
	}}
	s := &Store{client: fake, projectID: "p"}

	stripeKey := ""
	geminiKey := "from-env"
	require.NoError(t, s.Fill(context.Background(), map[string]*string{
		StripeSecretKey: &stripeKey,
		GeminiAPIKey:    &geminiKey,
	}))
	require.Equal(t, "sk_from_sm", stripeKey)
	require.Equal(t, "from-env", geminiKey)
	require.Len(t, fake.requests, 1)
}

func TestGetMissingSecret(t *testing.T) {
	s := &Store{client: &fakeAccessor{}, projectID: "p"}
	_, err := s.Get(context.Background(), "absent")
	require.ErrorContains(t, err, "absent")
}

func TestNewStoreRequiresProject(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}
