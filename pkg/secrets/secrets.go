// Package secrets reads hookcord's credentials from Google Secret Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"

	"github.com/codeGROOVE-dev/hookcord/pkg/logger"
)

// secretManagerTimeout prevents indefinite hangs when accessing secrets.
const secretManagerTimeout = 10 * time.Second

// Manager handles fetching secrets from Google Secret Manager.
type Manager struct {
	client    *secretmanager.Client
	projectID string
}

// New creates a new secrets manager with optional credentials.
// If credentialsPath is empty, it uses Application Default Credentials.
func New(ctx context.Context, projectID, credentialsPath string) (*Manager, error) {
	if projectID == "" {
		return nil, errors.New("secret manager requires a project ID")
	}

	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	return &Manager{client: client, projectID: projectID}, nil
}

// ResourceName returns the resource path of the latest version of a secret.
func ResourceName(projectID, name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, name)
}

// Get returns the latest version of the named secret.
func (m *Manager) Get(ctx context.Context, name string) (string, error) {
	resource := ResourceName(m.projectID, name)

	ctx, cancel := context.WithTimeout(ctx, secretManagerTimeout)
	defer cancel()

	result, err := m.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resource})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", resource, err)
	}

	value := string(result.GetPayload().GetData())
	logger.Info(ctx, "fetched secret from Secret Manager", logger.Fields{
		"secret_name": name,
		"project_id":  m.projectID,
		"has_value":   value != "",
	})
	return value, nil
}

// Close closes the Secret Manager client connection.
func (m *Manager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}
