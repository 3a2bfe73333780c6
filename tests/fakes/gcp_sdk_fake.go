package fakes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FakeGCPSecretManagerClient is an in-memory Secret Manager client keyed by
// secret resource name ("projects/p/secrets/s").
type FakeGCPSecretManagerClient struct {
	mu sync.Mutex
	// Versions maps secret resource names to payloads, oldest first.
	Versions map[string][][]byte
	// Errors maps secret resource names to errors.
	Errors map[string]error
	// Requests records the resource names passed to the client.
	Requests []string
}

// NewFakeGCPSecretManagerClient creates an empty fake.
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Versions: make(map[string][][]byte),
		Errors:   make(map[string]error),
	}
}

// AddSecretString seeds a secret with one version.
func (f *FakeGCPSecretManagerClient) AddSecretString(projectID, secretName, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("projects/%s/secrets/%s", projectID, secretName)
	f.Versions[key] = append(f.Versions[key], []byte(value))
}

// AddError configures an error for a secret resource name.
func (f *FakeGCPSecretManagerClient) AddError(resourceName string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[resourceName] = err
}

// VersionCount returns how many versions a secret has.
func (f *FakeGCPSecretManagerClient) VersionCount(projectID, secretName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Versions[fmt.Sprintf("projects/%s/secrets/%s", projectID, secretName)])
}

// AccessSecretVersion implements the Secret Manager read. Only "latest" and
// numeric version ids are understood.
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Requests = append(f.Requests, req.GetName())
	secret, version, ok := strings.Cut(req.GetName(), "/versions/")
	if !ok {
		return nil, GCPInvalidArgumentError("malformed version name")
	}
	if err, exists := f.Errors[secret]; exists {
		return nil, err
	}

	versions := f.Versions[secret]
	if len(versions) == 0 {
		return nil, GCPNotFoundError(secret)
	}

	idx := len(versions)
	if version != "latest" {
		if _, err := fmt.Sscanf(version, "%d", &idx); err != nil || idx < 1 || idx > len(versions) {
			return nil, GCPNotFoundError(req.GetName())
		}
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    fmt.Sprintf("%s/versions/%d", secret, idx),
		Payload: &secretmanagerpb.SecretPayload{Data: versions[idx-1]},
	}, nil
}

// AddSecretVersion implements the Secret Manager write.
func (f *FakeGCPSecretManagerClient) AddSecretVersion(_ context.Context, req *secretmanagerpb.AddSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.SecretVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Requests = append(f.Requests, req.GetParent())
	if err, exists := f.Errors[req.GetParent()]; exists {
		return nil, err
	}
	if _, exists := f.Versions[req.GetParent()]; !exists {
		return nil, GCPNotFoundError(req.GetParent())
	}

	f.Versions[req.GetParent()] = append(f.Versions[req.GetParent()], req.GetPayload().GetData())
	return &secretmanagerpb.SecretVersion{
		Name:  fmt.Sprintf("%s/versions/%d", req.GetParent(), len(f.Versions[req.GetParent()])),
		State: secretmanagerpb.SecretVersion_ENABLED,
	}, nil
}

// GCPNotFoundError creates a not found status error.
func GCPNotFoundError(resourceName string) error {
	return status.Errorf(codes.NotFound, "Resource %s not found", resourceName)
}

// GCPPermissionDeniedError creates a permission denied status error.
func GCPPermissionDeniedError(message string) error {
	return status.Error(codes.PermissionDenied, message)
}

// GCPInvalidArgumentError creates an invalid argument status error.
func GCPInvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

// GCPResourceExhaustedError creates a quota status error.
func GCPResourceExhaustedError() error {
	return status.Errorf(codes.ResourceExhausted, "Quota exceeded")
}
