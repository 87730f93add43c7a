// Package providers defines the cloud provider surface tila consumes.
package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/yairfalse/tila/types"
)

// InstanceAPI is the compute surface consumed by the manager and
// reconciler. Implementations are thin wrappers over the provider's
// instance API and carry no local state.
type InstanceAPI interface {
	// CreateInstance requests creation and returns the provider id.
	CreateInstance(ctx context.Context, spec types.InstanceSpec) (string, error)
	// DescribeState returns the lifecycle state of one instance.
	// A provider-side "not found" reads as terminated.
	DescribeState(ctx context.Context, instanceID string) (types.InstanceStatus, error)
	// DescribeType returns the live instance type, or "" when the
	// instance is gone.
	DescribeType(ctx context.Context, instanceID string) (string, error)
	// Terminate requests termination; terminating an already-terminated
	// instance is not an error.
	Terminate(ctx context.Context, instanceID string) error
	// ListAllIDs returns every live instance id visible to the caller.
	ListAllIDs(ctx context.Context) (map[string]struct{}, error)
}

// ErrNoInstanceID means the provider acknowledged creation without
// returning a usable identifier
var ErrNoInstanceID = errors.New("provider returned no instance id")

// ProviderError wraps a provider rejection with the failing operation
type ProviderError struct {
	Op  string
	ID  string
	Err error
}

func (e *ProviderError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Config holds provider configuration
type Config struct {
	Region string
}

// Factory creates a provider instance
type Factory func(ctx context.Context, cfg Config) (InstanceAPI, error)

// Registry of available providers
var factories = make(map[string]Factory)

// Register registers a new provider factory
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Get creates a provider instance by name
func Get(ctx context.Context, name string, cfg Config) (InstanceAPI, error) {
	factory, exists := factories[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return factory(ctx, cfg)
}

// Names returns available provider names
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
