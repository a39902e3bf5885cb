package storage

import (
	"context"

	"github.com/RLabs-Inc/claude-mcp/pkg/types"
)

// Storage defines the interface for persisting the framework registry
type Storage interface {
	// Framework operations
	UpsertFramework(ctx context.Context, fw *types.Framework) error
	GetFramework(ctx context.Context, name string) (*types.Framework, error)
	ListFrameworks(ctx context.Context, filter ListFilter) ([]*types.Framework, error)
	DeleteFramework(ctx context.Context, name string) (bool, error)

	// Database operations
	Close() error
}

// ListFilter narrows ListFrameworks. Zero values match everything.
type ListFilter struct {
	SourceType types.SourceType
}
