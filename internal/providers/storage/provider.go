// Package storage is the asset-store collaborator: opaque byte storage for
// uploaded source documents and generated PDFs.
package storage

import (
	"context"
	"errors"
)

// Provider persists a blob and returns an opaque reference that can later be
// resolved back to bytes. References are stable and never reused. Delete is
// idempotent; removing a missing ref is not an error.
type Provider interface {
	Upload(ctx context.Context, key string, content []byte) (string, error)
	Fetch(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}

var ErrNotFound = errors.New("asset_not_found")
