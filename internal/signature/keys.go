package signature

import (
	"context"
	"sync"

	"github.com/covenant-ai/be-contracts/internal/errors"
)

// StaticKeyResolver resolves certificate references from an in-process
// registry. Keys are registered at wiring time; production deployments can
// swap in a resolver backed by a real certificate store.
type StaticKeyResolver struct {
	mu   sync.RWMutex
	keys map[string]any
}

// NewStaticKeyResolver creates an empty resolver.
func NewStaticKeyResolver() *StaticKeyResolver {
	return &StaticKeyResolver{keys: make(map[string]any)}
}

// Register associates a certificate id with a public key.
func (r *StaticKeyResolver) Register(certificateID string, key any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[certificateID] = key
}

// ResolveKey implements KeyResolver.
func (r *StaticKeyResolver) ResolveKey(_ context.Context, certificateID string) (any, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[certificateID]
	if !ok {
		return nil, errors.NotFound("certificate", certificateID)
	}
	return key, nil
}
