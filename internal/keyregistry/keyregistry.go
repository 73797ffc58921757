// Package keyregistry keeps an in-memory, unwrapped view of every
// registered device's secret key, backed by the segregated key store and
// guarded by the key vault. The resolver's hot path never talks to the key
// store directly; it reads through this registry instead, matching the
// spec's requirement that after addUser(u,k) returns success, getUser(u)
// (here: registry lookup) immediately finds it.
package keyregistry

import (
	"context"
	"sync"

	"github.com/zidek-labs/bellrock/internal/errs"
	"github.com/zidek-labs/bellrock/internal/keyvault"
	"github.com/zidek-labs/bellrock/internal/model"
	"github.com/zidek-labs/bellrock/internal/repository"
)

// Registry is the process-wide, explicitly-constructed handle onto unwrapped
// key material (see spec §9: treat singletons as handles threaded through
// the resolver explicitly, not ambient globals).
type Registry struct {
	keys  repository.KeyRepository
	vault *keyvault.Vault

	mu    sync.RWMutex
	byUID map[model.UID]model.Key
}

// New constructs an empty registry. Call Warm to populate it from the store.
func New(keys repository.KeyRepository, vault *keyvault.Vault) *Registry {
	return &Registry{
		keys:  keys,
		vault: vault,
		byUID: make(map[model.UID]model.Key),
	}
}

// Warm loads and unwraps every key from the store, so the resolver never
// pays a key-store round trip during AID resolution.
func (r *Registry) Warm(ctx context.Context) error {
	wrapped, err := r.keys.GetAll(ctx)
	if err != nil {
		return err
	}
	unwrapped := make(map[model.UID]model.Key, len(wrapped))
	for uid, w := range wrapped {
		key, err := r.vault.Unwrap(uid, w)
		if err != nil {
			return errs.NewCryptoError("keyregistry.warm", err)
		}
		unwrapped[uid] = key
	}
	r.mu.Lock()
	r.byUID = unwrapped
	r.mu.Unlock()
	return nil
}

// Get returns the unwrapped key for uid, if known.
func (r *Registry) Get(uid model.UID) (model.Key, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.byUID[uid]
	return k, ok
}

// Put wraps key and persists it, then updates the in-memory view. Used by
// registration and key renewal.
func (r *Registry) Put(ctx context.Context, uid model.UID, key model.Key) error {
	wrapped, err := r.vault.Wrap(uid, key)
	if err != nil {
		return err
	}
	if err := r.keys.Put(ctx, uid, wrapped); err != nil {
		return err
	}
	r.mu.Lock()
	r.byUID[uid] = key
	r.mu.Unlock()
	return nil
}

// Delete removes uid from both the store and the in-memory view.
func (r *Registry) Delete(ctx context.Context, uid model.UID) error {
	if err := r.keys.Delete(ctx, uid); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.byUID, uid)
	r.mu.Unlock()
	return nil
}

// Len reports the number of keys currently cached in memory.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUID)
}

// All returns a snapshot copy of every cached key, keyed by UID. Only the
// benchmark-only exhaustive search path uses this; the resolver's normal
// path always looks up individual candidates via Get.
func (r *Registry) All() map[model.UID]model.Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[model.UID]model.Key, len(r.byUID))
	for k, v := range r.byUID {
		out[k] = v
	}
	return out
}
