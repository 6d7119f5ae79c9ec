/*
Copyright (C) 2026  vectorcore contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
// provider.go is the per-collection index cache and lifecycle
// manager (create/open/fork/flush) covering
// both HNSW and SPANN. The resident-handle registry is a
// read-optimized NonLockingReadMap (vendored at
// third_party/NonLockingReadMap): opens vastly outnumber
// creates/flushes/forks for a warm collection, which is exactly the
// read-often/write-seldom shape that map is built for. Eviction
// accounting is delegated to the shared budgeted cache manager used
// elsewhere in this module.
package vectorindex

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/launix-de/NonLockingReadMap"
	"github.com/launix-de/vectorcore/internal/cachemgr"
	"github.com/launix-de/vectorcore/internal/coretypes"
	"github.com/launix-de/vectorcore/internal/objectstore"
)

// IndexKind distinguishes which representation of a collection's
// index is resident: the raw-vector graph or its quantized
// counterpart.
type IndexKind int

const (
	KindHNSWRaw IndexKind = iota
	KindHNSWQuantized
	KindSPANN
)

func (k IndexKind) storagePrefix() string {
	switch k {
	case KindHNSWQuantized:
		return "usearch/quantized"
	case KindSPANN:
		return "spann"
	default:
		return "usearch/raw"
	}
}

// cacheKeyString encodes (collection, kind) as the NonLockingReadMap's
// ordered string key: one resident index per collection per kind, so
// a hot collection's raw index never evicts another collection's
// quantized one.
func cacheKeyString(collection coretypes.CollectionID, kind IndexKind) string {
	return collection.String() + "|" + strconv.Itoa(int(kind))
}

// Handle wraps a live Index together with the identity the provider
// needs to flush and evict it. It implements NonLockingReadMap's
// KeyGetter so handles can sit directly in the registry.
type Handle struct {
	ID         uuid.UUID
	Collection coretypes.CollectionID
	Kind       IndexKind
	Index      Index

	mu       sync.Mutex
	lastUsed time.Time
}

// GetKey satisfies NonLockingReadMap.KeyGetter.
func (h *Handle) GetKey() string { return cacheKeyString(h.Collection, h.Kind) }

// ComputeSize satisfies NonLockingReadMap.Sizable; also used directly
// as the cache manager's weight for this handle.
func (h *Handle) ComputeSize() uint {
	n := h.Index.Len()
	if n == 0 {
		return 4096
	}
	return uint(n*256 + 4096)
}

func (h *Handle) touch() {
	h.mu.Lock()
	h.lastUsed = time.Now()
	h.mu.Unlock()
}

func (h *Handle) lastUsedAt() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastUsed
}

// Provider is the per-process cache of open indices, keyed by
// (collection, kind), persisted to an object store on Flush.
type Provider struct {
	store  objectstore.Store
	prefix string
	cache  *cachemgr.Manager

	handles NonLockingReadMap.NonLockingReadMap[*Handle, string]
}

// NewProvider constructs a Provider backed by store under prefix,
// budgeted to budgetBytes of estimated resident index memory.
func NewProvider(store objectstore.Store, prefix string, budgetBytes int64) *Provider {
	return &Provider{
		store:   store,
		prefix:  prefix,
		cache:   cachemgr.NewManager(budgetBytes),
		handles: NonLockingReadMap.New[*Handle, string](),
	}
}

func (p *Provider) storageKey(kind IndexKind, id uuid.UUID) string {
	return fmt.Sprintf("%s%s/%s.bin", p.prefix, kind.storagePrefix(), id.String())
}

// newIndexForKind constructs the right empty Index implementation to
// Load a persisted body into.
func newIndexForKind(kind IndexKind, cfg HNSWConfig) Index {
	if kind == KindSPANN {
		scfg := DefaultSPANNConfig()
		scfg.Metric = cfg.Metric
		scfg.CentroidHNSW = cfg
		return NewSPANN(scfg)
	}
	return NewHNSW(cfg)
}

// Create builds a brand-new empty index for collection under kind and
// registers it as the resident index for that key, replacing whatever
// was previously cached there.
func (p *Provider) Create(collection coretypes.CollectionID, kind IndexKind, cfg HNSWConfig) *Handle {
	handle := &Handle{
		ID:         coretypes.NewUUID(),
		Collection: collection,
		Kind:       kind,
		Index:      newIndexForKind(kind, cfg),
		lastUsed:   time.Now(),
	}
	p.register(handle)
	return handle
}

func (p *Provider) register(handle *Handle) {
	p.handles.Set(&handle)
	key := handle.GetKey()
	p.cache.AddItem(key, cachemgr.Kind(handle.Kind), int64(handle.ComputeSize()),
		func(k any) { p.handles.Remove(k.(string)) },
		func(k any) time.Time {
			h := p.handles.Get(k.(string))
			if h == nil {
				return time.Time{}
			}
			return (*h).lastUsedAt()
		})
}

// Open returns the resident handle for (collection, kind) if one is
// cached and matches id, loading it from storage otherwise.
func (p *Provider) Open(ctx context.Context, collection coretypes.CollectionID, kind IndexKind, id uuid.UUID, cfg HNSWConfig) (*Handle, error) {
	key := cacheKeyString(collection, kind)

	if h := p.handles.Get(key); h != nil && (*h).ID == id {
		(*h).touch()
		return *h, nil
	}

	data, _, err := p.store.Get(ctx, p.storageKey(kind, id))
	if err != nil {
		if err == objectstore.ErrNotFound {
			return nil, coretypes.New(coretypes.KindNotFound, "vectorindex.Provider.Open", "index not found in storage")
		}
		return nil, coretypes.Wrap(coretypes.KindIO, "vectorindex.Provider.Open", "failed to fetch index body", err)
	}

	idx := newIndexForKind(kind, cfg)
	if err := idx.Load(data); err != nil {
		return nil, err
	}

	handle := &Handle{ID: id, Collection: collection, Kind: kind, Index: idx, lastUsed: time.Now()}
	p.register(handle)
	return handle, nil
}

// Fork returns a deep, independently mutable copy of handle under a
// fresh id: serialize then reload into a new instance so neither copy
// shares graph state with the other.
func (p *Provider) Fork(handle *Handle) (*Handle, error) {
	buf, err := handle.Index.Save()
	if err != nil {
		return nil, err
	}

	forked := newIndexForKind(handle.Kind, DefaultHNSWConfig())
	if err := forked.Load(buf); err != nil {
		return nil, err
	}

	newHandle := &Handle{
		ID:         coretypes.NewUUID(),
		Collection: handle.Collection,
		Kind:       handle.Kind,
		Index:      forked,
		lastUsed:   time.Now(),
	}
	p.register(newHandle)
	return newHandle, nil
}

// Flush serializes handle's index and writes it to storage,
// returning the id it was stored under.
func (p *Provider) Flush(ctx context.Context, handle *Handle) (uuid.UUID, error) {
	buf, err := handle.Index.Save()
	if err != nil {
		return uuid.UUID{}, err
	}
	if _, err := p.store.Put(ctx, p.storageKey(handle.Kind, handle.ID), buf); err != nil {
		return uuid.UUID{}, coretypes.Wrap(coretypes.KindIO, "vectorindex.Provider.Flush", "failed to persist index body", err)
	}
	handle.touch()
	return handle.ID, nil
}

// PurgeByID evicts and deletes from storage any handle whose id
// matches, regardless of which collection/kind key it is registered
// under, used when a collection's version graph GC determines an
// index is no longer referenced by any live version.
func (p *Provider) PurgeByID(ctx context.Context, id uuid.UUID) error {
	var matchedKind IndexKind
	matched := false
	for _, h := range p.handles.GetAll() {
		if (*h).ID == id {
			p.handles.Remove((*h).GetKey())
			p.cache.Remove((*h).GetKey())
			matchedKind = (*h).Kind
			matched = true
		}
	}

	if !matched {
		// still attempt deletion under every kind prefix; the caller
		// may be purging an index that was never reopened this process.
		for _, k := range []IndexKind{KindHNSWRaw, KindHNSWQuantized, KindSPANN} {
			_ = p.store.Delete(ctx, p.storageKey(k, id))
		}
		return nil
	}
	return p.store.Delete(ctx, p.storageKey(matchedKind, id))
}

// CacheOccupiedBytes reports the cache manager's current weight, for
// operator-facing introspection.
func (p *Provider) CacheOccupiedBytes() int64 {
	return p.cache.Occupied()
}
