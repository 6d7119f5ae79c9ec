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
package vectorindex

import (
	"context"
	"testing"

	"github.com/launix-de/vectorcore/internal/coretypes"
	"github.com/launix-de/vectorcore/internal/objectstore"
)

func TestProviderCreateOpenFlushRoundTrip(t *testing.T) {
	store := objectstore.NewMemStore()
	provider := NewProvider(store, "collections/", 1<<20)
	collection := coretypes.CollectionID(coretypes.NewUUID())

	handle := provider.Create(collection, KindHNSWRaw, DefaultHNSWConfig())
	if err := handle.Index.Add(1, []float32{1, 2, 3}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	id, err := provider.Flush(context.Background(), handle)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if id != handle.ID {
		t.Fatalf("expected flush to return the handle's own id")
	}

	reopened, err := provider.Open(context.Background(), collection, KindHNSWRaw, id, DefaultHNSWConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	v, ok := reopened.Index.Get(1)
	if !ok || v[0] != 1 || v[1] != 2 || v[2] != 3 {
		t.Fatalf("expected reopened index to contain the flushed vector, got %v, ok=%v", v, ok)
	}
}

func TestProviderForkProducesIndependentCopy(t *testing.T) {
	store := objectstore.NewMemStore()
	provider := NewProvider(store, "collections/", 1<<20)
	collection := coretypes.CollectionID(coretypes.NewUUID())

	handle := provider.Create(collection, KindHNSWRaw, DefaultHNSWConfig())
	if err := handle.Index.Add(1, []float32{1, 1}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	forked, err := provider.Fork(handle)
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if forked.ID == handle.ID {
		t.Fatal("expected forked handle to have a distinct id")
	}

	if err := forked.Index.Add(2, []float32{2, 2}); err != nil {
		t.Fatalf("Add on fork: %v", err)
	}
	if _, ok := handle.Index.Get(2); ok {
		t.Fatal("mutation on fork should not be visible on the original handle")
	}
}

func TestProviderPurgeByIDDeletesFromStorage(t *testing.T) {
	store := objectstore.NewMemStore()
	provider := NewProvider(store, "collections/", 1<<20)
	collection := coretypes.CollectionID(coretypes.NewUUID())

	handle := provider.Create(collection, KindHNSWRaw, DefaultHNSWConfig())
	id, err := provider.Flush(context.Background(), handle)
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if err := provider.PurgeByID(context.Background(), id); err != nil {
		t.Fatalf("PurgeByID: %v", err)
	}

	if _, err := provider.Open(context.Background(), collection, KindHNSWRaw, id, DefaultHNSWConfig()); err == nil {
		t.Fatal("expected open of a purged index to fail")
	}
}
