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
package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/launix-de/vectorcore/internal/coretypes"
	"github.com/launix-de/vectorcore/internal/objectstore"
	"github.com/launix-de/vectorcore/internal/versiongraph"
)

// versionGraphStore adapts objectstore.Store to versiongraph.Store,
// JSON-encoding the version/lineage files the same way the provider
// package serializes index bodies: plain encoding/json over the
// exported struct fields, no custom wire format needed for files this
// small and this rarely rewritten.
type versionGraphStore struct {
	store objectstore.Store
}

func (s *versionGraphStore) FetchVersionFile(ctx context.Context, path string) (*versiongraph.VersionFile, error) {
	data, _, err := s.store.Get(ctx, path)
	if err != nil {
		if err == objectstore.ErrNotFound {
			return nil, coretypes.New(coretypes.KindNotFound, "corectl.versionGraphStore.FetchVersionFile", fmt.Sprintf("no version file at %s", path))
		}
		return nil, coretypes.Wrap(coretypes.KindIO, "corectl.versionGraphStore.FetchVersionFile", "failed to fetch version file", err)
	}
	var vf versiongraph.VersionFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, coretypes.Wrap(coretypes.KindInternal, "corectl.versionGraphStore.FetchVersionFile", "malformed version file", err)
	}
	return &vf, nil
}

func (s *versionGraphStore) FetchLineageFile(ctx context.Context, path string) (*versiongraph.LineageFile, error) {
	data, _, err := s.store.Get(ctx, path)
	if err != nil {
		if err == objectstore.ErrNotFound {
			return nil, coretypes.New(coretypes.KindNotFound, "corectl.versionGraphStore.FetchLineageFile", fmt.Sprintf("no lineage file at %s", path))
		}
		return nil, coretypes.Wrap(coretypes.KindIO, "corectl.versionGraphStore.FetchLineageFile", "failed to fetch lineage file", err)
	}
	var lf versiongraph.LineageFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, coretypes.Wrap(coretypes.KindInternal, "corectl.versionGraphStore.FetchLineageFile", "malformed lineage file", err)
	}
	return &lf, nil
}

// versionGraphSysDB resolves a forked-from collection's version file
// to the fixed path convention this command line tool lays files out
// under, rather than a real control plane round trip.
type versionGraphSysDB struct {
	prefix string
}

func (s *versionGraphSysDB) VersionFilePath(ctx context.Context, collectionID coretypes.CollectionID) (string, error) {
	return fmt.Sprintf("%sversions/%s.json", s.prefix, collectionID.String()), nil
}
