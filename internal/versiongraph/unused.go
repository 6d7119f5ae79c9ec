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
package versiongraph

import (
	"context"
	"sort"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

// BlockIDResolver resolves a non-HNSW segment file path (a root/sparse
// index reference) to the block ids it covers, so those blocks can be
// diffed between two successive versions.
type BlockIDResolver interface {
	ResolveBlockIDs(ctx context.Context, path string) ([]string, error)
}

// UnusedFiles is the result of diffing a version range: block storage
// keys no longer referenced by any version being kept, and HNSW file
// prefixes belonging to a deleted version's index.
type UnusedFiles struct {
	UnusedBlockIDs   []string
	UnusedHNSWPrefix []string
}

func isHNSWKind(kind string) bool {
	return kind == FileKindHNSW || kind == FileKindUSearch
}

func expandHNSWPrefix(path string) []string {
	prefixes := make([]string, 0, len(legacyHNSWFiles))
	for _, f := range legacyHNSWFiles {
		prefixes = append(prefixes, path+"/"+f)
	}
	return prefixes
}

func blockIDsInVersion(ctx context.Context, resolver BlockIDResolver, info SegmentInfo) ([]string, error) {
	var out []string
	for kind, paths := range info {
		if isHNSWKind(kind) {
			continue
		}
		for _, path := range paths {
			ids, err := resolver.ResolveBlockIDs(ctx, path)
			if err != nil {
				return nil, err
			}
			out = append(out, ids...)
		}
	}
	return out, nil
}

func hnswPrefixesInVersion(info SegmentInfo) []string {
	var out []string
	for kind, paths := range info {
		if !isHNSWKind(kind) {
			continue
		}
		for _, path := range paths {
			out = append(out, expandHNSWPrefix(path)...)
		}
	}
	return out
}

func diffBetweenVersions(ctx context.Context, resolver BlockIDResolver, byVersion map[int64]SegmentInfo, older, newer int64) (UnusedFiles, error) {
	olderInfo, ok := byVersion[older]
	if !ok {
		return UnusedFiles{}, coretypes.New(coretypes.KindInvalidArgument, "versiongraph.ComputeUnusedFiles", "version file missing content for an older version")
	}
	newerInfo, ok := byVersion[newer]
	if !ok {
		return UnusedFiles{}, coretypes.New(coretypes.KindInvalidArgument, "versiongraph.ComputeUnusedFiles", "version file missing content for a newer version")
	}

	olderBlocks, err := blockIDsInVersion(ctx, resolver, olderInfo)
	if err != nil {
		return UnusedFiles{}, err
	}
	newerBlocks, err := blockIDsInVersion(ctx, resolver, newerInfo)
	if err != nil {
		return UnusedFiles{}, err
	}
	newerSet := make(map[string]bool, len(newerBlocks))
	for _, id := range newerBlocks {
		newerSet[id] = true
	}

	var unused []string
	for _, id := range olderBlocks {
		if !newerSet[id] {
			unused = append(unused, id)
		}
	}

	return UnusedFiles{UnusedBlockIDs: unused, UnusedHNSWPrefix: hnswPrefixesInVersion(olderInfo)}, nil
}

// ComputeUnusedFiles walks the versions scheduled for deletion, oldest
// to newest, diffing each consecutive pair's block references to find
// blocks the newer version no longer needs, then finishes the tail by
// diffing the last deleted version against the next version above it
// (which need not be the oldest version being kept, if
// minVersionsToKeep skipped some in between). Refuses to run if
// deleting the given versions would leave fewer than
// minVersionsToKeep versions behind.
func ComputeUnusedFiles(ctx context.Context, resolver BlockIDResolver, file *VersionFile, versionsToDelete []int64, minVersionsToKeep int) (UnusedFiles, error) {
	if len(file.Versions) == 0 {
		return UnusedFiles{}, coretypes.New(coretypes.KindInvalidArgument, "versiongraph.ComputeUnusedFiles", "version history is missing")
	}
	if len(versionsToDelete) == 0 {
		return UnusedFiles{}, nil
	}

	byVersion := make(map[int64]SegmentInfo, len(file.Versions))
	distinct := make(map[int64]bool, len(file.Versions))
	for _, v := range file.Versions {
		byVersion[v.Version] = v.SegmentInfo
		distinct[v.Version] = true
	}

	if len(versionsToDelete) > len(distinct) {
		return UnusedFiles{}, coretypes.New(coretypes.KindInvalidArgument, "versiongraph.ComputeUnusedFiles", "versions to delete are greater than total versions")
	}
	if remaining := len(distinct) - len(versionsToDelete); remaining < minVersionsToKeep {
		return UnusedFiles{}, coretypes.New(coretypes.KindInvalidArgument, "versiongraph.ComputeUnusedFiles", "cannot delete versions: would leave fewer than the minimum required versions")
	}

	versions := make([]int64, len(versionsToDelete))
	copy(versions, versionsToDelete)
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	var result UnusedFiles
	for i := 0; i+1 < len(versions); i++ {
		diff, err := diffBetweenVersions(ctx, resolver, byVersion, versions[i], versions[i+1])
		if err != nil {
			return UnusedFiles{}, err
		}
		result.UnusedBlockIDs = append(result.UnusedBlockIDs, diff.UnusedBlockIDs...)
		result.UnusedHNSWPrefix = append(result.UnusedHNSWPrefix, diff.UnusedHNSWPrefix...)
	}

	// finish the tail: diff the last deleted version against the
	// oldest version that survives above it.
	deleting := make(map[int64]bool, len(versions))
	for _, v := range versions {
		deleting[v] = true
	}
	last := versions[len(versions)-1]
	all := maps.Keys(distinct)
	slices.Sort(all)
	next := int64(-1)
	for _, v := range all {
		if v > last && !deleting[v] {
			next = v
			break
		}
	}
	if next < 0 {
		return UnusedFiles{}, coretypes.New(coretypes.KindInvalidArgument, "versiongraph.ComputeUnusedFiles", "no version survives above the newest version being deleted")
	}
	diff, err := diffBetweenVersions(ctx, resolver, byVersion, last, next)
	if err != nil {
		return UnusedFiles{}, err
	}
	result.UnusedBlockIDs = append(result.UnusedBlockIDs, diff.UnusedBlockIDs...)
	result.UnusedHNSWPrefix = append(result.UnusedHNSWPrefix, diff.UnusedHNSWPrefix...)

	return result, nil
}
