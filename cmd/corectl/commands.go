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
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/launix-de/vectorcore/internal/blockstore"
	"github.com/launix-de/vectorcore/internal/coretypes"
	"github.com/launix-de/vectorcore/internal/metadata"
	"github.com/launix-de/vectorcore/internal/versiongraph"
)

func (r *REPL) cmdCount(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: count SEGMENT_ID")
	}
	n, err := r.Reader.Count(metadata.CountParams{SegmentID: args[0]})
	if err != nil {
		return "", fmt.Errorf("counting segment %q: %w", args[0], err)
	}
	return fmt.Sprintf("segment %s holds %d embeddings", args[0], n), nil
}

func (r *REPL) cmdTrack(args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("usage: track TAG...")
	}
	ticket, ok := r.Scorecard.Track(args)
	if !ok {
		return "", fmt.Errorf("admission refused for tags %v", args)
	}
	id := r.nextTicket
	r.nextTicket++
	r.tickets[id] = ticket
	return fmt.Sprintf("ticket %d acquired for tags %v", id, args), nil
}

func (r *REPL) cmdUntrack(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: untrack ID")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("invalid ticket id %q: %w", args[0], err)
	}
	ticket, ok := r.tickets[id]
	if !ok {
		return "", fmt.Errorf("no outstanding ticket %d", id)
	}
	r.Scorecard.Untrack(ticket)
	delete(r.tickets, id)
	return fmt.Sprintf("ticket %d released", id), nil
}

func (r *REPL) cmdInspect(args []string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "scorecard aborted tickets: %d\n", r.Scorecard.AbortedCount())
	fmt.Fprintf(&b, "dispatcher aborted cpu tasks: %d\n", r.Dispatcher.AbortedCPUTasks())
	fmt.Fprintf(&b, "dispatcher aborted io tasks: %d\n", r.Dispatcher.AbortedIOTasks())
	fmt.Fprintf(&b, "vector index cache occupied bytes: %d\n", r.Provider.CacheOccupiedBytes())
	fmt.Fprintf(&b, "outstanding tickets: %d", len(r.tickets))
	return b.String(), nil
}

func (r *REPL) cmdArchive(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: archive KEY")
	}
	if err := blockstore.ArchiveBlock(context.Background(), r.Store, args[0]); err != nil {
		return "", fmt.Errorf("archiving %q: %w", args[0], err)
	}
	return fmt.Sprintf("archived %s to the cold tier", args[0]), nil
}

func (r *REPL) cmdRestore(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: restore KEY")
	}
	if err := blockstore.RestoreBlock(context.Background(), r.Store, args[0]); err != nil {
		return "", fmt.Errorf("restoring %q: %w", args[0], err)
	}
	return fmt.Sprintf("restored %s to the hot tier", args[0]), nil
}

// cmdGC constructs the version graph reachable from COLLECTION_ID and
// reports which versions a garbage-collection pass with the given
// cutoff/retention would drop, without actually deleting anything:
// an operator dry run over internal/versiongraph's pipeline.
func (r *REPL) cmdGC(args []string) (string, error) {
	if len(args) < 3 {
		return "", fmt.Errorf("usage: gc COLLECTION_ID CUTOFF_HOURS MIN_VERSIONS_TO_KEEP [LINEAGE]")
	}

	rawID, cutoffArg, minArg := args[0], args[1], args[2]
	lineageName := ""
	if len(args) >= 4 {
		lineageName = args[3]
	}

	parsed, err := uuid.Parse(rawID)
	if err != nil {
		return "", fmt.Errorf("invalid collection id %q: %w", rawID, err)
	}
	collectionID := coretypes.CollectionID(parsed)

	cutoffHours, err := strconv.ParseFloat(cutoffArg, 64)
	if err != nil {
		return "", fmt.Errorf("invalid cutoff hours %q: %w", cutoffArg, err)
	}
	minVersionsToKeep, err := strconv.Atoi(minArg)
	if err != nil {
		return "", fmt.Errorf("invalid min-versions-to-keep %q: %w", minArg, err)
	}

	store := &versionGraphStore{store: r.Store}
	sysdb := &versionGraphSysDB{prefix: r.Prefix}

	versionFilePath := fmt.Sprintf("%sversions/%s.json", r.Prefix, collectionID.String())
	lineagePath := ""
	if lineageName != "" {
		lineagePath = fmt.Sprintf("%slineage/%s.json", r.Prefix, lineageName)
	}

	ctx := context.Background()
	graph, err := versiongraph.Construct(ctx, store, sysdb, collectionID, versionFilePath, lineagePath)
	if err != nil {
		return "", fmt.Errorf("constructing version graph: %w", err)
	}

	databaseNames := make(map[coretypes.CollectionID]string)
	for _, n := range graph.Nodes() {
		databaseNames[n.CollectionID] = "default"
	}

	cutoffTime := time.Now().Add(-time.Duration(cutoffHours * float64(time.Hour)))
	toDelete, err := versiongraph.ComputeVersionsToDelete(graph, nil, cutoffTime, minVersionsToKeep, databaseNames)
	if err != nil {
		return "", fmt.Errorf("computing versions to delete: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "graph: %d nodes, %d edges\n", graph.NodeCount(), graph.EdgeCount())

	collections := make([]coretypes.CollectionID, 0, len(toDelete))
	for c := range toDelete {
		collections = append(collections, c)
	}
	sort.Slice(collections, func(i, j int) bool { return collections[i].String() < collections[j].String() })

	for _, c := range collections {
		cv := toDelete[c]
		versions := make([]int64, 0, len(cv.Versions))
		for v := range cv.Versions {
			versions = append(versions, v)
		}
		sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

		var deletes, keeps []string
		for _, v := range versions {
			if cv.Versions[v] == versiongraph.ActionDelete {
				deletes = append(deletes, strconv.FormatInt(v, 10))
			} else {
				keeps = append(keeps, strconv.FormatInt(v, 10))
			}
		}
		fmt.Fprintf(&b, "collection %s (db %s): delete=[%s] keep=[%s]\n",
			c, cv.DatabaseName, strings.Join(deletes, ","), strings.Join(keeps, ","))
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
