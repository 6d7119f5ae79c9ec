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
// reader.go is the reference get/count implementation: a filter+limit
// subquery produces candidate offset ids (joining metadata/document
// tables only when a where-clause needs them), then a projection stage
// fetches metadata and document rows for exactly those ids. The
// projection stage is two follow-up
// queries keyed by id rather than a further outer join, which keeps the
// Go side free of group-by/aggregate row reassembly while preserving
// the same filter-then-project shape.
package metadata

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

type Reader struct {
	db *sql.DB
}

func NewReader(db *sql.DB) *Reader { return &Reader{db: db} }

// Count returns the number of live embeddings in a segment.
func (r *Reader) Count(p CountParams) (uint64, error) {
	var n uint64
	row := r.db.QueryRow(`SELECT COUNT(id) FROM embeddings WHERE segment_id = ?`, p.SegmentID)
	if err := row.Scan(&n); err != nil {
		return 0, coretypes.Wrap(coretypes.KindIO, "metadata.Reader.Count", "count embeddings", err)
	}
	return n, nil
}

// Get evaluates the filter, orders by offset id, applies skip/fetch,
// and projects document/metadata for the surviving rows.
func (r *Reader) Get(p GetParams) ([]ProjectionRecord, error) {
	ids, userIDs, err := r.filterLimit(p)
	if err != nil {
		return nil, err
	}

	var metaByID map[int64]Metadata
	if p.Proj.Metadata {
		metaByID, err = r.loadMetadata(ids)
		if err != nil {
			return nil, err
		}
	}
	var docByID map[int64]string
	if p.Proj.Document {
		docByID, err = r.loadDocuments(ids)
		if err != nil {
			return nil, err
		}
	}

	out := make([]ProjectionRecord, len(ids))
	for i, id := range ids {
		rec := ProjectionRecord{ID: userIDs[i]}
		if p.Proj.Metadata {
			rec.Metadata = metaByID[id]
		}
		if p.Proj.Document {
			if d, ok := docByID[id]; ok {
				rec.Document = &d
			}
		}
		out[i] = rec
	}
	return out, nil
}

func (r *Reader) filterLimit(p GetParams) ([]int64, []string, error) {
	var b strings.Builder
	var args []any

	b.WriteString("SELECT embeddings.id, embeddings.embedding_id FROM embeddings")
	if p.Filter.Where != nil {
		b.WriteString(" LEFT JOIN embedding_metadata ON embeddings.id = embedding_metadata.id")
		b.WriteString(" LEFT JOIN embedding_fulltext_search ON embeddings.id = embedding_fulltext_search.rowid")
	}
	b.WriteString(" WHERE embeddings.segment_id = ?")
	args = append(args, p.SegmentID)

	if len(p.Filter.QueryIDs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(p.Filter.QueryIDs)), ",")
		fmt.Fprintf(&b, " AND embeddings.embedding_id IN (%s)", placeholders)
		for _, id := range p.Filter.QueryIDs {
			args = append(args, id)
		}
	}

	if p.Filter.Where != nil {
		havingExpr, havingArgs := compileWhere(*p.Filter.Where)
		b.WriteString(" GROUP BY embeddings.id, embedding_fulltext_search.string_value")
		fmt.Fprintf(&b, " HAVING %s", havingExpr)
		args = append(args, havingArgs...)
	}

	b.WriteString(" ORDER BY embeddings.id ASC")

	limit := uint32(^uint32(0))
	if p.Limit.Fetch != nil {
		limit = *p.Limit.Fetch
	}
	fmt.Fprintf(&b, " LIMIT %d OFFSET %d", limit, p.Limit.Skip)

	rows, err := r.db.Query(b.String(), args...)
	if err != nil {
		return nil, nil, coretypes.Wrap(coretypes.KindIO, "metadata.Reader.filterLimit", "run filter query", err)
	}
	defer rows.Close()

	var ids []int64
	var userIDs []string
	for rows.Next() {
		var id int64
		var userID string
		if err := rows.Scan(&id, &userID); err != nil {
			return nil, nil, coretypes.Wrap(coretypes.KindIO, "metadata.Reader.filterLimit", "scan filter row", err)
		}
		ids = append(ids, id)
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, coretypes.Wrap(coretypes.KindIO, "metadata.Reader.filterLimit", "iterate filter rows", err)
	}
	return ids, userIDs, nil
}

func (r *Reader) loadMetadata(ids []int64) (map[int64]Metadata, error) {
	out := make(map[int64]Metadata, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.Query(
		fmt.Sprintf(`SELECT id, key, string_value, int_value, float_value, bool_value
		              FROM embedding_metadata WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, coretypes.Wrap(coretypes.KindIO, "metadata.Reader.loadMetadata", "query metadata", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var key string
		var sVal sql.NullString
		var iVal sql.NullInt64
		var fVal sql.NullFloat64
		var bVal sql.NullBool
		if err := rows.Scan(&id, &key, &sVal, &iVal, &fVal, &bVal); err != nil {
			return nil, coretypes.Wrap(coretypes.KindIO, "metadata.Reader.loadMetadata", "scan metadata row", err)
		}
		if out[id] == nil {
			out[id] = make(Metadata)
		}
		switch {
		case sVal.Valid:
			out[id][key] = StrValue(sVal.String)
		case iVal.Valid:
			out[id][key] = IntValue(iVal.Int64)
		case fVal.Valid:
			out[id][key] = FloatValue(fVal.Float64)
		case bVal.Valid:
			out[id][key] = BoolValue(bVal.Bool)
		}
	}
	return out, rows.Err()
}

func (r *Reader) loadDocuments(ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.db.Query(
		fmt.Sprintf(`SELECT rowid, string_value FROM embedding_fulltext_search WHERE rowid IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, coretypes.Wrap(coretypes.KindIO, "metadata.Reader.loadDocuments", "query documents", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, coretypes.Wrap(coretypes.KindIO, "metadata.Reader.loadDocuments", "scan document row", err)
		}
		out[id] = doc
	}
	return out, rows.Err()
}
