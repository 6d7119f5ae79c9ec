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
package metadata

import (
	"database/sql"
	"testing"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriterAddThenReaderGet(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter(db)
	r := NewReader(db)
	segment := "seg-1"

	doc1 := "the quick brown fox"
	if err := w.ApplyRecords(segment, []LogRecord{
		{Operation: OpAdd, ID: "a", SeqID: 1, Metadata: UpdateMetadata{"color": StrValue("red")}, Document: &doc1},
		{Operation: OpAdd, ID: "b", SeqID: 2, Metadata: UpdateMetadata{"color": StrValue("blue")}},
	}); err != nil {
		t.Fatalf("ApplyRecords: %v", err)
	}

	count, err := r.Count(CountParams{SegmentID: segment})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 live embeddings, got %d", count)
	}

	recs, err := r.Get(GetParams{SegmentID: segment, Proj: Projection{Metadata: true, Document: true}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID != "a" || recs[0].Metadata["color"].Str != "red" {
		t.Errorf("unexpected first record: %+v", recs[0])
	}
	if recs[0].Document == nil || *recs[0].Document != doc1 {
		t.Errorf("expected document to round-trip, got %+v", recs[0].Document)
	}
	if recs[1].ID != "b" || recs[1].Metadata["color"].Str != "blue" {
		t.Errorf("unexpected second record: %+v", recs[1])
	}

	maxSeq, err := MaxSeqID(db, segment)
	if err != nil {
		t.Fatalf("MaxSeqID: %v", err)
	}
	if maxSeq != 2 {
		t.Fatalf("expected max seq id 2, got %d", maxSeq)
	}
}

func TestWriterAddIsIdempotentOnConflict(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter(db)
	segment := "seg-1"

	if err := w.ApplyRecords(segment, []LogRecord{
		{Operation: OpAdd, ID: "a", SeqID: 1, Metadata: UpdateMetadata{"n": IntValue(1)}},
	}); err != nil {
		t.Fatalf("ApplyRecords #1: %v", err)
	}
	if err := w.ApplyRecords(segment, []LogRecord{
		{Operation: OpAdd, ID: "a", SeqID: 2, Metadata: UpdateMetadata{"n": IntValue(2)}},
	}); err != nil {
		t.Fatalf("ApplyRecords #2: %v", err)
	}

	r := NewReader(db)
	recs, err := r.Get(GetParams{SegmentID: segment, Proj: Projection{Metadata: true}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(recs) != 1 || recs[0].Metadata["n"].Int != 1 {
		t.Fatalf("expected the original add to win on conflict, got %+v", recs)
	}
}

func TestWriterUpdateDeletesExplicitNullKeys(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter(db)
	segment := "seg-1"

	if err := w.ApplyRecords(segment, []LogRecord{
		{Operation: OpAdd, ID: "a", SeqID: 1, Metadata: UpdateMetadata{"color": StrValue("red"), "size": IntValue(3)}},
	}); err != nil {
		t.Fatalf("ApplyRecords add: %v", err)
	}
	if err := w.ApplyRecords(segment, []LogRecord{
		{Operation: OpUpdate, ID: "a", SeqID: 2, Metadata: UpdateMetadata{"color": Value{Kind: KindNone}}},
	}); err != nil {
		t.Fatalf("ApplyRecords update: %v", err)
	}

	r := NewReader(db)
	recs, err := r.Get(GetParams{SegmentID: segment, Proj: Projection{Metadata: true}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if _, ok := recs[0].Metadata["color"]; ok {
		t.Errorf("expected color key to be deleted, still present: %+v", recs[0].Metadata)
	}
	if recs[0].Metadata["size"].Int != 3 {
		t.Errorf("expected size to survive the update untouched, got %+v", recs[0].Metadata)
	}
}

func TestWriterDeleteCascadesMetadataAndDocument(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter(db)
	segment := "seg-1"
	doc := "hello world"

	if err := w.ApplyRecords(segment, []LogRecord{
		{Operation: OpAdd, ID: "a", SeqID: 1, Metadata: UpdateMetadata{"k": StrValue("v")}, Document: &doc},
	}); err != nil {
		t.Fatalf("ApplyRecords add: %v", err)
	}
	if err := w.ApplyRecords(segment, []LogRecord{{Operation: OpDelete, ID: "a", SeqID: 2}}); err != nil {
		t.Fatalf("ApplyRecords delete: %v", err)
	}

	r := NewReader(db)
	count, err := r.Count(CountParams{SegmentID: segment})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 live embeddings after delete, got %d", count)
	}

	var orphanMeta int
	if err := db.QueryRow(`SELECT COUNT(*) FROM embedding_metadata`).Scan(&orphanMeta); err != nil {
		t.Fatalf("count metadata rows: %v", err)
	}
	if orphanMeta != 0 {
		t.Errorf("expected cascade delete of metadata rows, found %d", orphanMeta)
	}
}

func TestReaderGetFiltersByMetadataEquality(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter(db)
	r := NewReader(db)
	segment := "seg-1"

	if err := w.ApplyRecords(segment, []LogRecord{
		{Operation: OpAdd, ID: "a", SeqID: 1, Metadata: UpdateMetadata{"color": StrValue("red")}},
		{Operation: OpAdd, ID: "b", SeqID: 2, Metadata: UpdateMetadata{"color": StrValue("blue")}},
		{Operation: OpAdd, ID: "c", SeqID: 3, Metadata: UpdateMetadata{"color": StrValue("red")}},
	}); err != nil {
		t.Fatalf("ApplyRecords: %v", err)
	}

	where := MetadataCompare("color", Equal, StrValue("red"))
	recs, err := r.Get(GetParams{SegmentID: segment, Filter: Filter{Where: &where}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "a" || recs[1].ID != "c" {
		t.Fatalf("expected ids a and c to match color=red, got %+v", recs)
	}
}

func TestReaderGetFiltersByCompositeAndOr(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter(db)
	r := NewReader(db)
	segment := "seg-1"

	if err := w.ApplyRecords(segment, []LogRecord{
		{Operation: OpAdd, ID: "a", SeqID: 1, Metadata: UpdateMetadata{"color": StrValue("red"), "size": IntValue(1)}},
		{Operation: OpAdd, ID: "b", SeqID: 2, Metadata: UpdateMetadata{"color": StrValue("blue"), "size": IntValue(2)}},
		{Operation: OpAdd, ID: "c", SeqID: 3, Metadata: UpdateMetadata{"color": StrValue("red"), "size": IntValue(5)}},
	}); err != nil {
		t.Fatalf("ApplyRecords: %v", err)
	}

	where := And(
		MetadataCompare("color", Equal, StrValue("red")),
		MetadataCompare("size", LessThan, IntValue(3)),
	)
	recs, err := r.Get(GetParams{SegmentID: segment, Filter: Filter{Where: &where}})
	if err != nil {
		t.Fatalf("Get AND: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "a" {
		t.Fatalf("expected only id a to satisfy color=red AND size<3, got %+v", recs)
	}

	orWhere := Or(
		MetadataCompare("color", Equal, StrValue("blue")),
		MetadataCompare("size", GreaterThanOrEqual, IntValue(5)),
	)
	recs, err = r.Get(GetParams{SegmentID: segment, Filter: Filter{Where: &orWhere}})
	if err != nil {
		t.Fatalf("Get OR: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "b" || recs[1].ID != "c" {
		t.Fatalf("expected ids b and c to satisfy color=blue OR size>=5, got %+v", recs)
	}
}

func TestReaderGetFiltersByDocumentContains(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter(db)
	r := NewReader(db)
	segment := "seg-1"
	docA := "the quick brown fox"
	docB := "lorem ipsum dolor"

	if err := w.ApplyRecords(segment, []LogRecord{
		{Operation: OpAdd, ID: "a", SeqID: 1, Document: &docA},
		{Operation: OpAdd, ID: "b", SeqID: 2, Document: &docB},
	}); err != nil {
		t.Fatalf("ApplyRecords: %v", err)
	}

	where := DocumentCompare(Contains, "quick")
	recs, err := r.Get(GetParams{SegmentID: segment, Filter: Filter{Where: &where}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "a" {
		t.Fatalf("expected only id a to contain 'quick', got %+v", recs)
	}
}

func TestReaderGetRespectsQueryIDsAndLimit(t *testing.T) {
	db := openTestDB(t)
	w := NewWriter(db)
	r := NewReader(db)
	segment := "seg-1"

	if err := w.ApplyRecords(segment, []LogRecord{
		{Operation: OpAdd, ID: "a", SeqID: 1},
		{Operation: OpAdd, ID: "b", SeqID: 2},
		{Operation: OpAdd, ID: "c", SeqID: 3},
	}); err != nil {
		t.Fatalf("ApplyRecords: %v", err)
	}

	fetch := uint32(1)
	recs, err := r.Get(GetParams{
		SegmentID: segment,
		Filter:    Filter{QueryIDs: []string{"a", "c"}},
		Limit:     Limit{Skip: 1, Fetch: &fetch},
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "c" {
		t.Fatalf("expected skip=1,fetch=1 over [a,c] to return just c, got %+v", recs)
	}
}
