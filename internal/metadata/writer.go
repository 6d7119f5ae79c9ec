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
// writer.go applies materialized log records to the metadata segment.
// Every operation maps to idempotent, hand-written parameterized SQL:
// add is insert-or-ignore, update deletes explicitly-null keys,
// upsert updates seq_id on conflict, delete cascades to metadata and
// FTS rows.
package metadata

import (
	"database/sql"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

// Writer applies LogRecords to a single metadata segment's tables.
type Writer struct {
	db *sql.DB
}

func NewWriter(db *sql.DB) *Writer { return &Writer{db: db} }

// ApplyRecords applies records within a single transaction and advances
// the segment's max_seq_id to the highest seq id seen, matching the
// reference writer's all-or-nothing batch commit.
func (w *Writer) ApplyRecords(segmentID string, records []LogRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := w.db.Begin()
	if err != nil {
		return coretypes.Wrap(coretypes.KindIO, "metadata.Writer.ApplyRecords", "begin transaction", err)
	}
	defer tx.Rollback()

	var maxSeqID uint64
	for _, rec := range records {
		if rec.SeqID > maxSeqID {
			maxSeqID = rec.SeqID
		}
		if err := w.applyOne(tx, segmentID, rec); err != nil {
			return err
		}
	}
	if err := upsertMaxSeqID(tx, segmentID, maxSeqID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return coretypes.Wrap(coretypes.KindIO, "metadata.Writer.ApplyRecords", "commit transaction", err)
	}
	return nil
}

func (w *Writer) applyOne(tx *sql.Tx, segmentID string, rec LogRecord) error {
	switch rec.Operation {
	case OpAdd:
		offsetID, inserted, err := addEmbedding(tx, segmentID, rec.SeqID, rec.ID)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		return applyMetaAndDoc(tx, offsetID, rec)

	case OpUpdate:
		offsetID, ok, err := updateEmbedding(tx, segmentID, rec.SeqID, rec.ID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return applyMetaAndDoc(tx, offsetID, rec)

	case OpUpsert:
		offsetID, err := upsertEmbedding(tx, segmentID, rec.SeqID, rec.ID)
		if err != nil {
			return err
		}
		return applyMetaAndDoc(tx, offsetID, rec)

	case OpDelete:
		offsetID, ok, err := deleteEmbedding(tx, segmentID, rec.ID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := deleteMetadata(tx, offsetID); err != nil {
			return err
		}
		return deleteDocument(tx, offsetID)

	default:
		return coretypes.New(coretypes.KindInvalidArgument, "metadata.Writer.applyOne", "unknown operation")
	}
}

func applyMetaAndDoc(tx *sql.Tx, offsetID int64, rec LogRecord) error {
	if rec.Metadata != nil {
		if err := updateMetadata(tx, offsetID, rec.Metadata); err != nil {
			return err
		}
	}
	if rec.Document != nil {
		if err := upsertDocument(tx, offsetID, *rec.Document); err != nil {
			return err
		}
	}
	return nil
}

// addEmbedding inserts a new (segment_id, embedding_id) row, doing
// nothing on conflict. inserted is false when the id already existed.
func addEmbedding(tx *sql.Tx, segmentID string, seqID uint64, userID string) (int64, bool, error) {
	res, err := tx.Exec(
		`INSERT INTO embeddings (segment_id, embedding_id, seq_id) VALUES (?, ?, ?)
		 ON CONFLICT(segment_id, embedding_id) DO NOTHING`,
		segmentID, userID, seqID)
	if err != nil {
		return 0, false, coretypes.Wrap(coretypes.KindIO, "metadata.addEmbedding", "insert embedding", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, coretypes.Wrap(coretypes.KindIO, "metadata.addEmbedding", "rows affected", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, coretypes.Wrap(coretypes.KindIO, "metadata.addEmbedding", "last insert id", err)
	}
	return id, true, nil
}

// updateEmbedding advances seq_id for an existing row. ok is false
// when no row matched, meaning update is a no-op on a missing id.
func updateEmbedding(tx *sql.Tx, segmentID string, seqID uint64, userID string) (int64, bool, error) {
	res, err := tx.Exec(
		`UPDATE embeddings SET seq_id = ? WHERE segment_id = ? AND embedding_id = ?`,
		seqID, segmentID, userID)
	if err != nil {
		return 0, false, coretypes.Wrap(coretypes.KindIO, "metadata.updateEmbedding", "update embedding", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, coretypes.Wrap(coretypes.KindIO, "metadata.updateEmbedding", "rows affected", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	var id int64
	row := tx.QueryRow(`SELECT id FROM embeddings WHERE segment_id = ? AND embedding_id = ?`, segmentID, userID)
	if err := row.Scan(&id); err != nil {
		return 0, false, coretypes.Wrap(coretypes.KindIO, "metadata.updateEmbedding", "select updated id", err)
	}
	return id, true, nil
}

// upsertEmbedding inserts or, on conflict, advances seq_id, always
// returning the row's id.
func upsertEmbedding(tx *sql.Tx, segmentID string, seqID uint64, userID string) (int64, error) {
	_, err := tx.Exec(
		`INSERT INTO embeddings (segment_id, embedding_id, seq_id) VALUES (?, ?, ?)
		 ON CONFLICT(segment_id, embedding_id) DO UPDATE SET seq_id = excluded.seq_id`,
		segmentID, userID, seqID)
	if err != nil {
		return 0, coretypes.Wrap(coretypes.KindIO, "metadata.upsertEmbedding", "upsert embedding", err)
	}
	var id int64
	row := tx.QueryRow(`SELECT id FROM embeddings WHERE segment_id = ? AND embedding_id = ?`, segmentID, userID)
	if err := row.Scan(&id); err != nil {
		return 0, coretypes.Wrap(coretypes.KindIO, "metadata.upsertEmbedding", "select upserted id", err)
	}
	return id, nil
}

// deleteEmbedding removes a row by user id, returning its former
// offset id so metadata/document rows can cascade.
func deleteEmbedding(tx *sql.Tx, segmentID, userID string) (int64, bool, error) {
	var id int64
	row := tx.QueryRow(`SELECT id FROM embeddings WHERE segment_id = ? AND embedding_id = ?`, segmentID, userID)
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, coretypes.Wrap(coretypes.KindIO, "metadata.deleteEmbedding", "select id to delete", err)
	}
	if _, err := tx.Exec(`DELETE FROM embeddings WHERE id = ?`, id); err != nil {
		return 0, false, coretypes.Wrap(coretypes.KindIO, "metadata.deleteEmbedding", "delete embedding", err)
	}
	return id, true, nil
}

// updateMetadata splits meta into deletions (explicit KindNone values)
// and upserts, applying both against offsetID.
func updateMetadata(tx *sql.Tx, offsetID int64, meta UpdateMetadata) error {
	var deletedKeys []string
	notNull := make(Metadata)
	for k, v := range meta {
		if v.Kind == KindNone {
			deletedKeys = append(deletedKeys, k)
			continue
		}
		notNull[k] = v
	}
	if err := deleteMetadataKeys(tx, offsetID, deletedKeys); err != nil {
		return err
	}
	return upsertMetadata(tx, offsetID, notNull)
}

func upsertMetadata(tx *sql.Tx, offsetID int64, meta Metadata) error {
	for key, v := range meta {
		var sVal sql.NullString
		var iVal sql.NullInt64
		var fVal sql.NullFloat64
		var bVal sql.NullBool
		switch v.Kind {
		case KindStr:
			sVal = sql.NullString{String: v.Str, Valid: true}
		case KindInt:
			iVal = sql.NullInt64{Int64: v.Int, Valid: true}
		case KindFloat:
			fVal = sql.NullFloat64{Float64: v.Float, Valid: true}
		case KindBool:
			bVal = sql.NullBool{Bool: v.Bool, Valid: true}
		}
		_, err := tx.Exec(
			`INSERT INTO embedding_metadata (id, key, string_value, int_value, float_value, bool_value)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id, key) DO UPDATE SET
			   string_value = excluded.string_value,
			   int_value = excluded.int_value,
			   float_value = excluded.float_value,
			   bool_value = excluded.bool_value`,
			offsetID, key, sVal, iVal, fVal, bVal)
		if err != nil {
			return coretypes.Wrap(coretypes.KindIO, "metadata.upsertMetadata", "upsert metadata row", err)
		}
	}
	return nil
}

func deleteMetadataKeys(tx *sql.Tx, offsetID int64, keys []string) error {
	for _, k := range keys {
		if _, err := tx.Exec(`DELETE FROM embedding_metadata WHERE id = ? AND key = ?`, offsetID, k); err != nil {
			return coretypes.Wrap(coretypes.KindIO, "metadata.deleteMetadataKeys", "delete metadata key", err)
		}
	}
	return nil
}

func deleteMetadata(tx *sql.Tx, offsetID int64) error {
	if _, err := tx.Exec(`DELETE FROM embedding_metadata WHERE id = ?`, offsetID); err != nil {
		return coretypes.Wrap(coretypes.KindIO, "metadata.deleteMetadata", "delete metadata", err)
	}
	return nil
}

func upsertDocument(tx *sql.Tx, offsetID int64, document string) error {
	if _, err := tx.Exec(`DELETE FROM embedding_fulltext_search WHERE rowid = ?`, offsetID); err != nil {
		return coretypes.Wrap(coretypes.KindIO, "metadata.upsertDocument", "clear previous document", err)
	}
	if _, err := tx.Exec(`INSERT INTO embedding_fulltext_search (rowid, string_value) VALUES (?, ?)`, offsetID, document); err != nil {
		return coretypes.Wrap(coretypes.KindIO, "metadata.upsertDocument", "insert document", err)
	}
	return nil
}

func deleteDocument(tx *sql.Tx, offsetID int64) error {
	if _, err := tx.Exec(`DELETE FROM embedding_fulltext_search WHERE rowid = ?`, offsetID); err != nil {
		return coretypes.Wrap(coretypes.KindIO, "metadata.deleteDocument", "delete document", err)
	}
	return nil
}

func upsertMaxSeqID(tx *sql.Tx, segmentID string, seqID uint64) error {
	_, err := tx.Exec(
		`INSERT INTO max_seq_id (segment_id, seq_id) VALUES (?, ?)
		 ON CONFLICT(segment_id) DO UPDATE SET seq_id = MAX(seq_id, excluded.seq_id)`,
		segmentID, seqID)
	if err != nil {
		return coretypes.Wrap(coretypes.KindIO, "metadata.upsertMaxSeqID", "upsert max seq id", err)
	}
	return nil
}

// MaxSeqID returns the highest log_offset ever applied to segmentID,
// or 0 if the segment has never been written to.
func MaxSeqID(db *sql.DB, segmentID string) (uint64, error) {
	var seqID uint64
	row := db.QueryRow(`SELECT seq_id FROM max_seq_id WHERE segment_id = ?`, segmentID)
	if err := row.Scan(&seqID); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, coretypes.Wrap(coretypes.KindIO, "metadata.MaxSeqID", "select max seq id", err)
	}
	return seqID, nil
}
