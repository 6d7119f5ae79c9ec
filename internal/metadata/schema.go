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

	_ "github.com/mattn/go-sqlite3"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS embeddings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	segment_id  TEXT NOT NULL,
	embedding_id TEXT NOT NULL,
	seq_id      INTEGER NOT NULL,
	UNIQUE(segment_id, embedding_id)
);

CREATE TABLE IF NOT EXISTS embedding_metadata (
	id           INTEGER NOT NULL,
	key          TEXT NOT NULL,
	string_value TEXT,
	int_value    INTEGER,
	float_value  REAL,
	bool_value   INTEGER,
	PRIMARY KEY(id, key)
);

CREATE VIRTUAL TABLE IF NOT EXISTS embedding_fulltext_search USING fts4(string_value);

CREATE TABLE IF NOT EXISTS max_seq_id (
	segment_id TEXT PRIMARY KEY,
	seq_id     INTEGER NOT NULL
);
`

// Open opens (creating if absent) a SQLite database at path and
// applies the fixed schema. path may be ":memory:" for an ephemeral
// segment; database/sql pools connections, so an in-memory
// database is kept on a single shared connection to avoid each pooled
// connection seeing its own empty database.
func Open(path string) (*sql.DB, error) {
	dsn := path
	singleConn := false
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
		singleConn = true
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, coretypes.Wrap(coretypes.KindIO, "metadata.Open", "failed to open sqlite database", err)
	}
	if singleConn {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, coretypes.Wrap(coretypes.KindIO, "metadata.Open", "failed to apply schema", err)
	}
	return db, nil
}
