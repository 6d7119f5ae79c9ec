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
package wal

import (
	"bytes"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/pierrec/lz4/v4"
)

// LogRecord is one appended entry. Value == nil marks a tombstone.
type LogRecord struct {
	Key       []byte `parquet:"key"`
	Value     []byte `parquet:"value,optional"`
	Timestamp int64  `parquet:"timestamp"`
}

// EncodeFragment serializes records as a parquet file, then wraps it
// in an lz4 frame: fragments are read far more often than written, so
// paying the compression cost once at publish time is worth it.
func EncodeFragment(records []LogRecord) ([]byte, error) {
	var raw bytes.Buffer
	if err := parquet.Write(&raw, records); err != nil {
		return nil, err
	}
	var compressed bytes.Buffer
	zw := lz4.NewWriter(&compressed)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return compressed.Bytes(), nil
}

// DecodeFragment reverses EncodeFragment.
func DecodeFragment(data []byte) ([]LogRecord, error) {
	zr := lz4.NewReader(bytes.NewReader(data))
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	return parquet.Read[LogRecord](bytes.NewReader(raw), int64(len(raw)))
}
