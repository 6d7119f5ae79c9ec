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
package blockstore

import (
	"bytes"
	"sort"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

// Schema is the fixed three-column layout every block uses: prefix
// groups rows, key orders within a prefix, value is the opaque
// payload (a serialized vector, a posting list entry, a metadata
// row).
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "prefix", Type: arrow.BinaryTypes.String},
	{Name: "key", Type: arrow.BinaryTypes.Binary},
	{Name: "value", Type: arrow.BinaryTypes.Binary},
}, nil)

// Row is one (prefix, key, value) tuple, the in-memory counterpart of
// one line in a block's record batch.
type Row struct {
	Prefix string
	Key    []byte
	Value  []byte
}

// Block is an immutable, (prefix,key)-sorted Arrow record batch
// loaded from a single-record-batch IPC file.
type Block struct {
	ID     coretypes.BlockID
	record arrow.Record
}

// roundUp64 rounds n up to the next multiple of 64, the alignment
// every block buffer's length must satisfy.
func roundUp64(n int) int {
	return (n + 63) &^ 63
}

// pad64Array repacks every buffer of a into a copy whose length is
// rounded up to a multiple of 64, so the alignment invariant holds in
// memory and in the buffer lengths the IPC writer records. The input
// array is consumed.
func pad64Array(a arrow.Array) arrow.Array {
	d := a.Data()
	bufs := make([]*memory.Buffer, len(d.Buffers()))
	for i, b := range d.Buffers() {
		if b == nil {
			continue
		}
		src := b.Bytes()
		padded := make([]byte, roundUp64(len(src)))
		copy(padded, src)
		bufs[i] = memory.NewBufferBytes(padded)
	}
	nd := array.NewData(d.DataType(), d.Len(), bufs, nil, d.NullN(), d.Offset())
	out := array.MakeFromData(nd)
	a.Release()
	return out
}

// BuildBlock sorts rows by (prefix, key) and encodes them into a
// single-record-batch Arrow IPC file, writer buffers explicitly
// padded to a 64-byte boundary.
func BuildBlock(id coretypes.BlockID, rows []Row) (*Block, []byte, error) {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		return CompositeKey{sorted[i].Prefix, sorted[i].Key}.Compare(CompositeKey{sorted[j].Prefix, sorted[j].Key}) < 0
	})

	mem := memory.NewGoAllocator()
	prefixBuilder := array.NewStringBuilder(mem)
	keyBuilder := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	valueBuilder := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer prefixBuilder.Release()
	defer keyBuilder.Release()
	defer valueBuilder.Release()

	for _, r := range sorted {
		prefixBuilder.Append(r.Prefix)
		keyBuilder.Append(r.Key)
		valueBuilder.Append(r.Value)
	}

	prefixArr := pad64Array(prefixBuilder.NewArray())
	keyArr := pad64Array(keyBuilder.NewArray())
	valueArr := pad64Array(valueBuilder.NewArray())
	defer prefixArr.Release()
	defer keyArr.Release()
	defer valueArr.Release()

	record := array.NewRecord(Schema, []arrow.Array{prefixArr, keyArr, valueArr}, int64(len(sorted)))

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(Schema), ipc.WithAllocator(mem))
	if err := writer.Write(record); err != nil {
		record.Release()
		return nil, nil, err
	}
	if err := writer.Close(); err != nil {
		record.Release()
		return nil, nil, err
	}

	return &Block{ID: id, record: record}, buf.Bytes(), nil
}

// LoadBlock decodes a single-record-batch Arrow IPC file. validate
// additionally checks the 64-byte buffer alignment invariant.
func LoadBlock(id coretypes.BlockID, data []byte, validate bool) (*Block, error) {
	mem := memory.NewGoAllocator()
	reader, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, err
	}
	defer reader.Release()

	if !reader.Next() {
		return nil, coretypes.New(coretypes.KindInternal, "blockstore.LoadBlock", "IPC file has no record batch")
	}
	record := reader.Record()
	record.Retain()

	if reader.Next() {
		record.Release()
		return nil, coretypes.New(coretypes.KindInternal, "blockstore.LoadBlock", "IPC file has more than one record batch")
	}

	b := &Block{ID: id, record: record}
	if validate {
		if err := b.validateAlignment(); err != nil {
			record.Release()
			return nil, err
		}
	}
	return b, nil
}

func (b *Block) validateAlignment() error {
	for _, col := range b.record.Columns() {
		for _, buf := range col.Data().Buffers() {
			if buf == nil {
				continue
			}
			if len(buf.Bytes())%64 != 0 {
				return coretypes.New(coretypes.KindInternal, "blockstore.Block.validateAlignment", "buffer length is not a multiple of 64")
			}
		}
	}
	return nil
}

// Release frees the block's underlying Arrow buffers.
func (b *Block) Release() {
	if b.record != nil {
		b.record.Release()
	}
}

// Len returns the number of rows in the block.
func (b *Block) Len() int { return int(b.record.NumRows()) }

func (b *Block) rowAt(i int) Row {
	prefixCol := b.record.Column(0).(*array.String)
	keyCol := b.record.Column(1).(*array.Binary)
	valueCol := b.record.Column(2).(*array.Binary)
	return Row{Prefix: prefixCol.Value(i), Key: keyCol.Value(i), Value: valueCol.Value(i)}
}

// SizeBytes sums round_up_64(len(buf)) over every buffer of every
// column (including null bitmaps), avoiding Arrow's over-reporting
// when buffers are shared between slices.
func (b *Block) SizeBytes() int64 {
	var total int64
	for _, col := range b.record.Columns() {
		total += sizeOfArrayData(col.Data())
	}
	return total
}

func sizeOfArrayData(data arrow.ArrayData) int64 {
	var total int64
	for _, buf := range data.Buffers() {
		if buf == nil {
			continue
		}
		total += int64(roundUp64(len(buf.Bytes())))
	}
	for _, child := range data.Children() {
		total += sizeOfArrayData(child)
	}
	return total
}

// Get performs a branchless binary search on the prefix column, ties
// broken by the key column, returning the matching row's value.
func (b *Block) Get(prefix string, key []byte) ([]byte, bool) {
	target := CompositeKey{Prefix: prefix, Key: key}
	n := b.Len()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		row := b.rowAt(mid)
		if (CompositeKey{row.Prefix, row.Key}).Compare(target) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n {
		row := b.rowAt(lo)
		if row.Prefix == prefix && bytes.Equal(row.Key, key) {
			return row.Value, true
		}
	}
	return nil, false
}

// GetPrefix finds the left-most row whose prefix equals the argument
// and streams forward while it still matches.
func (b *Block) GetPrefix(prefix string) []Row {
	n := b.Len()
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi) / 2
		if b.rowAt(mid).Prefix < prefix {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	var out []Row
	for i := lo; i < n; i++ {
		row := b.rowAt(i)
		if row.Prefix != prefix {
			break
		}
		out = append(out, row)
	}
	return out
}

type compareOp int

const (
	OpGT compareOp = iota
	OpGTE
	OpLT
	OpLTE
)

// scanCompare linear-scans rows filtered by (curr_prefix == prefix)
// and (curr_key <op> key).
func (b *Block) scanCompare(prefix string, key []byte, op compareOp) []Row {
	var out []Row
	for i := 0; i < b.Len(); i++ {
		row := b.rowAt(i)
		if row.Prefix != prefix {
			continue
		}
		cmp := bytes.Compare(row.Key, key)
		match := false
		switch op {
		case OpGT:
			match = cmp > 0
		case OpGTE:
			match = cmp >= 0
		case OpLT:
			match = cmp < 0
		case OpLTE:
			match = cmp <= 0
		}
		if match {
			out = append(out, row)
		}
	}
	return out
}

func (b *Block) GetGT(prefix string, key []byte) []Row  { return b.scanCompare(prefix, key, OpGT) }
func (b *Block) GetGTE(prefix string, key []byte) []Row { return b.scanCompare(prefix, key, OpGTE) }
func (b *Block) GetLT(prefix string, key []byte) []Row  { return b.scanCompare(prefix, key, OpLT) }
func (b *Block) GetLTE(prefix string, key []byte) []Row { return b.scanCompare(prefix, key, OpLTE) }

// GetAtIndex returns the row at position i in O(1).
func (b *Block) GetAtIndex(i int) (Row, bool) {
	if i < 0 || i >= b.Len() {
		return Row{}, false
	}
	return b.rowAt(i), true
}
