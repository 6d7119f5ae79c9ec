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

// Value is one metadata cell. Exactly one field is meaningful, picked
// by Kind; this mirrors the four-column (string/int/float/bool)
// layout of the embedding_metadata table directly instead of an
// interface{} union, so a Value can be passed straight to a SQL bind.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

type ValueKind int

const (
	KindNone ValueKind = iota
	KindStr
	KindInt
	KindFloat
	KindBool
)

func StrValue(s string) Value   { return Value{Kind: KindStr, Str: s} }
func IntValue(i int64) Value    { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func BoolValue(b bool) Value    { return Value{Kind: KindBool, Bool: b} }

// Metadata is a record's full key/value metadata map.
type Metadata map[string]Value

// UpdateMetadata carries the same keys as Metadata, but a present key
// mapped to a Value with Kind==KindNone means "delete this key":
// an explicitly null value removes the key from the record.
type UpdateMetadata map[string]Value

// Operation is the per-record log operation applied during a write.
type Operation int

const (
	OpAdd Operation = iota
	OpUpdate
	OpUpsert
	OpDelete
)

// LogRecord is one record from the write-ahead log applied to the
// metadata segment during compaction or a direct write.
type LogRecord struct {
	Operation Operation
	ID        string // user-facing embedding id
	SeqID     uint64
	Embedding []float32      // nil means "no embedding change"
	Metadata  UpdateMetadata // nil for pure vector-only add/update
	Document  *string        // nil means "no document change"
}

// BooleanOperator composes child expressions.
type BooleanOperator int

const (
	OpAnd BooleanOperator = iota
	OpOr
)

// PrimitiveOperator compares a metadata column against a single value.
type PrimitiveOperator int

const (
	Equal PrimitiveOperator = iota
	NotEqual
	GreaterThan
	GreaterThanOrEqual
	LessThan
	LessThanOrEqual
)

// SetOperator compares a metadata column against a set of values.
type SetOperator int

const (
	In SetOperator = iota
	NotIn
)

// DocumentOperator is a full-text predicate against the document body.
type DocumentOperator int

const (
	Contains DocumentOperator = iota
	NotContains
)

// Where is the root of a filter expression tree: exactly one of
// Composite, Metadata or Document is set.
type Where struct {
	Composite *CompositeExpression
	Metadata  *MetadataExpression
	Document  *DocumentExpression
}

type CompositeExpression struct {
	Operator BooleanOperator
	Children []Where
}

type MetadataExpression struct {
	Key        string
	Primitive  *PrimitiveComparison
	Set        *SetComparison
}

type PrimitiveComparison struct {
	Operator PrimitiveOperator
	Value    Value
}

type SetComparison struct {
	Operator SetOperator
	Values   []Value
}

type DocumentExpression struct {
	Operator DocumentOperator
	Text     string
}

// And builds a composite AND expression, the common case for combining
// filters from callers that don't need OR/NOT.
func And(children ...Where) Where {
	return Where{Composite: &CompositeExpression{Operator: OpAnd, Children: children}}
}

// Or builds a composite OR expression.
func Or(children ...Where) Where {
	return Where{Composite: &CompositeExpression{Operator: OpOr, Children: children}}
}

// MetadataCompare builds a leaf metadata primitive comparison.
func MetadataCompare(key string, op PrimitiveOperator, v Value) Where {
	return Where{Metadata: &MetadataExpression{Key: key, Primitive: &PrimitiveComparison{Operator: op, Value: v}}}
}

// MetadataIn builds a leaf metadata set-membership comparison.
func MetadataIn(key string, op SetOperator, vs []Value) Where {
	return Where{Metadata: &MetadataExpression{Key: key, Set: &SetComparison{Operator: op, Values: vs}}}
}

// DocumentCompare builds a leaf document full-text comparison.
func DocumentCompare(op DocumentOperator, text string) Where {
	return Where{Document: &DocumentExpression{Operator: op, Text: text}}
}

// Filter bundles the id and where-clause narrowing of a Get/Count.
type Filter struct {
	QueryIDs []string // nil means "no id restriction"
	Where    *Where
}

// Limit bounds a Get's result window.
type Limit struct {
	Skip  uint32
	Fetch *uint32 // nil means unbounded
}

// Projection selects which optional columns a Get result carries.
type Projection struct {
	Document bool
	Metadata bool
}

// GetParams is the full input to Reader.Get.
type GetParams struct {
	SegmentID string
	Filter    Filter
	Limit     Limit
	Proj      Projection
}

// ProjectionRecord is one row of a Get result.
type ProjectionRecord struct {
	ID       string
	Document *string
	Metadata Metadata
}

// CountParams is the input to Reader.Count.
type CountParams struct {
	SegmentID string
}
