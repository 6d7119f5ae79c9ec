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
// where_sql.go compiles a Where tree into a HAVING expression usable
// after a GROUP BY on embeddings.id: composite AND is a
// multiplicative min over per-row predicates, and OR uses De Morgan over
// the multiplicative form. SQLite has no ANY()/ALL() boolean aggregate, so
// per-key row predicates are folded with MAX()/MIN() aggregates
// instead.
package metadata

import (
	"fmt"
	"strings"
)

// compileWhere renders w into a boolean-valued SQL expression (0 or 1)
// plus, in order, the bind arguments it references.
func compileWhere(w Where) (string, []any) {
	switch {
	case w.Composite != nil:
		return compileComposite(w.Composite)
	case w.Metadata != nil:
		return compileMetadata(w.Metadata)
	case w.Document != nil:
		return compileDocument(w.Document)
	default:
		return "1", nil
	}
}

func compileComposite(c *CompositeExpression) (string, []any) {
	expr := "1"
	var args []any
	for _, child := range c.Children {
		childExpr, childArgs := compileWhere(child)
		switch c.Operator {
		case OpAnd:
			expr = fmt.Sprintf("(%s) * (%s)", expr, childExpr)
		case OpOr:
			expr = fmt.Sprintf("(%s) * (1 - (%s))", expr, childExpr)
		}
		args = append(args, childArgs...)
	}
	if c.Operator == OpOr {
		expr = fmt.Sprintf("(1 - (%s))", expr)
	}
	return expr, args
}

func compileMetadata(m *MetadataExpression) (string, []any) {
	keyCond := "embedding_metadata.key = ?"
	args := []any{m.Key}

	if m.Primitive != nil {
		col, val := valueColumnAndArg(m.Primitive.Value)
		var cmp string
		switch m.Primitive.Operator {
		case Equal:
			cmp = fmt.Sprintf("MAX((%s) AND (embedding_metadata.%s = ?))", keyCond, col)
		case NotEqual:
			cmp = fmt.Sprintf("MIN(NOT ((%s) AND (embedding_metadata.%s = ?)))", keyCond, col)
		case GreaterThan:
			cmp = fmt.Sprintf("MAX((%s) AND (embedding_metadata.%s > ?))", keyCond, col)
		case GreaterThanOrEqual:
			cmp = fmt.Sprintf("MAX((%s) AND (embedding_metadata.%s >= ?))", keyCond, col)
		case LessThan:
			cmp = fmt.Sprintf("MAX((%s) AND (embedding_metadata.%s < ?))", keyCond, col)
		case LessThanOrEqual:
			cmp = fmt.Sprintf("MAX((%s) AND (embedding_metadata.%s <= ?))", keyCond, col)
		}
		return cmp, append(args, val)
	}

	if m.Set != nil {
		col, placeholders, vals := valueSetColumnAndArgs(m.Set.Values)
		var cmp string
		switch m.Set.Operator {
		case In:
			cmp = fmt.Sprintf("MAX((%s) AND (embedding_metadata.%s IN (%s)))", keyCond, col, placeholders)
		case NotIn:
			cmp = fmt.Sprintf("MIN(NOT ((%s) AND (embedding_metadata.%s IN (%s))))", keyCond, col, placeholders)
		}
		return cmp, append(args, vals...)
	}

	return "1", nil
}

func compileDocument(d *DocumentExpression) (string, []any) {
	docCol := "embedding_fulltext_search.string_value"
	like := "%" + d.Text + "%"
	switch d.Operator {
	case Contains:
		return fmt.Sprintf("(%s LIKE ?)", docCol), []any{like}
	case NotContains:
		return fmt.Sprintf("((%s NOT LIKE ?) OR (%s IS NULL))", docCol, docCol), []any{like}
	default:
		return "1", nil
	}
}

func valueColumnAndArg(v Value) (string, any) {
	switch v.Kind {
	case KindStr:
		return "string_value", v.Str
	case KindInt:
		return "int_value", v.Int
	case KindFloat:
		return "float_value", v.Float
	case KindBool:
		return "bool_value", v.Bool
	default:
		return "string_value", nil
	}
}

func valueSetColumnAndArgs(vs []Value) (string, string, []any) {
	if len(vs) == 0 {
		return "string_value", "NULL", nil
	}
	col, _ := valueColumnAndArg(vs[0])
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(vs)), ",")
	args := make([]any, len(vs))
	for i, v := range vs {
		_, a := valueColumnAndArg(v)
		args[i] = a
	}
	return col, placeholders, args
}
