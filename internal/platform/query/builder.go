// Package query composes parameterized SELECT statements for pgx.
package query

import (
	"fmt"
	"strings"
)

// Builder accumulates WHERE predicates with positional arguments and renders
// matching count and data statements.
type Builder struct {
	table   string
	cols    string
	where   string
	args    []interface{}
	idx     int
	orderBy string
}

// New creates a Builder selecting cols from table.
func New(table, cols string) *Builder {
	return &Builder{
		table: table,
		cols:  cols,
		idx:   1,
	}
}

// Idx returns the next available parameter index.
func (b *Builder) Idx() int { return b.idx }

// Add appends a raw WHERE clause fragment (without leading "AND").
// Placeholders in clause must start at Idx().
func (b *Builder) Add(clause string, args ...interface{}) {
	b.where += " AND " + clause
	b.args = append(b.args, args...)
	b.idx += len(args)
}

// Equals adds "column = value".
func (b *Builder) Equals(column string, value interface{}) {
	b.Add(fmt.Sprintf("%s = $%d", column, b.idx), value)
}

// Contains adds a case-insensitive substring match on column.
// LIKE wildcards in value are matched literally.
func (b *Builder) Contains(column, value string) {
	b.Add(fmt.Sprintf("%s ILIKE $%d", column, b.idx), "%"+escapeLike(value)+"%")
}

// OrderBy sets the ORDER BY clause (without the "ORDER BY" keyword).
func (b *Builder) OrderBy(orderBy string) {
	b.orderBy = orderBy
}

// CountSQL returns the count query SQL.
func (b *Builder) CountSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE 1=1%s", b.table, b.where)
}

// CountArgs returns the arguments for the count query.
func (b *Builder) CountArgs() []interface{} {
	return b.args
}

// DataSQL returns the data query SQL with ORDER BY and LIMIT/OFFSET.
func (b *Builder) DataSQL() string {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE 1=1%s", b.cols, b.table, b.where)
	if b.orderBy != "" {
		sql += " ORDER BY " + b.orderBy
	}
	sql += fmt.Sprintf(" LIMIT $%d OFFSET $%d", b.idx, b.idx+1)
	return sql
}

// DataArgs returns the arguments for the data query (predicate args + limit + offset).
func (b *Builder) DataArgs(limit, offset int) []interface{} {
	result := make([]interface{}, len(b.args)+2)
	copy(result, b.args)
	result[len(b.args)] = limit
	result[len(b.args)+1] = offset
	return result
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
