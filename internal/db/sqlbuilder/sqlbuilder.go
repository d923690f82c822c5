// Package sqlbuilder builds parameterized Postgres statements for a declared table.
//
// Every identifier must be one of the table's declared columns; values always travel as
// positional arguments. There is no raw-fragment escape hatch.
package sqlbuilder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var identRE = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Table describes one relation: its name and the full column list.
type Table struct {
	name    string
	columns []string
	known   map[string]bool
}

// NewTable declares a table. It panics on invalid identifiers or when key is not a column,
// since tables are declared once at package init.
func NewTable(name, key string, columns ...string) Table {
	if !identRE.MatchString(name) {
		panic(fmt.Sprintf("sqlbuilder: invalid table name %q", name))
	}
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		if !identRE.MatchString(c) {
			panic(fmt.Sprintf("sqlbuilder: invalid column %q on %s", c, name))
		}
		known[c] = true
	}
	if !known[key] {
		panic(fmt.Sprintf("sqlbuilder: key %q is not a column of %s", key, name))
	}
	return Table{name: name, columns: columns, known: known}
}

func (t Table) mustColumns(cols []string) {
	for _, c := range cols {
		if !t.known[c] {
			panic(fmt.Sprintf("sqlbuilder: unknown column %q on %s", c, t.name))
		}
	}
}

// Cond is a single parameterized predicate.
type Cond struct {
	col string
	op  string
	val any
}

// Eq matches col = val.
func Eq(col string, val any) Cond { return Cond{col: col, op: "=", val: val} }

// Gt matches col > val.
func Gt(col string, val any) Cond { return Cond{col: col, op: ">", val: val} }

// Lt matches col < val.
func Lt(col string, val any) Cond { return Cond{col: col, op: "<", val: val} }

// IsNull matches col IS NULL.
func IsNull(col string) Cond { return Cond{col: col, op: "IS NULL"} }

// Assign is one SET col = val pair.
type Assign struct {
	col string
	val any
}

// Set builds an Assign.
func Set(col string, val any) Assign { return Assign{col: col, val: val} }

type args struct {
	vals []any
}

func (a *args) add(v any) string {
	a.vals = append(a.vals, v)
	return "$" + strconv.Itoa(len(a.vals))
}

func (t Table) where(b *strings.Builder, a *args, conds []Cond) {
	for i, c := range conds {
		t.mustColumns([]string{c.col})
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		b.WriteString(c.col)
		if c.op == "IS NULL" {
			b.WriteString(" IS NULL")
			continue
		}
		b.WriteString(" " + c.op + " ")
		b.WriteString(a.add(c.val))
	}
}

// Insert builds INSERT INTO t (cols...) VALUES ($1...). vals must align with cols.
func (t Table) Insert(cols []string, vals []any) (string, []any) {
	if len(cols) == 0 || len(cols) != len(vals) {
		panic(fmt.Sprintf("sqlbuilder: insert into %s with %d columns and %d values", t.name, len(cols), len(vals)))
	}
	t.mustColumns(cols)
	var a args
	ph := make([]string, len(vals))
	for i, v := range vals {
		ph[i] = a.add(v)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(cols, ", "), strings.Join(ph, ", ")), a.vals
}

// Select builds SELECT cols FROM t WHERE conds. A nil cols selects every declared column.
func (t Table) Select(cols []string, conds ...Cond) *Query {
	if cols == nil {
		cols = t.columns
	}
	t.mustColumns(cols)
	return &Query{t: t, cols: cols, conds: conds}
}

// Count builds SELECT count(*) FROM t WHERE conds.
func (t Table) Count(conds ...Cond) (string, []any) {
	var a args
	var b strings.Builder
	b.WriteString("SELECT count(*) FROM " + t.name)
	t.where(&b, &a, conds)
	return b.String(), a.vals
}

// Update builds UPDATE t SET ... WHERE conds. At least one condition is required.
func (t Table) Update(set []Assign, conds ...Cond) (string, []any) {
	if len(set) == 0 {
		panic(fmt.Sprintf("sqlbuilder: update of %s without assignments", t.name))
	}
	if len(conds) == 0 {
		panic(fmt.Sprintf("sqlbuilder: update of %s without conditions", t.name))
	}
	var a args
	parts := make([]string, len(set))
	for i, s := range set {
		t.mustColumns([]string{s.col})
		parts[i] = s.col + " = " + a.add(s.val)
	}
	var b strings.Builder
	b.WriteString("UPDATE " + t.name + " SET " + strings.Join(parts, ", "))
	t.where(&b, &a, conds)
	return b.String(), a.vals
}

// Delete builds DELETE FROM t WHERE conds. At least one condition is required.
func (t Table) Delete(conds ...Cond) (string, []any) {
	if len(conds) == 0 {
		panic(fmt.Sprintf("sqlbuilder: delete from %s without conditions", t.name))
	}
	var a args
	var b strings.Builder
	b.WriteString("DELETE FROM " + t.name)
	t.where(&b, &a, conds)
	return b.String(), a.vals
}

// Query is a SELECT under construction.
type Query struct {
	t       Table
	cols    []string
	conds   []Cond
	orderBy string
	desc    bool
	limit   int
}

// OrderBy sorts ascending by col.
func (q *Query) OrderBy(col string) *Query {
	q.t.mustColumns([]string{col})
	q.orderBy, q.desc = col, false
	return q
}

// OrderByDesc sorts descending by col.
func (q *Query) OrderByDesc(col string) *Query {
	q.t.mustColumns([]string{col})
	q.orderBy, q.desc = col, true
	return q
}

// Limit caps the number of rows; zero means no limit.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Build returns the statement and its positional arguments.
func (q *Query) Build() (string, []any) {
	var a args
	var b strings.Builder
	b.WriteString("SELECT " + strings.Join(q.cols, ", ") + " FROM " + q.t.name)
	q.t.where(&b, &a, q.conds)
	if q.orderBy != "" {
		b.WriteString(" ORDER BY " + q.orderBy)
		if q.desc {
			b.WriteString(" DESC")
		}
	}
	if q.limit > 0 {
		b.WriteString(" LIMIT " + a.add(q.limit))
	}
	return b.String(), a.vals
}
